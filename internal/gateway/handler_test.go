package gateway

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/fsh-formation/templater/internal/airtable"
	"github.com/fsh-formation/templater/internal/docgen"
	"github.com/fsh-formation/templater/internal/docx"
	"github.com/fsh-formation/templater/internal/history"
	"github.com/fsh-formation/templater/internal/observability"
)

type stubGenerator struct {
	report  docgen.Report
	reports []docgen.Report
	err     error
	got     []docgen.Request
}

func (g *stubGenerator) Generate(_ context.Context, req docgen.Request) (docgen.Report, error) {
	g.got = append(g.got, req)
	if g.err != nil {
		return docgen.Report{}, g.err
	}
	return g.report, nil
}

func (g *stubGenerator) GenerateMany(_ context.Context, reqs []docgen.Request) ([]docgen.Report, error) {
	g.got = append(g.got, reqs...)
	if g.err != nil {
		return nil, g.err
	}
	return g.reports, nil
}

type stubRecordSource struct {
	records []docgen.RawRecord
	err     error
	gotQ    docgen.RecordQuery
}

func (s *stubRecordSource) Record(context.Context, string, string) (docgen.RawRecord, error) {
	return nil, errors.New("not used")
}

func (s *stubRecordSource) Records(_ context.Context, _ string, q docgen.RecordQuery) ([]docgen.RawRecord, error) {
	s.gotQ = q
	return s.records, s.err
}

type stubSchemaReader struct {
	table airtable.Table
	ok    bool
}

func (s stubSchemaReader) Table(string) (airtable.Table, bool) { return s.table, s.ok }

type stubHistory struct {
	entries []history.Entry
}

func (s *stubHistory) Record(_ context.Context, e history.Entry) {
	s.entries = append(s.entries, e)
}

func (s *stubHistory) Recent(context.Context, int) ([]history.Entry, error) {
	return s.entries, nil
}

type handlerDeps struct {
	gen     *stubGenerator
	records *stubRecordSource
	schema  stubSchemaReader
	history *stubHistory
}

func newTestRouter(t *testing.T, deps handlerDeps) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if deps.history == nil {
		deps.history = &stubHistory{}
	}
	h := NewHandler(
		deps.gen,
		deps.records,
		deps.schema,
		deps.history,
		observability.NewMetrics(),
		logger,
		"https://templates.example/templates/",
	)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, r chi.Router, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestProgrammeServesDocument(t *testing.T) {
	gen := &stubGenerator{report: docgen.Report{
		FileName: "01-mars-2025 Formation X01-03-2025-03-03-2025.docx",
		Buffer:   []byte("binary-docx"),
	}}
	router := newTestRouter(t, handlerDeps{gen: gen, records: &stubRecordSource{}})

	rec := doRequest(t, router, "/programme?recordId=rec123")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, wordMIME, rec.Header().Get("Content-Type"))
	require.Equal(t,
		`attachment; filename="01-mars-2025 Formation X01-03-2025-03-03-2025.docx"`,
		rec.Header().Get("Content-Disposition"))
	require.Equal(t, strconv.Itoa(len("binary-docx")), rec.Header().Get("Content-Length"))
	require.Equal(t, "binary-docx", rec.Body.String())

	require.Len(t, gen.got, 1)
	require.Equal(t, "https://templates.example/templates/programme.docx", gen.got[0].TemplateURL)
	require.Equal(t, "Sessions", gen.got[0].Table)
	require.Equal(t, "rec123", gen.got[0].RecordID)
}

func TestProgrammeMissingRecordID(t *testing.T) {
	router := newTestRouter(t, handlerDeps{gen: &stubGenerator{}, records: &stubRecordSource{}})

	rec := doRequest(t, router, "/programme")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Validation Failed", problem["title"])
	require.Contains(t, problem["detail"], "recordId")
}

func TestProgrammeTitleComposition(t *testing.T) {
	cases := []struct {
		name string
		rec  docgen.RawRecord
		want string
	}{
		{
			name: "dates appended",
			rec: docgen.RawRecord{
				"titre": "Formation X",
				"du":    "2025-03-01",
				"au":    "2025-03-03",
			},
			want: "Formation X01-03-2025-03-03-2025",
		},
		{
			name: "prog title preferred",
			rec: docgen.RawRecord{
				"titre_fromprog": "Programme Y",
				"titre":          "Formation X",
			},
			want: "Programme Y",
		},
		{
			name: "missing dates skipped",
			rec:  docgen.RawRecord{"titre": "Formation X", "du": "2025-03-01"},
			want: "Formation X",
		},
		{
			name: "empty record",
			rec:  docgen.RawRecord{},
			want: "err titre prog",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, programmeTitle(tc.rec))
		})
	}
}

func TestDevisTitleKeepsTrailingSpace(t *testing.T) {
	gen := &stubGenerator{report: docgen.Report{FileName: "x.docx", Buffer: []byte("b")}}
	router := newTestRouter(t, handlerDeps{gen: gen, records: &stubRecordSource{}})

	rec := doRequest(t, router, "/devis?recordId=rec9")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.got, 1)
	require.Equal(t, "Devis", gen.got[0].Table)
	require.Equal(t, "DEVIS FSH rec9 ", gen.got[0].TitleFrom(docgen.RawRecord{"id": "rec9"}))
}

func TestFactureTitle(t *testing.T) {
	require.Equal(t, "rec1 Durand Marie", factureTitle(docgen.RawRecord{
		"id":     "rec1",
		"nom":    "Durand",
		"prenom": "Marie",
	}))
}

func TestCatalogueDefaultsYearAndFormula(t *testing.T) {
	gen := &stubGenerator{report: docgen.Report{FileName: "c.docx", Buffer: []byte("b")}}
	router := newTestRouter(t, handlerDeps{gen: gen, records: &stubRecordSource{}})

	rec := doRequest(t, router, "/catalogue?annee=2026")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.got, 1)
	req := gen.got[0]
	require.NotNil(t, req.Query)
	require.Equal(t, "Grid view", req.Query.View)
	require.Contains(t, req.Query.Filter, `{année}=2026`)
	require.Equal(t, "du", req.Query.SortField)
	require.Equal(t, "Catalogue des formations FSH 2026", req.Title)
}

func TestCatalogueRejectsFormulaInjection(t *testing.T) {
	gen := &stubGenerator{report: docgen.Report{FileName: "c.docx", Buffer: []byte("b")}}
	router := newTestRouter(t, handlerDeps{gen: gen, records: &stubRecordSource{}})

	rec := doRequest(t, router, "/catalogue?annee="+url.QueryEscape(`1)),TRUE(),((`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.got, 1)

	defaultYear := strconv.Itoa(time.Now().Year() + 1)
	require.Contains(t, gen.got[0].Query.Filter, "{année}="+defaultYear)
	require.NotContains(t, gen.got[0].Query.Filter, "TRUE")
}

func TestReportRecordedInHistory(t *testing.T) {
	gen := &stubGenerator{report: docgen.Report{FileName: "p.docx", Buffer: []byte("binary")}}
	hist := &stubHistory{}
	router := newTestRouter(t, handlerDeps{gen: gen, records: &stubRecordSource{}, history: hist})

	rec := doRequest(t, router, "/programme?recordId=rec123")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, hist.entries, 1)
	entry := hist.entries[0]
	require.Equal(t, "Sessions", entry.Table)
	require.Equal(t, "rec123", entry.RecordID)
	require.Equal(t, "p.docx", entry.FileName)
	require.Equal(t, len("binary"), entry.Bytes)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"record not found", airtable.ErrRecordNotFound, http.StatusNotFound, "Record Not Found"},
		{"template fetch", docgen.ErrTemplateFetch, http.StatusBadGateway, "Template Fetch Failed"},
		{"invalid container", docx.ErrInvalidContainer, http.StatusUnprocessableEntity, "Template Load Failed"},
		{"template syntax", &docx.SyntaxError{Tag: "records", Reason: "unclosed section"}, http.StatusUnprocessableEntity, "Template Syntax Error"},
		{"data store", &airtable.RequestError{Table: "Sessions", Status: 500}, http.StatusBadGateway, "Data Store Failure"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, handlerDeps{gen: &stubGenerator{err: tc.err}, records: &stubRecordSource{}})
			rec := doRequest(t, router, "/programme?recordId=rec1")
			require.Equal(t, tc.status, rec.Code)

			var problem map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			require.Equal(t, tc.title, problem["title"])
		})
	}
}

func TestFacturesBundlesArchive(t *testing.T) {
	gen := &stubGenerator{reports: []docgen.Report{
		{FileName: "f1.docx", Buffer: []byte("one")},
		{FileName: "f2.docx", Buffer: []byte("two")},
	}}
	records := &stubRecordSource{records: []docgen.RawRecord{
		{"id": "rec1", "nom": "Durand"},
		{"id": "rec2", "nom": "Martin"},
	}}
	router := newTestRouter(t, handlerDeps{gen: gen, records: records})

	rec := doRequest(t, router, "/factures?sessionId=recSess")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="factures.zip"`, rec.Header().Get("Content-Disposition"))
	require.Contains(t, records.gotQ.Filter, "recSess")

	reader, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)
	require.Equal(t, "f1.docx", reader.File[0].Name)
	require.Equal(t, "f2.docx", reader.File[1].Name)

	require.Len(t, gen.got, 2)
	require.Equal(t, docgen.RawRecord{"id": "rec1", "nom": "Durand"}, gen.got[0].Data)
}

func TestFacturesMissingSessionID(t *testing.T) {
	router := newTestRouter(t, handlerDeps{gen: &stubGenerator{}, records: &stubRecordSource{}})
	rec := doRequest(t, router, "/factures")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacturesNoInscriptions(t *testing.T) {
	router := newTestRouter(t, handlerDeps{gen: &stubGenerator{}, records: &stubRecordSource{}})
	rec := doRequest(t, router, "/factures?sessionId=recSess")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchemasListsMarkdownFields(t *testing.T) {
	schema := stubSchemaReader{ok: true, table: airtable.Table{
		Name: "Sessions",
		Fields: []airtable.Field{
			{Name: "titre", Type: "singleLineText"},
			{Name: "objectifs", Type: airtable.TypeRichText},
		},
	}}
	router := newTestRouter(t, handlerDeps{gen: &stubGenerator{}, records: &stubRecordSource{}, schema: schema})

	rec := doRequest(t, router, "/schemas")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"objectifs"}, body["champsMarkdown"])
}

func TestSchemasUnavailable(t *testing.T) {
	router := newTestRouter(t, handlerDeps{gen: &stubGenerator{}, records: &stubRecordSource{}})
	rec := doRequest(t, router, "/schemas")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryEmptyWithoutStore(t *testing.T) {
	router := newTestRouter(t, handlerDeps{gen: &stubGenerator{}, records: &stubRecordSource{}})
	rec := doRequest(t, router, "/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body["entries"])
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, `01-mars-2025 devis_ _.docx`, sanitizeFileName("01-mars-2025 devis\" \\.docx"))
}
