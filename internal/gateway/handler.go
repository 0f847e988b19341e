// Package gateway exposes the document-generation HTTP routes.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fsh-formation/templater/internal/airtable"
	"github.com/fsh-formation/templater/internal/docgen"
	"github.com/fsh-formation/templater/internal/history"
	"github.com/fsh-formation/templater/internal/observability"
	"github.com/fsh-formation/templater/internal/platform/httpx"
)

// wordMIME is the Word-processing document content type.
const wordMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	tableSessions     = "Sessions"
	tableDevis        = "Devis"
	tableInscriptions = "Inscriptions"

	catalogueView = "Grid view"
)

// Generator is the slice of the orchestrator the handler consumes.
type Generator interface {
	Generate(ctx context.Context, req docgen.Request) (docgen.Report, error)
	GenerateMany(ctx context.Context, reqs []docgen.Request) ([]docgen.Report, error)
}

// SchemaReader exposes cached table schemas.
type SchemaReader interface {
	Table(name string) (airtable.Table, bool)
}

// HistoryStore records generated documents and lists recent entries.
type HistoryStore interface {
	Record(ctx context.Context, e history.Entry)
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Handler manages the report-generation endpoints.
type Handler struct {
	gen      Generator
	records  docgen.RecordSource
	schema   SchemaReader
	history  HistoryStore
	metrics  *observability.Metrics
	logger   *slog.Logger
	validate *validator.Validate

	templateBase string
}

// NewHandler creates a gateway handler. templateBase is the URL prefix
// under which the route templates live.
func NewHandler(gen Generator, records docgen.RecordSource, schema SchemaReader, hist HistoryStore, metrics *observability.Metrics, logger *slog.Logger, templateBase string) *Handler {
	return &Handler{
		gen:          gen,
		records:      records,
		schema:       schema,
		history:      hist,
		metrics:      metrics,
		logger:       logger,
		validate:     validator.New(),
		templateBase: strings.TrimSuffix(templateBase, "/"),
	}
}

// MountRoutes registers the gateway routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/schemas", h.schemas)
	r.Get("/catalogue", h.catalogue)
	r.Get("/programme", h.programme)
	r.Get("/devis", h.devis)
	r.Get("/facture", h.facture)
	r.Get("/factures", h.factures)
	r.Get("/history", h.recent)
}

func (h *Handler) templateURL(name string) string {
	return h.templateBase + "/" + name
}

// schemas lists the Sessions fields carrying markdown content.
func (h *Handler) schemas(w http.ResponseWriter, r *http.Request) {
	table, ok := h.schema.Table(tableSessions)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Schema Unavailable", "failed to retrieve schema")
		return
	}
	fields := table.MarkdownFields()
	if fields == nil {
		fields = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"champsMarkdown": fields})
}

// catalogue merges the filtered Sessions set into the catalogue
// template.
func (h *Handler) catalogue(w http.ResponseWriter, r *http.Request) {
	// année feeds the filter formula: anything but a plain year falls
	// back to the default
	annee := r.URL.Query().Get("annee")
	if annee == "" || h.validate.Var(annee, "number,len=4") != nil {
		annee = strconv.Itoa(time.Now().Year() + 1)
	}
	formula := fmt.Sprintf(
		`OR(AND({année}="", FIND(lieuxdemij_cumul,"intra")), AND({année}=%s, FIND(lieuxdemij_cumul,"intra")=0))`,
		annee,
	)
	h.serveReport(w, r, docgen.Request{
		TemplateURL: h.templateURL("catalogue.docx"),
		Table:       tableSessions,
		Query: &docgen.RecordQuery{
			View:      catalogueView,
			Filter:    formula,
			SortField: "du",
			SortDir:   "asc",
		},
		Title: "Catalogue des formations FSH " + annee,
	}, "")
}

type recordQuery struct {
	RecordID string `validate:"required"`
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := recordQuery{RecordID: r.URL.Query().Get("recordId")}
	if err := h.validate.Struct(q); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paramètre recordId manquant")
		return "", false
	}
	return q.RecordID, true
}

// programme merges one Sessions record into the programme template.
// The title keeps the historical concatenation of the session dates.
func (h *Handler) programme(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	h.serveReport(w, r, docgen.Request{
		TemplateURL: h.templateURL("programme.docx"),
		Table:       tableSessions,
		RecordID:    recordID,
		TitleFrom:   programmeTitle,
	}, recordID)
}

func programmeTitle(rec docgen.RawRecord) string {
	title := fieldString(rec, "titre_fromprog")
	if title == "" {
		title = fieldString(rec, "titre")
	}
	du := fieldString(rec, "du")
	au := fieldString(rec, "au")
	if du != "" && au != "" {
		title += docgen.YMD(du) + "-" + docgen.YMD(au)
	}
	if title == "" {
		return "err titre prog"
	}
	return title
}

// devis merges one Devis record into the devis template.
func (h *Handler) devis(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	h.serveReport(w, r, docgen.Request{
		TemplateURL: h.templateURL("devis.docx"),
		Table:       tableDevis,
		RecordID:    recordID,
		TitleFrom: func(rec docgen.RawRecord) string {
			return fmt.Sprintf("DEVIS FSH %s ", fieldString(rec, "id"))
		},
	}, recordID)
}

// facture merges one Inscriptions record into the programme template.
func (h *Handler) facture(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	h.serveReport(w, r, docgen.Request{
		TemplateURL: h.templateURL("programme.docx"),
		Table:       tableInscriptions,
		RecordID:    recordID,
		TitleFrom:   factureTitle,
	}, recordID)
}

func factureTitle(rec docgen.RawRecord) string {
	return fmt.Sprintf("%s %s %s",
		fieldString(rec, "id"),
		fieldString(rec, "nom"),
		fieldString(rec, "prenom"))
}

// factures generates one document per inscription of a session and
// bundles them into a zip archive.
func (h *Handler) factures(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "paramètre sessionId manquant")
		return
	}

	formula := fmt.Sprintf(`FIND("%s", ARRAYJOIN({Sessions}))`, sessionID)
	records, err := h.records.Records(r.Context(), tableInscriptions, docgen.RecordQuery{Filter: formula})
	if err != nil {
		h.logger.Error("list inscriptions", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if len(records) == 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "aucune inscription pour cette session")
		return
	}

	reqs := make([]docgen.Request, len(records))
	for i, rec := range records {
		reqs[i] = docgen.Request{
			TemplateURL: h.templateURL("programme.docx"),
			Table:       tableInscriptions,
			Data:        rec,
			TitleFrom:   factureTitle,
		}
	}

	start := time.Now()
	reports, err := h.gen.GenerateMany(r.Context(), reqs)
	if err != nil {
		h.metrics.ObserveReport(routeOf(r), 0, err)
		h.logger.Error("generate factures", slog.Any("error", err))
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="factures.zip"`)
	w.Header().Set("Content-Type", "application/zip")
	size, err := writeArchive(w, reports)
	if err != nil {
		h.logger.Error("write factures archive", slog.Any("error", err))
		return
	}
	h.metrics.ObserveReport(routeOf(r), size, nil)
	h.record(r, tableInscriptions, "factures.zip", sessionID, size, time.Since(start))
}

// recent lists the latest generation history entries.
func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.Recent(r.Context(), 50)
	if err != nil {
		h.logger.Error("list history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// serveReport runs the pipeline and streams the document back as an
// attachment with an exact byte length. On failure nothing is written
// to the body beyond the problem document.
func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request, req docgen.Request, recordID string) {
	start := time.Now()
	report, err := h.gen.Generate(r.Context(), req)
	h.metrics.ObserveReport(routeOf(r), len(report.Buffer), err)
	if err != nil {
		h.logger.Error("generate report",
			slog.String("table", req.Table),
			slog.String("record", recordID),
			slog.Any("error", err))
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFileName(report.FileName)+`"`)
	w.Header().Set("Content-Type", wordMIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Buffer)))
	if _, err := w.Write(report.Buffer); err != nil {
		h.logger.Warn("write report body", slog.Any("error", err))
		return
	}
	h.record(r, req.Table, report.FileName, recordID, len(report.Buffer), time.Since(start))
}

func (h *Handler) record(r *http.Request, table, fileName, recordID string, size int, elapsed time.Duration) {
	h.history.Record(r.Context(), history.Entry{
		Route:    routeOf(r),
		Table:    table,
		RecordID: recordID,
		FileName: fileName,
		Bytes:    size,
		Duration: elapsed,
	})
}

func fieldString(rec docgen.RawRecord, name string) string {
	switch v := rec[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '\r', '\n':
			return '_'
		}
		return r
	}, name)
}

func routeOf(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
