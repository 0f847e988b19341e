// Package docgen turns records from the tabular data store into merged
// Word documents: it normalizes raw field values, renders rich text,
// and orchestrates the fetch/merge pipeline.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fsh-formation/templater/internal/docx"
)

// ErrTemplateFetch reports that the remote template could not be
// retrieved. Fatal for the request and never retried here.
var ErrTemplateFetch = errors.New("docgen: template fetch failed")

// RawRecord is one record of the external data store: field name to
// externally-typed value, read-only to the pipeline.
type RawRecord map[string]any

// RecordQuery selects an ordered set of records from a table view.
type RecordQuery struct {
	View      string
	Filter    string
	SortField string
	SortDir   string
}

// TemplateFetcher retrieves the binary template behind a URL.
type TemplateFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RecordSource is the data-store collaborator the orchestrator pulls
// records from.
type RecordSource interface {
	Record(ctx context.Context, table, id string) (RawRecord, error)
	Records(ctx context.Context, table string, q RecordQuery) ([]RawRecord, error)
}

// SchemaSource resolves the field-type classification of a table.
type SchemaSource interface {
	FieldTypes(table string) FieldTypes
}

// Request describes one report to generate.
type Request struct {
	TemplateURL string
	Table       string
	// RecordID selects a single record; Query selects an ordered set
	// exposed to the template as the "records" section; Data supplies
	// an already-fetched record, skipping the data-store call.
	RecordID string
	Query    *RecordQuery
	Data     RawRecord
	// Title names the output file; TitleFrom, when set, derives the
	// title from the fetched record instead.
	Title     string
	TitleFrom func(RawRecord) string
}

// Report is a generated document plus its download file name.
type Report struct {
	FileName string
	Buffer   []byte
}

// Service sequences template fetch, record fetch, normalization and
// merge for one request. It holds no per-request state; concurrent use
// is safe.
type Service struct {
	templates TemplateFetcher
	records   RecordSource
	schema    SchemaSource
	norm      *Normalizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service instance.
func NewService(templates TemplateFetcher, records RecordSource, schema SchemaSource, logger *slog.Logger) *Service {
	return &Service{
		templates: templates,
		records:   records,
		schema:    schema,
		norm:      NewNormalizer(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Generate runs the full pipeline for one request. Template and record
// fetches are independent network calls and run concurrently; the merge
// itself is synchronous. On any failure no partial buffer is returned.
func (s *Service) Generate(ctx context.Context, req Request) (Report, error) {
	var (
		template []byte
		record   RawRecord
		set      []RawRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := s.templates.Fetch(gctx, req.TemplateURL)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTemplateFetch, req.TemplateURL, err)
		}
		template = raw
		return nil
	})
	g.Go(func() error {
		switch {
		case req.Data != nil:
			record = req.Data
		case req.RecordID != "":
			rec, err := s.records.Record(gctx, req.Table, req.RecordID)
			if err != nil {
				return err
			}
			record = rec
		case req.Query != nil:
			recs, err := s.records.Records(gctx, req.Table, *req.Query)
			if err != nil {
				return err
			}
			set = recs
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	types := s.fieldTypes(req.Table)
	var data docx.Context
	if req.Query != nil {
		data = s.setContext(set, types)
	} else {
		data = s.recordContext(record, types)
	}

	buffer, err := docx.Merge(template, data)
	if err != nil {
		return Report{}, err
	}

	title := req.Title
	if req.TitleFrom != nil && record != nil {
		if derived := req.TitleFrom(record); derived != "" {
			title = derived
		}
	}
	if title == "" {
		title = titleFromURL(req.TemplateURL)
	}

	name := FrenchDate(s.now(), false) + " " + title + ".docx"
	s.logger.Info("report generated",
		slog.String("table", req.Table),
		slog.String("file", name),
		slog.Int("bytes", len(buffer)))
	return Report{FileName: name, Buffer: buffer}, nil
}

// GenerateMany runs requests in order and returns one report per
// request, for the boundary layer to bundle into an archive. The first
// failure aborts the batch.
func (s *Service) GenerateMany(ctx context.Context, reqs []Request) ([]Report, error) {
	reports := make([]Report, 0, len(reqs))
	for _, req := range reqs {
		report, err := s.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Service) fieldTypes(table string) FieldTypes {
	if s.schema == nil {
		return ScalarTypes{}
	}
	if types := s.schema.FieldTypes(table); types != nil {
		return types
	}
	return ScalarTypes{}
}

// recordContext normalizes every field of one record into a merge
// context.
func (s *Service) recordContext(rec RawRecord, types FieldTypes) docx.Context {
	data := make(docx.Context, len(rec))
	for name, value := range rec {
		data[name] = s.norm.Normalize(value, types.Kind(name))
	}
	return data
}

// setContext exposes an ordered record set to the template as a
// repeating "records" section.
func (s *Service) setContext(set []RawRecord, types FieldTypes) docx.Context {
	items := make([]docx.Context, len(set))
	for i, rec := range set {
		items[i] = s.recordContext(rec, types)
	}
	return docx.Context{
		"records": items,
		"count":   len(items),
	}
}

func titleFromURL(url string) string {
	base := path.Base(url)
	return strings.TrimSuffix(base, path.Ext(base))
}
