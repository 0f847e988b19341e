package airtable

import (
	"context"

	"github.com/fsh-formation/templater/internal/docgen"
)

// RecordSource adapts the client to the docgen pipeline's record
// contract.
type RecordSource struct {
	client *Client
}

// NewRecordSource wraps a client.
func NewRecordSource(client *Client) *RecordSource {
	return &RecordSource{client: client}
}

// Record fetches one record and flattens it to a raw field map.
func (s *RecordSource) Record(ctx context.Context, table, id string) (docgen.RawRecord, error) {
	rec, err := s.client.GetRecord(ctx, table, id)
	if err != nil {
		return nil, err
	}
	return toRaw(rec), nil
}

// Records fetches an ordered record set.
func (s *RecordSource) Records(ctx context.Context, table string, q docgen.RecordQuery) ([]docgen.RawRecord, error) {
	records, err := s.client.ListRecords(ctx, table, Query{
		View:      q.View,
		Filter:    q.Filter,
		SortField: q.SortField,
		SortDir:   q.SortDir,
	})
	if err != nil {
		return nil, err
	}
	raws := make([]docgen.RawRecord, len(records))
	for i, rec := range records {
		raws[i] = toRaw(rec)
	}
	return raws, nil
}

// toRaw exposes the record id alongside its fields; templates and
// titles reference "id" directly unless the table defines its own.
func toRaw(rec Record) docgen.RawRecord {
	raw := make(docgen.RawRecord, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		raw[k] = v
	}
	if _, ok := raw["id"]; !ok {
		raw["id"] = rec.ID
	}
	return raw
}
