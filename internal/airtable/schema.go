package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fsh-formation/templater/internal/docgen"
)

// Field type tags as reported by the base metadata endpoint.
const (
	TypeRichText = "richText"
	TypeLookup   = "multipleLookupValues"
	TypeDate     = "date"
	TypeDateTime = "dateTime"
	TypeCurrency = "currency"
	TypeLinked   = "multipleRecordLinks"
)

// Field describes one column of a table.
type Field struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options *FieldOptions `json:"options,omitempty"`
}

// FieldOptions carries the lookup result type when present.
type FieldOptions struct {
	Result *FieldResult `json:"result,omitempty"`
}

// FieldResult is the resolved type of a lookup target field.
type FieldResult struct {
	Type string `json:"type"`
}

// Table is the schema of one table.
type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// MarkdownFields lists the field names that carry rich-text markup:
// richText fields and lookups whose target field is rich text.
func (t Table) MarkdownFields() []string {
	var names []string
	for _, f := range t.Fields {
		if fieldKind(f) == docgen.KindRichText {
			names = append(names, f.Name)
		}
	}
	return names
}

func fieldKind(f Field) docgen.FieldKind {
	switch f.Type {
	case TypeRichText:
		return docgen.KindRichText
	case TypeDate, TypeDateTime:
		return docgen.KindDate
	case TypeCurrency:
		return docgen.KindCurrency
	case TypeLinked:
		return docgen.KindLinked
	case TypeLookup:
		if f.Options != nil && f.Options.Result != nil {
			switch f.Options.Result.Type {
			case TypeRichText:
				return docgen.KindRichText
			case TypeDate, TypeDateTime:
				return docgen.KindDate
			case TypeCurrency:
				return docgen.KindCurrency
			}
		}
		return docgen.KindLinked
	default:
		return docgen.KindScalar
	}
}

// tableTypes resolves field kinds for one table.
type tableTypes struct {
	kinds map[string]docgen.FieldKind
}

func (t tableTypes) Kind(field string) docgen.FieldKind {
	if k, ok := t.kinds[field]; ok {
		return k
	}
	return docgen.KindScalar
}

// schemaKey is where the shared schema snapshot lives in Redis: the
// worker's refresh publishes there and serving processes reload from
// it across process boundaries.
const schemaKey = "schema:tables"

// schemaReloadInterval bounds how often a reader re-checks the shared
// snapshot.
const schemaReloadInterval = time.Minute

// SchemaCache holds the base schema, shared read-only across requests.
// With a store attached, Refresh publishes the snapshot to Redis and
// readers pick it up lazily, so the background worker's refresh reaches
// every process.
type SchemaCache struct {
	client *Client
	store  *redis.Client
	logger *slog.Logger

	mu       sync.RWMutex
	tables   map[string]Table
	loadedAt time.Time
}

// NewSchemaCache constructs an empty cache; call Refresh to populate.
func NewSchemaCache(client *Client, logger *slog.Logger) *SchemaCache {
	return &SchemaCache{
		client: client,
		logger: logger,
		tables: map[string]Table{},
	}
}

// UseStore shares the snapshot through Redis. Must be called before the
// cache is handed to concurrent readers.
func (c *SchemaCache) UseStore(store *redis.Client) {
	c.store = store
}

// Refresh fetches the base schema, replaces the cached snapshot and
// publishes it to the store when one is attached.
func (c *SchemaCache) Refresh(ctx context.Context) error {
	tables, err := c.client.BaseSchema(ctx)
	if err != nil {
		return err
	}
	c.swap(tables)
	c.publish(ctx, tables)
	if c.logger != nil {
		c.logger.Info("schema refreshed", slog.Int("tables", len(tables)))
	}
	return nil
}

func (c *SchemaCache) swap(tables []Table) {
	snapshot := make(map[string]Table, len(tables))
	for _, t := range tables {
		snapshot[t.Name] = t
	}
	c.mu.Lock()
	c.tables = snapshot
	c.loadedAt = time.Now()
	c.mu.Unlock()
}

func (c *SchemaCache) publish(ctx context.Context, tables []Table) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(tables)
	if err == nil {
		err = c.store.Set(ctx, schemaKey, data, 0).Err()
	}
	if err != nil && c.logger != nil {
		c.logger.Warn("publish schema snapshot", slog.Any("error", err))
	}
}

// maybeReload picks up a snapshot another process published. Failures
// keep the current snapshot; the attempt is not retried before the
// next interval.
func (c *SchemaCache) maybeReload() {
	if c.store == nil {
		return
	}
	c.mu.RLock()
	fresh := time.Since(c.loadedAt) < schemaReloadInterval
	c.mu.RUnlock()
	if fresh {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := c.store.Get(ctx, schemaKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("load schema snapshot", slog.Any("error", err))
		}
		c.touch()
		return
	}
	var tables []Table
	if err := json.Unmarshal(data, &tables); err != nil {
		if c.logger != nil {
			c.logger.Warn("decode schema snapshot", slog.Any("error", err))
		}
		c.touch()
		return
	}
	c.swap(tables)
}

func (c *SchemaCache) touch() {
	c.mu.Lock()
	c.loadedAt = time.Now()
	c.mu.Unlock()
}

// Table returns the cached schema of one table.
func (c *SchemaCache) Table(name string) (Table, bool) {
	c.maybeReload()
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

// FieldTypes implements docgen.SchemaSource. An unknown table yields
// nil and the pipeline falls back to scalar normalization.
func (c *SchemaCache) FieldTypes(table string) docgen.FieldTypes {
	t, ok := c.Table(table)
	if !ok {
		return nil
	}
	kinds := make(map[string]docgen.FieldKind, len(t.Fields))
	for _, f := range t.Fields {
		kinds[f.Name] = fieldKind(f)
	}
	return tableTypes{kinds: kinds}
}
