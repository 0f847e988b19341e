// Package history persists an audit trail of generated documents.
package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// undefinedTable is the SQLSTATE reported before migrations have run.
const undefinedTable = "42P01"

// Entry is one generated-report record.
type Entry struct {
	ID        uuid.UUID
	Route     string
	Table     string
	RecordID  string
	FileName  string
	Bytes     int
	Duration  time.Duration
	CreatedAt time.Time
}

// Repository writes generation entries to PostgreSQL. A nil pool
// disables persistence; recording never fails a request.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a Repository. pool may be nil.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

// Record inserts one entry, assigning an id when absent.
func (r *Repository) Record(ctx context.Context, e Entry) {
	if r == nil || r.pool == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	const query = `
		INSERT INTO report_history (id, route, source_table, record_id, file_name, bytes, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.Route, e.Table, e.RecordID, e.FileName, e.Bytes, e.Duration.Milliseconds(), e.CreatedAt)
	if err == nil {
		return
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		r.warn("history table missing, entry dropped", err)
		return
	}
	r.warn("record history entry", err)
}

// Recent lists the latest entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if r == nil || r.pool == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, route, source_table, record_id, file_name, bytes, duration_ms, created_at
		FROM report_history
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.Route, &e.Table, &e.RecordID, &e.FileName, &e.Bytes, &durationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) warn(msg string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, slog.Any("error", err))
}
