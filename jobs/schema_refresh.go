package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fsh-formation/templater/internal/airtable"
)

// SchemaRefreshJob keeps the shared field-type classification fresh.
type SchemaRefreshJob struct {
	cache  *airtable.SchemaCache
	logger *slog.Logger
}

// NewSchemaRefreshJob constructs the job.
func NewSchemaRefreshJob(cache *airtable.SchemaCache, logger *slog.Logger) *SchemaRefreshJob {
	return &SchemaRefreshJob{cache: cache, logger: logger}
}

// Handle processes TaskSchemaRefresh tasks.
func (j *SchemaRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SchemaRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.cache.Refresh(ctx); err != nil {
		j.logger.Warn("schema refresh failed",
			slog.String("reason", payload.Reason),
			slog.Any("error", err))
		return err
	}
	j.logger.Info("schema refresh done", slog.String("reason", payload.Reason))
	return nil
}
