// Package jobs hosts the background worker and its task definitions.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSchemaRefresh re-fetches the data-store field-type schema so
	// rich-text routing stays current without a restart.
	TaskSchemaRefresh = "schema:refresh"
)

// SchemaRefreshPayload carries the trigger reason for diagnostics.
type SchemaRefreshPayload struct {
	Reason string `json:"reason"`
}

// NewSchemaRefreshTask constructs an Asynq task.
func NewSchemaRefreshTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(SchemaRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSchemaRefresh, data), nil
}
