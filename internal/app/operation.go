package app

import (
	"time"

	"modsync/internal/modsync"
)

// Operation tracks one CLI command run. Its ID tags every log line written
// while the command runs.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation starts tracking a command at now.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405Z"),
		Name:      name,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the operation as failed. A nil error leaves it unchanged.
func (op *Operation) Fail(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Finish logs the outcome and duration of the operation.
func (op *Operation) Finish(logger modsync.Logger, now time.Time) {
	logger.Info("operation finished",
		"operation", op.Name,
		"status", op.Status,
		"duration", now.Sub(op.StartedAt).Round(time.Millisecond),
	)
}
