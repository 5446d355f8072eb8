// Package store records the history of batch runs.
package store

import (
	"context"
	"time"

	"github.com/lowcarbon-viz/lowcarbon/internal/model"
)

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded invocation of the batch.
type Run struct {
	ID          string            `json:"id"`
	Status      RunStatus         `json:"status"`
	RawDir      string            `json:"raw_dir"`
	OutDir      string            `json:"out_dir"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	RowCounts   map[string]int    `json:"row_counts,omitempty"`
	Diagnostics model.Diagnostics `json:"diagnostics,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Duration is the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the run history interface.
type Store interface {
	CreateRun(ctx context.Context, rawDir, outDir string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, rows map[string]int, diags model.Diagnostics) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
