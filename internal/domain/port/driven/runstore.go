package driven

import (
	"context"
	"errors"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
)

// ErrRunNotFound indicates the requested run does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunStore defines the driven port for the reconciliation audit log.
// Finish returns ErrRunNotFound if the run was never created.
type RunStore interface {
	Create(ctx context.Context, run model.Run) error
	Finish(ctx context.Context, run model.Run) error
	AddOutcome(ctx context.Context, runID string, outcome model.RepoOutcome) error
	// Get returns the run with its outcomes, or nil, nil if it does not exist.
	Get(ctx context.Context, id string) (*model.Run, error)
	ListRecent(ctx context.Context, limit int) ([]model.Run, error)
}
