package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// ErrMissingPayloadField is returned when the push payload lacks the branch,
// owner or repository needed to locate the configuration change.
var ErrMissingPayloadField = errors.New("missing required payload field")

// TrackedConfigFiles are the configuration paths whose modification triggers
// a base rate reconciliation.
var TrackedConfigFiles = []string{
	".github/ubiquibot-config.yml",
	".github/.ubiquibot-config.yml",
}

// Trigger watches push events for changes to the organization configuration
// and drives the reconciliation when the base rate changes.
type Trigger struct {
	gate      *AuthGate
	extractor *RateExtractor
	driver    *BatchDriver
	runs      driven.RunStore
	logger    *slog.Logger
}

// NewTrigger wires a Trigger and its collaborators around one GitHub client.
// runs may be nil, in which case runs are not recorded.
func NewTrigger(ghClient driven.GitHubClient, runs driven.RunStore, logger *slog.Logger, opts ...BatchOption) *Trigger {
	return &Trigger{
		gate:      NewAuthGate(ghClient, logger),
		extractor: NewRateExtractor(ghClient, logger),
		driver:    NewBatchDriver(ghClient, logger, opts...),
		runs:      runs,
		logger:    logger,
	}
}

// Handle processes one event. Events that need no action return nil; an
// unauthorized push, a malformed payload or an unreadable diff return an
// error before anything is mutated.
func (t *Trigger) Handle(ctx context.Context, settings model.Settings, event model.PushEvent) error {
	if event.EventName != "push" {
		t.logger.Warn("unsupported event", "event_name", event.EventName)
		return nil
	}

	if event.Sender == "" || event.Pusher == "" {
		t.logger.Error("sender or pusher is missing", "sender", event.Sender, "pusher", event.Pusher)
		return nil
	}

	if err := t.gate.Authorize(ctx, event); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			t.logger.Warn("changes should be pushed and triggered by an admin or billing manager",
				"pusher", event.Pusher,
				"sender", event.Sender,
			)
		}
		return err
	}

	if event.RepoName == "" {
		return fmt.Errorf("%w: repository name", ErrMissingPayloadField)
	}

	if event.CreatesBranch() {
		t.logger.Info("skipping push event, a new branch was created", "ref", event.Ref)
		return nil
	}

	changed := event.ChangedFiles()
	if len(changed) == 0 {
		t.logger.Info("no files were changed in the commits, no action required")
		return nil
	}

	for _, file := range TrackedConfigFiles {
		if slices.Contains(changed, file) {
			t.logger.Info("tracked config file modified or added", "file", file)
			return t.updateBaseRate(ctx, settings, event)
		}
	}

	t.logger.Info("no tracked config file changed", "files", len(changed))
	return nil
}

// updateBaseRate extracts the rate change from the head commit and sweeps the organization.
func (t *Trigger) updateBaseRate(ctx context.Context, settings model.Settings, event model.PushEvent) error {
	branch := event.Branch()
	if branch == "" || event.RepoOwner == "" || event.RepoName == "" {
		return fmt.Errorf("%w: branch %q, owner %q, repo %q", ErrMissingPayloadField, branch, event.RepoOwner, event.RepoName)
	}

	repo := model.RepoRef{Owner: event.RepoOwner, Name: event.RepoName}
	run := model.Run{
		ID:         uuid.NewString(),
		Org:        event.Org(),
		Repository: repo.FullName(),
		HeadSHA:    event.HeadCommitID,
		Assistive:  settings.Features.AssistivePricing,
		Status:     model.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	t.recordStart(ctx, run)

	rates, err := t.extractor.Extract(ctx, repo, event.HeadCommitID)
	if err != nil {
		t.recordFinish(ctx, run, model.RunStatusFailed, err)
		return err
	}
	run.PreviousRate = rates.PreviousBaseRate
	run.NewRate = rates.NewBaseRate

	_, err = t.sweep(ctx, run, rates, settings)
	return err
}

// Reconcile sweeps org for an explicit rate change, bypassing event handling.
// It is the operator path for re-running a failed or partial reconciliation.
func (t *Trigger) Reconcile(ctx context.Context, org string, rates model.Rates, settings model.Settings) (BatchReport, error) {
	run := model.Run{
		ID:           uuid.NewString(),
		Org:          org,
		PreviousRate: rates.PreviousBaseRate,
		NewRate:      rates.NewBaseRate,
		Assistive:    settings.Features.AssistivePricing,
		Status:       model.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	t.recordStart(ctx, run)

	return t.sweep(ctx, run, rates, settings)
}

// sweep runs the batch driver for a recorded run unless there is nothing to change.
func (t *Trigger) sweep(ctx context.Context, run model.Run, rates model.Rates, settings model.Settings) (BatchReport, error) {
	if !rates.Found() {
		t.recordFinish(ctx, run, model.RunStatusSkipped, nil)
		return BatchReport{}, nil
	}
	if rates.NewBaseRate == nil || rates.Unchanged() {
		t.logger.Info("base rate unchanged, no labels updated",
			"org", run.Org,
			"previous_rate", floatOrNil(rates.PreviousBaseRate),
			"new_rate", floatOrNil(rates.NewBaseRate),
		)
		t.recordFinish(ctx, run, model.RunStatusSkipped, nil)
		return BatchReport{}, nil
	}

	report, err := t.driver.Run(ctx, run.Org, rates, settings)
	for _, outcome := range report.Outcomes {
		t.recordOutcome(ctx, run.ID, outcome)
	}
	if err != nil {
		t.recordFinish(ctx, run, model.RunStatusFailed, err)
		return report, err
	}

	t.recordFinish(ctx, run, model.RunStatusCompleted, nil)
	return report, nil
}

// Run recording never fails a reconciliation; store errors are logged.

func (t *Trigger) recordStart(ctx context.Context, run model.Run) {
	if t.runs == nil {
		return
	}
	if err := t.runs.Create(ctx, run); err != nil {
		t.logger.Error("record run start failed", "run_id", run.ID, "error", err)
	}
}

func (t *Trigger) recordOutcome(ctx context.Context, runID string, outcome model.RepoOutcome) {
	if t.runs == nil {
		return
	}
	if err := t.runs.AddOutcome(ctx, runID, outcome); err != nil {
		t.logger.Error("record repo outcome failed", "run_id", runID, "repo", outcome.Repository, "error", err)
	}
}

func (t *Trigger) recordFinish(ctx context.Context, run model.Run, status model.RunStatus, runErr error) {
	if t.runs == nil {
		return
	}
	run.Status = status
	run.FinishedAt = time.Now().UTC()
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// The run's own context may already be canceled; the audit row still needs closing.
	if err := t.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		t.logger.Error("record run finish failed", "run_id", run.ID, "error", err)
	}
}
