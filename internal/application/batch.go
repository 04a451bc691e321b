package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// quotaResetSlack is added to the reported reset time before retrying.
const quotaResetSlack = time.Second

// Quota is the last known state of the API quota. It is threaded through
// each repository step instead of living in shared state.
type Quota struct {
	Known     bool
	Remaining int
	Reset     time.Time
}

func quotaFrom(rl driven.RateLimit) Quota {
	return Quota{Known: true, Remaining: rl.Remaining, Reset: rl.Reset}
}

// exhausted reports whether the snapshot says no calls are left before reset.
func (q Quota) exhausted(now time.Time) bool {
	return q.Known && q.Remaining == 0 && now.Before(q.Reset)
}

// BatchReport summarises one organization sweep.
type BatchReport struct {
	Outcomes []model.RepoOutcome
}

// Count returns the number of repositories that ended in the given status.
func (r BatchReport) Count(status model.RepoStatus) int {
	var n int
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// BatchOption customises a BatchDriver.
type BatchOption func(*BatchDriver)

// WithClock overrides the time source used for quota resets.
func WithClock(now func() time.Time) BatchOption {
	return func(d *BatchDriver) { d.now = now }
}

// WithSleeper overrides how the driver waits for a quota reset.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) BatchOption {
	return func(d *BatchDriver) { d.sleep = sleep }
}

// BatchDriver reconciles every repository of an organization in turn. A
// failure in one repository is logged and recorded; it never stops the sweep.
type BatchDriver struct {
	ghClient driven.GitHubClient
	labels   *LabelReconciler
	assigner *PriceAssigner
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBatchDriver creates a BatchDriver with its reconciler and assigner.
func NewBatchDriver(ghClient driven.GitHubClient, logger *slog.Logger, opts ...BatchOption) *BatchDriver {
	d := &BatchDriver{
		ghClient: ghClient,
		labels:   NewLabelReconciler(ghClient, logger),
		assigner: NewPriceAssigner(ghClient, logger),
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run sweeps the organization. It returns an error only when the repository
// list cannot be read or ctx is canceled.
func (d *BatchDriver) Run(ctx context.Context, org string, rates model.Rates, settings model.Settings) (BatchReport, error) {
	var report BatchReport
	start := d.now()

	if rates.NewBaseRate == nil || rates.Unchanged() {
		d.logger.Info("base rate unchanged, nothing to reconcile", "org", org)
		return report, nil
	}

	repos, err := d.ghClient.ListOrgRepositories(ctx, org)
	if err != nil {
		return report, fmt.Errorf("listing repositories for %s: %w", org, err)
	}

	quota := Quota{}
	if rl, err := d.ghClient.GetRateLimit(ctx); err != nil {
		d.logger.Warn("rate limit lookup failed", "org", org, "error", err)
	} else {
		quota = quotaFrom(rl)
	}

	for i := range repos {
		if ctx.Err() != nil {
			for _, rest := range repos[i:] {
				report.Outcomes = append(report.Outcomes, model.RepoOutcome{Repository: rest.FullName(), Status: model.RepoStatusPending})
			}
			return report, ctx.Err()
		}

		var outcome model.RepoOutcome
		outcome, quota, err = d.processWithBackoff(ctx, &repos[i], rates, settings, quota)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	d.logger.Info("organization sweep complete",
		"org", org,
		"repos", len(repos),
		"done", report.Count(model.RepoStatusDone),
		"skipped", report.Count(model.RepoStatusSkipped),
		"rate_limited", report.Count(model.RepoStatusRateLimited),
		"duration", d.now().Sub(start).Round(time.Millisecond),
	)

	return report, nil
}

// processWithBackoff runs one repository, waiting out an exhausted quota and
// retrying exactly once. The retry continues from what the first attempt
// already changed. The returned error is non-nil only for cancellation.
func (d *BatchDriver) processWithBackoff(ctx context.Context, repo *model.Repository, rates model.Rates, settings model.Settings, quota Quota) (model.RepoOutcome, Quota, error) {
	var attempt repoAttempt

	if quota.exhausted(d.now()) {
		var err error
		if quota, err = d.waitForReset(ctx, repo, quota); err != nil {
			return model.RepoOutcome{}, quota, err
		}
	}

	outcome, err := d.processRepo(ctx, repo, rates, settings, &attempt)
	if err == nil {
		return outcome, quota, nil
	}
	if ctx.Err() != nil {
		return outcome, quota, ctx.Err()
	}

	apiErr, ok := driven.AsAPIError(err)
	if !ok || !apiErr.QuotaExhausted() {
		return d.skip(outcome, repo, err), quota, nil
	}

	d.logger.Warn("rate limit exhausted, waiting for reset",
		"repo", repo.FullName(),
		"reset", apiErr.Reset,
	)
	quota = Quota{Known: true, Remaining: 0, Reset: apiErr.Reset}
	if quota, err = d.waitForReset(ctx, repo, quota); err != nil {
		return outcome, quota, err
	}

	outcome, err = d.processRepo(ctx, repo, rates, settings, &attempt)
	if err == nil {
		return outcome, quota, nil
	}
	if ctx.Err() != nil {
		return outcome, quota, ctx.Err()
	}

	if apiErr, ok := driven.AsAPIError(err); ok && apiErr.QuotaExhausted() {
		d.logger.Error("rate limit exhausted again after retry, skipping repository",
			"repo", repo.FullName(),
			"error", err,
		)
		outcome.Status = model.RepoStatusRateLimited
		outcome.Reason = "rate limit exhausted after retry"
		return outcome, Quota{Known: true, Remaining: 0, Reset: apiErr.Reset}, nil
	}

	return d.skip(outcome, repo, err), quota, nil
}

// waitForReset sleeps until the quota resets and re-queries it.
func (d *BatchDriver) waitForReset(ctx context.Context, repo *model.Repository, quota Quota) (Quota, error) {
	if quota.Reset.IsZero() {
		if rl, err := d.ghClient.GetRateLimit(ctx); err == nil {
			quota = quotaFrom(rl)
		}
	}

	wait := quota.Reset.Sub(d.now()) + quotaResetSlack
	d.logger.Info("waiting for rate limit reset", "repo", repo.FullName(), "wait", wait.Round(time.Second))
	if err := d.sleep(ctx, wait); err != nil {
		return quota, err
	}

	rl, err := d.ghClient.GetRateLimit(ctx)
	if err != nil {
		d.logger.Warn("rate limit lookup failed after reset", "repo", repo.FullName(), "error", err)
		return Quota{}, nil
	}
	d.logger.Info("rate limit reset", "remaining", rl.Remaining, "limit", rl.Limit)
	return quotaFrom(rl), nil
}

// repoAttempt carries one repository's state across a retry. The issue
// snapshot is taken once, before any label changes, and every attempt's
// label changes are projected onto it in order.
type repoAttempt struct {
	issues  []model.Issue
	listed  bool
	changes []LabelChanges
}

// projectedIssues returns the snapshot with every recorded change applied.
func (a *repoAttempt) projectedIssues() []model.Issue {
	issues := make([]model.Issue, len(a.issues))
	for i, issue := range a.issues {
		for _, c := range a.changes {
			issue.Labels = c.Project(issue.Labels)
		}
		issues[i] = issue
	}
	return issues
}

// recordLabelCounts totals the label mutations of every attempt.
func (a *repoAttempt) recordLabelCounts(outcome *model.RepoOutcome) {
	outcome.LabelsCreated, outcome.LabelsUpdated, outcome.LabelsDeleted = 0, 0, 0
	for _, c := range a.changes {
		outcome.LabelsCreated += c.Created
		outcome.LabelsUpdated += c.Updated
		outcome.LabelsDeleted += c.Deleted
	}
}

// processRepo reconciles labels and issue prices for one repository.
func (d *BatchDriver) processRepo(ctx context.Context, repo *model.Repository, rates model.Rates, settings model.Settings, attempt *repoAttempt) (model.RepoOutcome, error) {
	outcome := model.RepoOutcome{Repository: repo.FullName(), Status: model.RepoStatusProcessing}

	if repo.Archived {
		d.logger.Info("repository archived, skipping", "repo", repo.FullName())
		outcome.Status = model.RepoStatusSkipped
		outcome.Reason = "archived"
		return outcome, nil
	}

	labels, err := d.ghClient.ListRepositoryLabels(ctx, repo.RepoRef)
	if err != nil {
		attempt.recordLabelCounts(&outcome)
		return outcome, err
	}
	if len(labels) == 0 {
		d.logger.Info("repository has no labels, skipping", "repo", repo.FullName())
		outcome.Status = model.RepoStatusSkipped
		outcome.Reason = "no labels"
		return outcome, nil
	}
	repo.Labels = labels

	// Issues are read before labels change and projected through the changes
	// afterwards, so an issue whose label was merged away still reads as priced.
	// A retry keeps the first snapshot: by then merged labels are gone from the
	// issues themselves.
	if !attempt.listed {
		issues, err := d.ghClient.ListIssues(ctx, repo.RepoRef)
		if err != nil {
			return outcome, err
		}
		attempt.issues = issues
		attempt.listed = true
	}

	changes, err := d.labels.Reconcile(ctx, repo, rates, settings)
	attempt.changes = append(attempt.changes, changes)
	attempt.recordLabelCounts(&outcome)
	if err != nil {
		return outcome, err
	}

	relabelled, err := d.assigner.Assign(ctx, repo.RepoRef, attempt.projectedIssues(), *rates.NewBaseRate, settings)
	outcome.IssuesRelabelled = relabelled
	if err != nil {
		return outcome, err
	}

	outcome.Status = model.RepoStatusDone
	return outcome, nil
}

// skip records a recoverable per-repository failure.
func (d *BatchDriver) skip(outcome model.RepoOutcome, repo *model.Repository, err error) model.RepoOutcome {
	outcome.Status = model.RepoStatusSkipped
	outcome.Reason = classifyRepoError(err)
	d.logger.Error("repository skipped",
		"repo", repo.FullName(),
		"reason", outcome.Reason,
		"error", err,
	)
	return outcome
}

// classifyRepoError names a per-repository failure for logs and the audit log.
func classifyRepoError(err error) string {
	var apiErr *driven.APIError
	if !errors.As(err, &apiErr) {
		return "error"
	}

	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return "not found"
	case http.StatusGone:
		return "archived"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "server error"
	default:
		return fmt.Sprintf("github api error %d", apiErr.StatusCode)
	}
}

// sleepContext waits for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
