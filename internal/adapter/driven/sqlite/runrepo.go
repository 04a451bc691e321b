package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create inserts a new run row.
func (r *RunRepo) Create(ctx context.Context, run model.Run) error {
	const query = `
		INSERT INTO runs (id, org, repository, head_sha, previous_rate, new_rate, assistive, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID,
		run.Org,
		run.Repository,
		run.HeadSHA,
		nullFloat(run.PreviousRate),
		nullFloat(run.NewRate),
		run.Assistive,
		string(run.Status),
		run.Error,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records the final status, rates and error of a run.
func (r *RunRepo) Finish(ctx context.Context, run model.Run) error {
	const query = `
		UPDATE runs
		SET previous_rate = ?, new_rate = ?, status = ?, error = ?, finished_at = ?
		WHERE id = ?`

	finishedAt := run.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		nullFloat(run.PreviousRate),
		nullFloat(run.NewRate),
		string(run.Status),
		run.Error,
		formatTime(finishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, driven.ErrRunNotFound)
	}
	return nil
}

// AddOutcome appends a repository outcome to a run.
func (r *RunRepo) AddOutcome(ctx context.Context, runID string, outcome model.RepoOutcome) error {
	const query = `
		INSERT INTO repo_outcomes (run_id, repository, status, reason, labels_created, labels_updated, labels_deleted, issues_relabelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		runID,
		outcome.Repository,
		string(outcome.Status),
		outcome.Reason,
		outcome.LabelsCreated,
		outcome.LabelsUpdated,
		outcome.LabelsDeleted,
		outcome.IssuesRelabelled,
	)
	if err != nil {
		return fmt.Errorf("add outcome for %s to run %s: %w", outcome.Repository, runID, err)
	}
	return nil
}

const runColumns = `id, org, repository, head_sha, previous_rate, new_rate, assistive, status, error, started_at, finished_at`

// Get returns a run with its outcomes in insertion order, or nil, nil if not found.
func (r *RunRepo) Get(ctx context.Context, id string) (*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	outcomes, err := r.listOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Outcomes = outcomes

	return &run, nil
}

// ListRecent returns up to limit runs, newest first, without their outcomes.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var result []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

func (r *RunRepo) listOutcomes(ctx context.Context, runID string) ([]model.RepoOutcome, error) {
	const query = `
		SELECT repository, status, reason, labels_created, labels_updated, labels_deleted, issues_relabelled
		FROM repo_outcomes
		WHERE run_id = ?
		ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var result []model.RepoOutcome
	for rows.Next() {
		var o model.RepoOutcome
		var status string
		if err := rows.Scan(&o.Repository, &status, &o.Reason, &o.LabelsCreated, &o.LabelsUpdated, &o.LabelsDeleted, &o.IssuesRelabelled); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = model.RepoStatus(status)
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return result, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var (
		run                   model.Run
		previousRate, newRate sql.NullFloat64
		status, startedAt     string
		finishedAt            sql.NullString
	)

	err := row.Scan(
		&run.ID,
		&run.Org,
		&run.Repository,
		&run.HeadSHA,
		&previousRate,
		&newRate,
		&run.Assistive,
		&status,
		&run.Error,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return model.Run{}, err
	}

	run.Status = model.RunStatus(status)
	if previousRate.Valid {
		run.PreviousRate = model.Float64Ptr(previousRate.Float64)
	}
	if newRate.Valid {
		run.NewRate = model.Float64Ptr(newRate.Float64)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return model.Run{}, fmt.Errorf("parse started_at for run %s: %w", run.ID, err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = parseTime(finishedAt.String); err != nil {
			return model.Run{}, fmt.Errorf("parse finished_at for run %s: %w", run.ID, err)
		}
	}

	return run, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// storedTimeFormat has a fixed width so stored timestamps sort lexically.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// parseTime parses a time string in any of the formats SQLite may return.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
