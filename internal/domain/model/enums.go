package model

// RunStatus represents the state of a triggered reconciliation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped" // Nothing to do: no tracked change, no rates, unchanged rate.
	RunStatusFailed    RunStatus = "failed"
)

// RepoStatus represents the state of a single repository within a batch.
type RepoStatus string

const (
	RepoStatusPending     RepoStatus = "pending"
	RepoStatusProcessing  RepoStatus = "processing"
	RepoStatusDone        RepoStatus = "done"
	RepoStatusSkipped     RepoStatus = "skipped"
	RepoStatusRateLimited RepoStatus = "rate_limited"
)
