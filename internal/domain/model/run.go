package model

import "time"

// Run is the audit record of one triggered reconciliation.
type Run struct {
	ID           string
	Org          string
	Repository   string // Repository whose push triggered the run.
	HeadSHA      string
	PreviousRate *float64
	NewRate      *float64
	Assistive    bool
	Status       RunStatus
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcomes     []RepoOutcome // Populated on single-run reads only.
}

// RepoOutcome records how one repository fared during a batch.
type RepoOutcome struct {
	Repository       string
	Status           RepoStatus
	Reason           string
	LabelsCreated    int
	LabelsUpdated    int
	LabelsDeleted    int
	IssuesRelabelled int
}
