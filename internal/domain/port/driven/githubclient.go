package driven

import (
	"context"
	"time"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
)

// RateLimit is a snapshot of the caller's core API quota.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// GitHubClient defines the driven port for every GitHub operation the
// watcher performs. List methods handle pagination internally.
// Platform failures are returned wrapping *APIError.
type GitHubClient interface {
	// Organization and repository reads

	ListOrgRepositories(ctx context.Context, org string) ([]model.Repository, error)
	ListRepositoryLabels(ctx context.Context, repo model.RepoRef) ([]model.Label, error)
	// GetLabel returns ErrLabelNotFound when the repository has no label with that name.
	GetLabel(ctx context.Context, repo model.RepoRef, name string) (*model.Label, error)

	// Label writes

	CreateLabel(ctx context.Context, repo model.RepoRef, label model.Label) error
	// UpdateLabel renames current to newName, keeping its colour and description.
	UpdateLabel(ctx context.Context, repo model.RepoRef, current model.Label, newName string) error
	DeleteLabel(ctx context.Context, repo model.RepoRef, name string) error

	// Issues

	// ListIssues returns every open issue and pull request in the repository.
	ListIssues(ctx context.Context, repo model.RepoRef) ([]model.Issue, error)
	AddLabelToIssue(ctx context.Context, repo model.RepoRef, number int, name string) error
	RemoveLabelFromIssue(ctx context.Context, repo model.RepoRef, number int, name string) error

	// Commits, roles and quota

	// GetCommitDiff returns the unified diff of a single commit.
	GetCommitDiff(ctx context.Context, repo model.RepoRef, sha string) (string, error)
	// GetCollaboratorPermission returns "admin", "write", "read" or "none".
	GetCollaboratorPermission(ctx context.Context, repo model.RepoRef, username string) (string, error)
	// GetOrgMembershipRole returns "admin", "member" or "billing_manager".
	GetOrgMembershipRole(ctx context.Context, org, username string) (string, error)
	GetRateLimit(ctx context.Context) (RateLimit, error)
}
