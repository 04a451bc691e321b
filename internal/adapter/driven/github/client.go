// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ListOrgRepositories retrieves every repository owned by the organization.
// It handles pagination automatically.
func (c *Client) ListOrgRepositories(ctx context.Context, org string) ([]model.Repository, error) {
	opts := &gh.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []model.Repository

	for {
		repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories for %s (page %d): %w", org, opts.Page, wrapAPIError(err, resp))
		}

		logRateLimit(resp, org+"/repos", opts.Page, len(repos))

		for _, r := range repos {
			all = append(all, mapRepository(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListRepositoryLabels retrieves every label defined in the repository.
// It handles pagination automatically.
func (c *Client) ListRepositoryLabels(ctx context.Context, repo model.RepoRef) ([]model.Label, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var all []model.Label

	for {
		labels, resp, err := c.gh.Issues.ListLabels(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing labels for %s (page %d): %w", repo.FullName(), opts.Page, wrapAPIError(err, resp))
		}

		logRateLimit(resp, repo.FullName()+"/labels", opts.Page, len(labels))

		for _, l := range labels {
			all = append(all, mapLabel(l))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetLabel fetches a single label by name. Returns driven.ErrLabelNotFound on 404.
func (c *Client) GetLabel(ctx context.Context, repo model.RepoRef, name string) (*model.Label, error) {
	label, resp, err := c.gh.Issues.GetLabel(ctx, repo.Owner, repo.Name, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("getting label %q in %s: %w", name, repo.FullName(), driven.ErrLabelNotFound)
		}
		return nil, fmt.Errorf("getting label %q in %s: %w", name, repo.FullName(), wrapAPIError(err, resp))
	}

	l := mapLabel(label)
	return &l, nil
}

// CreateLabel creates a new repository label.
func (c *Client) CreateLabel(ctx context.Context, repo model.RepoRef, label model.Label) error {
	req := &gh.Label{
		Name:  gh.Ptr(label.Name),
		Color: gh.Ptr(label.Color),
	}
	if label.Description != "" {
		req.Description = gh.Ptr(label.Description)
	}

	_, resp, err := c.gh.Issues.CreateLabel(ctx, repo.Owner, repo.Name, req)
	if err != nil {
		return fmt.Errorf("creating label %q in %s: %w", label.Name, repo.FullName(), wrapAPIError(err, resp))
	}

	logRateLimit(resp, repo.FullName()+"/labels", 0, 1)
	return nil
}

// UpdateLabel renames an existing label, carrying over its colour and description.
// A label without a colour is given the price colour.
func (c *Client) UpdateLabel(ctx context.Context, repo model.RepoRef, current model.Label, newName string) error {
	color := current.Color
	if color == "" {
		color = model.LabelColorPrice
	}

	req := &gh.Label{
		Name:        gh.Ptr(newName),
		Color:       gh.Ptr(color),
		Description: gh.Ptr(current.Description),
	}

	_, resp, err := c.gh.Issues.EditLabel(ctx, repo.Owner, repo.Name, current.Name, req)
	if err != nil {
		return fmt.Errorf("renaming label %q to %q in %s: %w", current.Name, newName, repo.FullName(), wrapAPIError(err, resp))
	}

	logRateLimit(resp, repo.FullName()+"/labels", 0, 1)
	return nil
}

// DeleteLabel removes a label from the repository (and from every issue carrying it).
func (c *Client) DeleteLabel(ctx context.Context, repo model.RepoRef, name string) error {
	resp, err := c.gh.Issues.DeleteLabel(ctx, repo.Owner, repo.Name, name)
	if err != nil {
		return fmt.Errorf("deleting label %q in %s: %w", name, repo.FullName(), wrapAPIError(err, resp))
	}

	logRateLimit(resp, repo.FullName()+"/labels", 0, 1)
	return nil
}

// ListIssues retrieves all open issues (including pull requests) for the repository.
// It handles pagination automatically.
func (c *Client) ListIssues(ctx context.Context, repo model.RepoRef) ([]model.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []model.Issue

	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s (page %d): %w", repo.FullName(), opts.ListOptions.Page, wrapAPIError(err, resp))
		}

		logRateLimit(resp, repo.FullName()+"/issues", opts.ListOptions.Page, len(issues))

		for _, i := range issues {
			all = append(all, mapIssue(i))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return all, nil
}

// AddLabelToIssue attaches an existing label to an issue.
func (c *Client) AddLabelToIssue(ctx context.Context, repo model.RepoRef, number int, name string) error {
	_, resp, err := c.gh.Issues.AddLabelsToIssue(ctx, repo.Owner, repo.Name, number, []string{name})
	if err != nil {
		return fmt.Errorf("adding label %q to %s#%d: %w", name, repo.FullName(), number, wrapAPIError(err, resp))
	}

	logRateLimit(resp, repo.FullName()+"/issues/labels", 0, 1)
	return nil
}

// RemoveLabelFromIssue detaches a label from an issue.
func (c *Client) RemoveLabelFromIssue(ctx context.Context, repo model.RepoRef, number int, name string) error {
	resp, err := c.gh.Issues.RemoveLabelForIssue(ctx, repo.Owner, repo.Name, number, name)
	if err != nil {
		return fmt.Errorf("removing label %q from %s#%d: %w", name, repo.FullName(), number, wrapAPIError(err, resp))
	}

	logRateLimit(resp, repo.FullName()+"/issues/labels", 0, 1)
	return nil
}

// GetCommitDiff returns the raw unified diff for a commit.
func (c *Client) GetCommitDiff(ctx context.Context, repo model.RepoRef, sha string) (string, error) {
	diff, resp, err := c.gh.Repositories.GetCommitRaw(ctx, repo.Owner, repo.Name, sha, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("fetching diff for %s@%s: %w", repo.FullName(), sha, wrapAPIError(err, resp))
	}

	logRateLimit(resp, repo.FullName()+"/commits", 0, 1)
	return diff, nil
}

// GetCollaboratorPermission returns the user's permission level on the repository.
func (c *Client) GetCollaboratorPermission(ctx context.Context, repo model.RepoRef, username string) (string, error) {
	level, resp, err := c.gh.Repositories.GetPermissionLevel(ctx, repo.Owner, repo.Name, username)
	if err != nil {
		return "", fmt.Errorf("fetching permission of %s on %s: %w", username, repo.FullName(), wrapAPIError(err, resp))
	}

	return level.GetPermission(), nil
}

// GetOrgMembershipRole returns the user's role within the organization.
func (c *Client) GetOrgMembershipRole(ctx context.Context, org, username string) (string, error) {
	membership, resp, err := c.gh.Organizations.GetOrgMembership(ctx, username, org)
	if err != nil {
		return "", fmt.Errorf("fetching membership of %s in %s: %w", username, org, wrapAPIError(err, resp))
	}

	return membership.GetRole(), nil
}

// GetRateLimit returns the current core API quota. The rate limit endpoint
// itself does not count against the quota.
func (c *Client) GetRateLimit(ctx context.Context) (driven.RateLimit, error) {
	limits, resp, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return driven.RateLimit{}, fmt.Errorf("fetching rate limit: %w", wrapAPIError(err, resp))
	}

	core := limits.GetCore()
	if core == nil {
		return driven.RateLimit{}, fmt.Errorf("fetching rate limit: response has no core quota")
	}

	return driven.RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapRepository converts a go-github Repository to a domain model Repository.
func mapRepository(r *gh.Repository) model.Repository {
	return model.Repository{
		RepoRef: model.RepoRef{
			Owner: r.GetOwner().GetLogin(),
			Name:  r.GetName(),
		},
		Archived: r.GetArchived(),
	}
}

// mapLabel converts a go-github Label to a domain model Label.
func mapLabel(l *gh.Label) model.Label {
	return model.Label{
		Name:        l.GetName(),
		Color:       l.GetColor(),
		Description: l.GetDescription(),
	}
}

// mapIssue converts a go-github Issue to a domain model Issue.
func mapIssue(i *gh.Issue) model.Issue {
	labels := make([]model.Label, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, mapLabel(l))
	}

	return model.Issue{
		Number:        i.GetNumber(),
		Title:         i.GetTitle(),
		Labels:        labels,
		IsPullRequest: i.IsPullRequest(),
	}
}
