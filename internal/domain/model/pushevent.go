package model

import "strings"

// ZeroSHA is the "before" SHA GitHub sends when a push creates a branch.
const ZeroSHA = "0000000000000000000000000000000000000000"

// CommitFiles lists the paths a single pushed commit touched.
type CommitFiles struct {
	ID       string
	Added    []string
	Modified []string
}

// PushEvent carries the push payload fields the watcher consumes.
type PushEvent struct {
	EventName    string
	Ref          string
	Before       string
	After        string
	HeadCommitID string
	RepoName     string
	RepoOwner    string
	Organization string
	Sender       string // Who triggered the event, e.g. by merging.
	Pusher       string // Who pushed the commits.
	Commits      []CommitFiles
}

// Branch returns the branch name from a "refs/heads/<branch>" ref, or "".
func (e PushEvent) Branch() string {
	branch, ok := strings.CutPrefix(e.Ref, "refs/heads/")
	if !ok {
		return ""
	}
	return branch
}

// Org returns the organization login, falling back to the repository owner.
func (e PushEvent) Org() string {
	if e.Organization != "" {
		return e.Organization
	}
	return e.RepoOwner
}

// CreatesBranch reports whether the push created a new branch.
func (e PushEvent) CreatesBranch() bool {
	return e.Before == ZeroSHA
}

// ChangedFiles collects every modified and added path across all commits.
func (e PushEvent) ChangedFiles() []string {
	var files []string
	for _, c := range e.Commits {
		files = append(files, c.Modified...)
		files = append(files, c.Added...)
	}
	return files
}
