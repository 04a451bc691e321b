package application_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// --- Fake GitHub ---

// call is one recorded mutation or lookup against the fake.
type call struct {
	Op    string
	Repo  string
	Issue int
	Arg   string
}

func (c call) String() string {
	if c.Issue != 0 {
		return fmt.Sprintf("%s %s#%d %s", c.Op, c.Repo, c.Issue, c.Arg)
	}
	return fmt.Sprintf("%s %s %s", c.Op, c.Repo, c.Arg)
}

type fakeRepo struct {
	archived bool
	labels   []model.Label
	issues   []model.Issue
}

// fakeGitHub is an in-memory GitHub that behaves like the real API for the
// operations the watcher uses: renaming or deleting a label also updates every
// issue carrying it, and attaching an unknown label creates it.
type fakeGitHub struct {
	mu sync.Mutex

	org      string
	repoList []string
	repos    map[string]*fakeRepo

	diff    string
	diffErr error

	permissions map[string]string
	roles       map[string]string

	rate driven.RateLimit

	// labelErrs queues errors returned by ListRepositoryLabels per repository.
	labelErrs map[string][]error
	// addErrs queues errors returned by AddLabelToIssue per repository.
	addErrs map[string][]error

	calls []call
}

func newFakeGitHub(org string) *fakeGitHub {
	return &fakeGitHub{
		org:         org,
		repos:       make(map[string]*fakeRepo),
		permissions: make(map[string]string),
		roles:       make(map[string]string),
		labelErrs:   make(map[string][]error),
		addErrs:     make(map[string][]error),
		rate:        driven.RateLimit{Limit: 5000, Remaining: 5000},
	}
}

func (f *fakeGitHub) addRepo(name string, labels ...string) *fakeRepo {
	r := &fakeRepo{}
	for _, l := range labels {
		r.labels = append(r.labels, model.Label{Name: l, Color: model.LabelColorDefault})
	}
	f.repos[f.org+"/"+name] = r
	f.repoList = append(f.repoList, name)
	return r
}

func (r *fakeRepo) addIssue(number int, labels ...string) {
	issue := model.Issue{Number: number}
	for _, l := range labels {
		issue.Labels = append(issue.Labels, model.Label{Name: l})
	}
	r.issues = append(r.issues, issue)
}

func (f *fakeGitHub) repo(name string) *fakeRepo {
	return f.repos[f.org+"/"+name]
}

func (f *fakeGitHub) record(c call) {
	f.calls = append(f.calls, c)
}

// callsOf returns recorded calls with the given operation.
func (f *fakeGitHub) callsOf(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// mutations returns every recorded call that changes state.
func (f *fakeGitHub) mutations() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		switch c.Op {
		case "create_label", "update_label", "delete_label", "add_issue_label", "remove_issue_label":
			out = append(out, c)
		}
	}
	return out
}

func labelNames(labels []model.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

func priceLabelNames(labels []model.Label) []string {
	var names []string
	for _, l := range labels {
		if l.Kind() == model.LabelKindPrice {
			names = append(names, l.Name)
		}
	}
	return names
}

func notFound() error {
	return &driven.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (f *fakeGitHub) lookup(repo model.RepoRef) (*fakeRepo, error) {
	r, ok := f.repos[repo.FullName()]
	if !ok {
		return nil, notFound()
	}
	return r, nil
}

func (f *fakeGitHub) ListOrgRepositories(_ context.Context, org string) ([]model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "list_repos", Arg: org})
	var out []model.Repository
	for _, name := range f.repoList {
		out = append(out, model.Repository{
			RepoRef:  model.RepoRef{Owner: f.org, Name: name},
			Archived: f.repos[f.org+"/"+name].archived,
		})
	}
	return out, nil
}

func (f *fakeGitHub) ListRepositoryLabels(_ context.Context, repo model.RepoRef) ([]model.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "list_labels", Repo: repo.FullName()})
	if errs := f.labelErrs[repo.FullName()]; len(errs) > 0 {
		f.labelErrs[repo.FullName()] = errs[1:]
		return nil, errs[0]
	}
	r, err := f.lookup(repo)
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.labels), nil
}

func (f *fakeGitHub) GetLabel(_ context.Context, repo model.RepoRef, name string) (*model.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "get_label", Repo: repo.FullName(), Arg: name})
	r, err := f.lookup(repo)
	if err != nil {
		return nil, err
	}
	for _, l := range r.labels {
		if strings.EqualFold(l.Name, name) {
			found := l
			return &found, nil
		}
	}
	return nil, fmt.Errorf("getting label %q: %w", name, driven.ErrLabelNotFound)
}

func (f *fakeGitHub) CreateLabel(_ context.Context, repo model.RepoRef, label model.Label) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "create_label", Repo: repo.FullName(), Arg: label.Name})
	r, err := f.lookup(repo)
	if err != nil {
		return err
	}
	for _, l := range r.labels {
		if strings.EqualFold(l.Name, label.Name) {
			return &driven.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "already_exists"}
		}
	}
	r.labels = append(r.labels, label)
	return nil
}

func (f *fakeGitHub) UpdateLabel(_ context.Context, repo model.RepoRef, current model.Label, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "update_label", Repo: repo.FullName(), Arg: current.Name + " -> " + newName})
	r, err := f.lookup(repo)
	if err != nil {
		return err
	}
	found := false
	for i := range r.labels {
		if r.labels[i].Name == current.Name {
			r.labels[i].Name = newName
			found = true
		}
	}
	if !found {
		return notFound()
	}
	for i := range r.issues {
		for j := range r.issues[i].Labels {
			if r.issues[i].Labels[j].Name == current.Name {
				r.issues[i].Labels[j].Name = newName
			}
		}
	}
	return nil
}

func (f *fakeGitHub) DeleteLabel(_ context.Context, repo model.RepoRef, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "delete_label", Repo: repo.FullName(), Arg: name})
	r, err := f.lookup(repo)
	if err != nil {
		return err
	}
	before := len(r.labels)
	r.labels = slices.DeleteFunc(r.labels, func(l model.Label) bool { return l.Name == name })
	if len(r.labels) == before {
		return notFound()
	}
	for i := range r.issues {
		r.issues[i].Labels = slices.DeleteFunc(r.issues[i].Labels, func(l model.Label) bool { return l.Name == name })
	}
	return nil
}

func (f *fakeGitHub) ListIssues(_ context.Context, repo model.RepoRef) ([]model.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "list_issues", Repo: repo.FullName()})
	r, err := f.lookup(repo)
	if err != nil {
		return nil, err
	}
	out := make([]model.Issue, 0, len(r.issues))
	for _, i := range r.issues {
		i.Labels = slices.Clone(i.Labels)
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeGitHub) issue(r *fakeRepo, number int) *model.Issue {
	for i := range r.issues {
		if r.issues[i].Number == number {
			return &r.issues[i]
		}
	}
	return nil
}

func (f *fakeGitHub) AddLabelToIssue(_ context.Context, repo model.RepoRef, number int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "add_issue_label", Repo: repo.FullName(), Issue: number, Arg: name})
	if errs := f.addErrs[repo.FullName()]; len(errs) > 0 {
		f.addErrs[repo.FullName()] = errs[1:]
		return errs[0]
	}
	r, err := f.lookup(repo)
	if err != nil {
		return err
	}
	issue := f.issue(r, number)
	if issue == nil {
		return notFound()
	}
	if !slices.ContainsFunc(r.labels, func(l model.Label) bool { return l.Name == name }) {
		r.labels = append(r.labels, model.Label{Name: name, Color: model.LabelColorDefault})
	}
	if !issue.HasLabel(name) {
		issue.Labels = append(issue.Labels, model.Label{Name: name})
	}
	return nil
}

func (f *fakeGitHub) RemoveLabelFromIssue(_ context.Context, repo model.RepoRef, number int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "remove_issue_label", Repo: repo.FullName(), Issue: number, Arg: name})
	r, err := f.lookup(repo)
	if err != nil {
		return err
	}
	issue := f.issue(r, number)
	if issue == nil || !issue.HasLabel(name) {
		return notFound()
	}
	issue.Labels = slices.DeleteFunc(issue.Labels, func(l model.Label) bool { return l.Name == name })
	return nil
}

func (f *fakeGitHub) GetCommitDiff(_ context.Context, repo model.RepoRef, sha string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "get_diff", Repo: repo.FullName(), Arg: sha})
	return f.diff, f.diffErr
}

func (f *fakeGitHub) GetCollaboratorPermission(_ context.Context, repo model.RepoRef, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "get_permission", Repo: repo.FullName(), Arg: username})
	if p, ok := f.permissions[username]; ok {
		return p, nil
	}
	return "", notFound()
}

func (f *fakeGitHub) GetOrgMembershipRole(_ context.Context, org, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "get_membership", Repo: org, Arg: username})
	if r, ok := f.roles[username]; ok {
		return r, nil
	}
	return "", notFound()
}

func (f *fakeGitHub) GetRateLimit(_ context.Context) (driven.RateLimit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Op: "rate_limit"})
	return f.rate, nil
}

// --- Logging helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a logger writing text records to the returned buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// --- Settings helpers ---

func testSettings(assistive bool) model.Settings {
	s := model.Settings{
		Labels: model.LabelSettings{
			Time:     []string{"Time: <1 Hour", "Time: <2 Hours"},
			Priority: []string{"Priority: 1 (Normal)"},
		},
		Features: model.FeatureSettings{AssistivePricing: assistive},
	}
	s.ApplyDefaults()
	return s
}

func rates(previous, next float64) model.Rates {
	return model.Rates{PreviousBaseRate: model.Float64Ptr(previous), NewBaseRate: model.Float64Ptr(next)}
}
