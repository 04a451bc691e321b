package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/pricing"
)

// LabelChanges records the label mutations made in one repository.
type LabelChanges struct {
	Created int
	Updated int
	Deleted int

	renamed map[string]string // old name -> new name
	removed map[string]bool
}

func (c *LabelChanges) rename(from, to string) {
	if c.renamed == nil {
		c.renamed = make(map[string]string)
	}
	for old, cur := range c.renamed {
		if cur == from {
			c.renamed[old] = to
		}
	}
	c.renamed[from] = to
	c.Updated++
}

func (c *LabelChanges) remove(name string) {
	if c.removed == nil {
		c.removed = make(map[string]bool)
	}
	for old, cur := range c.renamed {
		if cur == name {
			c.removed[old] = true
			delete(c.renamed, old)
		}
	}
	c.removed[name] = true
	c.Deleted++
}

// merge records a label deleted in favour of an existing one. Issues that
// carried it keep the old name in projection, so they still read as priced
// with a stale label.
func (c *LabelChanges) merge(name string) {
	for old, cur := range c.renamed {
		if cur == name {
			delete(c.renamed, old)
		}
	}
	c.Deleted++
}

// Project maps labels read before reconciliation onto their current names:
// renamed labels carry their new name and labels removed by an assistive
// reset are dropped.
func (c LabelChanges) Project(labels []model.Label) []model.Label {
	out := make([]model.Label, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if c.removed[l.Name] {
			continue
		}
		if to, ok := c.renamed[l.Name]; ok {
			l.Name = to
		}
		if seen[l.Name] {
			continue
		}
		seen[l.Name] = true
		out = append(out, l)
	}
	return out
}

// LabelReconciler brings a repository's price labels in line with a new base rate.
type LabelReconciler struct {
	ghClient driven.GitHubClient
	logger   *slog.Logger
}

// NewLabelReconciler creates a LabelReconciler.
func NewLabelReconciler(ghClient driven.GitHubClient, logger *slog.Logger) *LabelReconciler {
	return &LabelReconciler{ghClient: ghClient, logger: logger}
}

// labelCatalogue is the in-memory view of a repository's labels, kept in
// step with every mutation the reconciler makes.
type labelCatalogue struct {
	byName map[string]model.Label
	order  []string
}

func newLabelCatalogue(labels []model.Label) *labelCatalogue {
	c := &labelCatalogue{byName: make(map[string]model.Label, len(labels))}
	for _, l := range labels {
		c.put(l)
	}
	return c
}

func (c *labelCatalogue) get(name string) (model.Label, bool) {
	l, ok := c.byName[name]
	return l, ok
}

func (c *labelCatalogue) put(l model.Label) {
	if _, ok := c.byName[l.Name]; !ok {
		c.order = append(c.order, l.Name)
	}
	c.byName[l.Name] = l
}

func (c *labelCatalogue) remove(name string) {
	if _, ok := c.byName[name]; !ok {
		return
	}
	delete(c.byName, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *labelCatalogue) ofKind(kind model.LabelKind) []model.Label {
	var out []model.Label
	for _, name := range c.order {
		if l := c.byName[name]; l.Kind() == kind {
			out = append(out, l)
		}
	}
	return out
}

func (c *labelCatalogue) labels() []model.Label {
	out := make([]model.Label, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// pricePair is one time × priority combination with its prices at both rates.
type pricePair struct {
	timeLabel     string
	priorityLabel string
	current       float64
	target        float64
}

// Reconcile updates repo.Labels in place to reflect the new base rate.
//
// In assistive mode every existing price label is deleted first and a fresh
// label is created for each time × priority combination. Otherwise only price
// labels already present in the repository are renamed to their new price,
// or deleted when the renamed label already exists.
//
// Combinations are visited from the highest current price down when the rate
// rises, and from the lowest up when it falls, so a rename never lands on a
// label that a later combination still has to move.
func (r *LabelReconciler) Reconcile(ctx context.Context, repo *model.Repository, rates model.Rates, settings model.Settings) (LabelChanges, error) {
	var changes LabelChanges

	if rates.NewBaseRate == nil {
		r.logger.Info("no new base rate, labels left unchanged", "repo", repo.FullName())
		return changes, nil
	}
	if rates.Unchanged() {
		r.logger.Info("base rate unchanged, labels left unchanged", "repo", repo.FullName(), "rate", *rates.NewBaseRate)
		return changes, nil
	}

	catalogue := newLabelCatalogue(repo.Labels)
	defer func() { repo.Labels = catalogue.labels() }()

	assistive := settings.Features.AssistivePricing
	if assistive {
		for _, l := range catalogue.ofKind(model.LabelKindPrice) {
			if err := r.ghClient.DeleteLabel(ctx, repo.RepoRef, l.Name); err != nil {
				return changes, err
			}
			catalogue.remove(l.Name)
			changes.remove(l.Name)
		}
	}

	timeLabels := unionLabels(settings.Labels.Time, model.LabelNamesOfKind(repo.Labels, model.LabelKindTime))
	priorityLabels := unionLabels(settings.Labels.Priority, model.LabelNamesOfKind(repo.Labels, model.LabelKindPriority))

	for _, pair := range pricePairs(timeLabels, priorityLabels, rates) {
		if pair.target <= 0 {
			r.logger.Debug("combination has no price, skipped", "repo", repo.FullName(), "time", pair.timeLabel, "priority", pair.priorityLabel)
			continue
		}
		if err := r.reconcilePair(ctx, repo.RepoRef, catalogue, pair, rates, assistive, &changes); err != nil {
			return changes, err
		}
	}

	r.logger.Info("price labels reconciled",
		"repo", repo.FullName(),
		"assistive", assistive,
		"created", changes.Created,
		"updated", changes.Updated,
		"deleted", changes.Deleted,
	)

	return changes, nil
}

// reconcilePair applies the rename/delete/create decision for one combination.
func (r *LabelReconciler) reconcilePair(
	ctx context.Context,
	repo model.RepoRef,
	catalogue *labelCatalogue,
	pair pricePair,
	rates model.Rates,
	assistive bool,
	changes *LabelChanges,
) error {
	targetLabel := pricing.PriceLabel(pair.target)

	// After an assistive reset no previous price label is left to match.
	if !assistive && rates.PreviousBaseRate != nil {
		currentLabel := pricing.PriceLabel(pair.current)

		if current, ok := catalogue.get(currentLabel); ok && currentLabel != targetLabel {
			exists, err := r.labelExists(ctx, repo, catalogue, targetLabel)
			if err != nil {
				return err
			}

			if !exists {
				if err := r.ghClient.UpdateLabel(ctx, repo, current, targetLabel); err != nil {
					return err
				}
				catalogue.remove(current.Name)
				current.Name = targetLabel
				catalogue.put(current)
				changes.rename(currentLabel, targetLabel)
				r.logger.Info("price label updated", "repo", repo.FullName(), "from", currentLabel, "to", targetLabel)
				return nil
			}

			if err := r.ghClient.DeleteLabel(ctx, repo, current.Name); err != nil {
				return err
			}
			catalogue.remove(current.Name)
			changes.merge(current.Name)
			r.logger.Info("redundant price label deleted", "repo", repo.FullName(), "label", currentLabel, "kept", targetLabel)
			return nil
		}
	}

	if !assistive {
		return nil
	}

	exists, err := r.labelExists(ctx, repo, catalogue, targetLabel)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	label := model.Label{Name: targetLabel, Color: model.LabelColorPrice}
	if err := r.ghClient.CreateLabel(ctx, repo, label); err != nil {
		return err
	}
	catalogue.put(label)
	changes.Created++
	r.logger.Debug("price label created", "repo", repo.FullName(), "label", targetLabel)
	return nil
}

// pricePairs builds the time × priority cross product ordered for renaming.
func pricePairs(timeLabels, priorityLabels []string, rates model.Rates) []pricePair {
	pairs := make([]pricePair, 0, len(timeLabels)*len(priorityLabels))
	for _, t := range timeLabels {
		for _, p := range priorityLabels {
			pair := pricePair{
				timeLabel:     t,
				priorityLabel: p,
				target:        pricing.Price(t, p, *rates.NewBaseRate),
			}
			if rates.PreviousBaseRate != nil {
				pair.current = pricing.Price(t, p, *rates.PreviousBaseRate)
			}
			pairs = append(pairs, pair)
		}
	}

	if rates.PreviousBaseRate == nil {
		return pairs
	}

	rising := *rates.NewBaseRate > *rates.PreviousBaseRate
	sort.SliceStable(pairs, func(i, j int) bool {
		if rising {
			return pairs[i].current > pairs[j].current
		}
		return pairs[i].current < pairs[j].current
	})
	return pairs
}

// labelExists checks the catalogue first and falls back to the API, caching a hit.
func (r *LabelReconciler) labelExists(ctx context.Context, repo model.RepoRef, catalogue *labelCatalogue, name string) (bool, error) {
	if _, ok := catalogue.get(name); ok {
		return true, nil
	}

	label, err := r.ghClient.GetLabel(ctx, repo, name)
	if err != nil {
		if driven.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking label %q: %w", name, err)
	}

	catalogue.put(*label)
	return true, nil
}

// unionLabels merges configured and existing label names, configured first,
// dropping duplicates.
func unionLabels(configured, existing []string) []string {
	seen := make(map[string]bool, len(configured)+len(existing))
	var out []string
	for _, group := range [][]string{configured, existing} {
		for _, name := range group {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
