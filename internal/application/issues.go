package application

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/pricing"
)

// PriceAssigner keeps the price label of each priced issue in step with the
// base rate.
type PriceAssigner struct {
	ghClient driven.GitHubClient
	logger   *slog.Logger
}

// NewPriceAssigner creates a PriceAssigner.
func NewPriceAssigner(ghClient driven.GitHubClient, logger *slog.Logger) *PriceAssigner {
	return &PriceAssigner{ghClient: ghClient, logger: logger}
}

// QualifyingIssues returns the issues carrying at least one configured time
// label and at least one configured priority label. Pull requests are excluded.
func QualifyingIssues(issues []model.Issue, settings model.Settings) []model.Issue {
	var out []model.Issue
	for _, issue := range issues {
		if issue.IsPullRequest {
			continue
		}
		if _, _, ok := pricedBy(issue, settings); ok {
			out = append(out, issue)
		}
	}
	return out
}

// pricedBy returns the first configured time and priority label on the issue.
func pricedBy(issue model.Issue, settings model.Settings) (timeLabel, priorityLabel string, ok bool) {
	for _, l := range issue.Labels {
		switch {
		case timeLabel == "" && slices.Contains(settings.Labels.Time, l.Name):
			timeLabel = l.Name
		case priorityLabel == "" && slices.Contains(settings.Labels.Priority, l.Name):
			priorityLabel = l.Name
		}
	}
	return timeLabel, priorityLabel, timeLabel != "" && priorityLabel != ""
}

// Assign brings the price label of every qualifying issue to the new rate and
// returns how many issues were relabelled.
//
// Without assistive pricing, an issue's price label is only replaced when it
// already has one: the old label is removed before the new one is attached.
// With assistive pricing the target label is always attached; the repository
// reset has already stripped stale price labels.
func (a *PriceAssigner) Assign(ctx context.Context, repo model.RepoRef, issues []model.Issue, newBaseRate float64, settings model.Settings) (int, error) {
	qualifying := QualifyingIssues(issues, settings)
	if len(qualifying) == 0 {
		a.logger.Info("no issues with time and priority labels", "repo", repo.FullName())
		return 0, nil
	}

	assistive := settings.Features.AssistivePricing
	var relabelled int

	for _, issue := range qualifying {
		timeLabel, priorityLabel, _ := pricedBy(issue, settings)
		price := pricing.Price(timeLabel, priorityLabel, newBaseRate)
		if price <= 0 {
			a.logger.Debug("combination has no price, issue left alone",
				"repo", repo.FullName(),
				"issue", issue.Number,
				"time", timeLabel,
				"priority", priorityLabel,
			)
			continue
		}
		target := pricing.PriceLabel(price)

		var stale []string
		for _, l := range issue.Labels {
			if l.Kind() == model.LabelKindPrice && l.Name != target {
				stale = append(stale, l.Name)
			}
		}
		hasTarget := issue.HasLabel(target)

		if !assistive {
			if len(stale) == 0 {
				continue
			}
			for _, name := range stale {
				if err := a.ghClient.RemoveLabelFromIssue(ctx, repo, issue.Number, name); err != nil {
					if !driven.IsNotFound(err) {
						return relabelled, err
					}
				}
			}
		}

		if !hasTarget {
			a.logger.Info("adding price label to issue",
				"repo", repo.FullName(),
				"issue", issue.Number,
				"label", target,
				"previous", stale,
			)
			if err := a.ghClient.AddLabelToIssue(ctx, repo, issue.Number, target); err != nil {
				return relabelled, err
			}
		}

		if !hasTarget || (!assistive && len(stale) > 0) {
			relabelled++
		}
	}

	a.logger.Info("issue prices assigned", "repo", repo.FullName(), "qualifying", len(qualifying), "relabelled", relabelled)
	return relabelled, nil
}
