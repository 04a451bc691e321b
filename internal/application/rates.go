package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// ErrDiffUnavailable is returned when the triggering commit's diff cannot be fetched.
var ErrDiffUnavailable = errors.New("commit diff unavailable")

// rateLine matches a removed or added basePriceMultiplier line in a unified
// diff. Groups: marker, indentation after the marker, value.
var rateLine = regexp.MustCompile(`^([+-])(\s*)basePriceMultiplier:\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)`)

type rateMatch struct {
	indent int
	value  float64
}

// ExtractRates recovers the previous and new base price multiplier from a
// unified diff. When the multiplier appears more than once on the same side
// of the diff, the least indented occurrence (the global setting) wins over
// nested, plugin-scoped ones; ties go to the first occurrence.
func ExtractRates(diff string) model.Rates {
	var removed, added *rateMatch

	for _, raw := range strings.Split(diff, "\n") {
		line := strings.TrimSpace(raw)
		m := rateLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		value, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		candidate := &rateMatch{indent: len(m[2]), value: value}

		switch m[1] {
		case "-":
			if removed == nil || candidate.indent < removed.indent {
				removed = candidate
			}
		case "+":
			if added == nil || candidate.indent < added.indent {
				added = candidate
			}
		}
	}

	var rates model.Rates
	if removed != nil {
		rates.PreviousBaseRate = model.Float64Ptr(removed.value)
	}
	if added != nil {
		rates.NewBaseRate = model.Float64Ptr(added.value)
	}
	return rates
}

// RateExtractor reads base rate changes from the diff of the triggering commit.
type RateExtractor struct {
	ghClient driven.GitHubClient
	logger   *slog.Logger
}

// NewRateExtractor creates a RateExtractor.
func NewRateExtractor(ghClient driven.GitHubClient, logger *slog.Logger) *RateExtractor {
	return &RateExtractor{ghClient: ghClient, logger: logger}
}

// Extract fetches the commit diff and parses the rates out of it. A failed
// fetch wraps ErrDiffUnavailable; a diff without rate lines is not an error
// and yields Rates with both fields nil.
func (e *RateExtractor) Extract(ctx context.Context, repo model.RepoRef, sha string) (model.Rates, error) {
	if sha == "" {
		return model.Rates{}, fmt.Errorf("%w: head commit id is missing", ErrDiffUnavailable)
	}

	diff, err := e.ghClient.GetCommitDiff(ctx, repo, sha)
	if err != nil {
		e.logger.Debug("commit diff fetch failed", "repo", repo.FullName(), "sha", sha, "error", err)
		return model.Rates{}, fmt.Errorf("%w: %w", ErrDiffUnavailable, err)
	}

	rates := ExtractRates(diff)
	if !rates.Found() {
		e.logger.Info("no base rate changes found in commit", "repo", repo.FullName(), "sha", sha)
		return rates, nil
	}

	e.logger.Info("base rate change detected",
		"repo", repo.FullName(),
		"sha", sha,
		"previous_rate", floatOrNil(rates.PreviousBaseRate),
		"new_rate", floatOrNil(rates.NewBaseRate),
	)
	return rates, nil
}

// floatOrNil dereferences v for logging.
func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
