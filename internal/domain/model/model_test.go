package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
)

func TestClassifyLabel(t *testing.T) {
	tests := []struct {
		name string
		want model.LabelKind
	}{
		{name: "Price: 25 USD", want: model.LabelKindPrice},
		{name: "Time: <1 Hour", want: model.LabelKindTime},
		{name: "Priority: 3 (High)", want: model.LabelKindPriority},
		{name: "bug", want: model.LabelKindOther},
		{name: "Price: Time: mixed", want: model.LabelKindPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.ClassifyLabel(tt.name))
		})
	}
}

func TestLabelNamesOfKind(t *testing.T) {
	labels := []model.Label{
		{Name: "Time: <1 Hour"},
		{Name: "bug"},
		{Name: "Price: 12.5 USD"},
		{Name: "Time: <1 Day"},
	}

	assert.Equal(t, []string{"Time: <1 Hour", "Time: <1 Day"}, model.LabelNamesOfKind(labels, model.LabelKindTime))
	assert.Nil(t, model.LabelNamesOfKind(labels, model.LabelKindPriority))
}

func TestPushEvent(t *testing.T) {
	event := model.PushEvent{
		Ref:       "refs/heads/development",
		Before:    model.ZeroSHA,
		RepoOwner: "ubiquity",
		Commits: []model.CommitFiles{
			{Modified: []string{"README.md"}, Added: []string{".github/.ubiquibot-config.yml"}},
			{Modified: []string{"go.mod"}},
		},
	}

	assert.Equal(t, "development", event.Branch())
	assert.Equal(t, "ubiquity", event.Org(), "falls back to the repository owner")
	assert.True(t, event.CreatesBranch())
	assert.Equal(t, []string{"README.md", ".github/.ubiquibot-config.yml", "go.mod"}, event.ChangedFiles())

	event.Ref = "refs/tags/v1.0.0"
	event.Organization = "ubiquity-os"
	assert.Empty(t, event.Branch())
	assert.Equal(t, "ubiquity-os", event.Org())
}

func TestSettings_Defaults(t *testing.T) {
	s := model.DefaultSettings()

	assert.Equal(t, model.DefaultTimeLabels, s.Labels.Time)
	assert.Equal(t, model.DefaultPriorityLabels, s.Labels.Priority)
	assert.Equal(t, 1.0, s.BasePriceMultiplier())
	assert.False(t, s.Features.AssistivePricing)
	require.NoError(t, s.Validate())

	// The returned slices are copies.
	s.Labels.Time[0] = "changed"
	assert.Equal(t, "Time: <1 Hour", model.DefaultTimeLabels[0])
}

func TestSettings_Validate(t *testing.T) {
	s := model.DefaultSettings()
	s.Payments.BasePriceMultiplier = model.Float64Ptr(-2)
	s.Labels.Time = []string{"Priority: 1 (Normal)"}

	err := s.Validate()

	require.ErrorIs(t, err, model.ErrInvalidSettings)
	assert.ErrorContains(t, err, "basePriceMultiplier")
	assert.ErrorContains(t, err, `labels.time[0]: "Priority: 1 (Normal)" is not a time label`)
}
