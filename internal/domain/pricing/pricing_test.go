package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelValue(t *testing.T) {
	tests := []struct {
		label string
		want  float64
	}{
		{"Priority: 1 (Normal)", 1},
		{"Priority: 5 (Emergency)", 5},
		{"Time: <15 Minutes", 0.03},
		{"Time: <1 Hour", 0.125},
		{"Time: <2 Hours", 0.25},
		{"Time: <4 Hours", 0.5},
		{"Time: <1 Day", 1},
		{"Time: <3 Days", 1.5},
		{"Time: <1 Week", 2},
		{"Time: <2 Weeks", 3},
		{"Time: <1 Month", 5},
		{"Time: <3 Months", 21},
		{"Time: 1h", 0},
		{"Time: soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.InDelta(t, tt.want, LabelValue(tt.label), 1e-9)
		})
	}
}

func TestLabelValue_KeywordIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, LabelValue("Time: <1 Hour"), LabelValue("time: <1 HOUR"))
}

func TestTaskPrice_Deterministic(t *testing.T) {
	timeValue := LabelValue("Time: <1 Hour")
	priorityValue := LabelValue("Priority: 1 (Normal)")

	first := TaskPrice(timeValue, priorityValue, 5)
	second := TaskPrice(timeValue, priorityValue, 5)

	assert.Equal(t, 62.5, first)
	assert.Equal(t, first, second)
	assert.Equal(t, "Price: 62.5 USD", PriceLabel(first))
}

func TestTaskPrice_ScalesWithBase(t *testing.T) {
	assert.Equal(t, 62.5, Price("Time: <1 Hour", "Priority: 1 (Normal)", 5))
	assert.Equal(t, 125.0, Price("Time: <1 Hour", "Priority: 1 (Normal)", 10))
	assert.Equal(t, 125.0, Price("Time: <2 Hours", "Priority: 1 (Normal)", 5))
}

func TestPriceLabel_Formatting(t *testing.T) {
	assert.Equal(t, "Price: 12.5 USD", LabelFor("Time: <1 Hour", "Priority: 1 (Normal)", 1))
	assert.Equal(t, "Price: 25 USD", LabelFor("Time: <2 Hours", "Priority: 1 (Normal)", 1))
	assert.Equal(t, "Price: 1000 USD", LabelFor("Time: <1 Week", "Priority: 5 (Emergency)", 1))
	assert.Equal(t, "Price: 0 USD", LabelFor("Time: 1h", "Priority: 1 (Normal)", 1))
}
