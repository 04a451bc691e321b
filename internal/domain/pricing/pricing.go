// Package pricing derives task prices from time and priority labels.
package pricing

import (
	"regexp"
	"strconv"
	"strings"
)

var firstInteger = regexp.MustCompile(`\d+`)

// LabelValue converts a time or priority label into its numeric weight.
// The first integer in the label is scaled according to the unit keyword
// found in the text; labels without a recognised keyword are worth 0.
func LabelValue(label string) float64 {
	n := 0.0
	if m := firstInteger.FindString(label); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			n = float64(v)
		}
	}

	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "priority"):
		return n
	case strings.Contains(lower, "minute"):
		return n * 0.002
	case strings.Contains(lower, "hour"):
		return n * 0.125
	case strings.Contains(lower, "day"):
		return 1 + (n-1)*0.25
	case strings.Contains(lower, "week"):
		return n + 1
	case strings.Contains(lower, "month"):
		return 5 + (n-1)*8
	default:
		return 0
	}
}

// TaskPrice computes the USD price for a task.
func TaskPrice(timeValue, priorityValue, base float64) float64 {
	priority := priorityValue / 10
	return 1000 * base * timeValue * priority
}

// Price computes the price for a time/priority label pair at the given base rate.
func Price(timeLabel, priorityLabel string, base float64) float64 {
	return TaskPrice(LabelValue(timeLabel), LabelValue(priorityLabel), base)
}

// FormatPrice renders a price using the shortest decimal form that round-trips.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// PriceLabel returns the label text for a price, e.g. "Price: 62.5 USD".
func PriceLabel(price float64) string {
	return "Price: " + FormatPrice(price) + " USD"
}

// LabelFor returns the price label for a time/priority label pair at the given base rate.
func LabelFor(timeLabel, priorityLabel string, base float64) string {
	return PriceLabel(Price(timeLabel, priorityLabel, base))
}
