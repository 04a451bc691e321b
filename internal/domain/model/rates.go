package model

// Rates holds the base price multiplier before and after a configuration
// change. A nil field means the value could not be recovered from the diff.
type Rates struct {
	PreviousBaseRate *float64
	NewBaseRate      *float64
}

// Found reports whether at least one of the two rates was recovered.
func (r Rates) Found() bool {
	return r.PreviousBaseRate != nil || r.NewBaseRate != nil
}

// Unchanged reports whether both rates are present and equal.
func (r Rates) Unchanged() bool {
	return r.PreviousBaseRate != nil && r.NewBaseRate != nil && *r.PreviousBaseRate == *r.NewBaseRate
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
