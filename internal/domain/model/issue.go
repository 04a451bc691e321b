package model

// Issue is a GitHub issue reduced to the fields price assignment needs.
type Issue struct {
	Number        int
	Title         string
	Labels        []Label
	IsPullRequest bool // The issues API also returns pull requests.
}

// LabelNames returns the names of all labels attached to the issue.
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// HasLabel reports whether the issue carries a label with the given name.
func (i Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}
