package model

import "strings"

// LabelKind classifies a repository label by the role it plays in pricing.
type LabelKind int

const (
	LabelKindOther LabelKind = iota
	LabelKindTime
	LabelKindPriority
	LabelKindPrice
)

// String returns a human-readable name for the label kind.
func (k LabelKind) String() string {
	switch k {
	case LabelKindTime:
		return "time"
	case LabelKindPriority:
		return "priority"
	case LabelKindPrice:
		return "price"
	default:
		return "other"
	}
}

// Label colours used when the watcher creates labels itself.
const (
	LabelColorDefault = "ededed"
	LabelColorPrice   = "1f883d"
)

// Label is a repository or issue label as seen on GitHub.
type Label struct {
	Name        string
	Color       string
	Description string
}

// Kind classifies the label by its name.
func (l Label) Kind() LabelKind {
	return ClassifyLabel(l.Name)
}

// ClassifyLabel maps a label name to its kind. A name containing more than one
// marker is classified by the first match in the order price, time, priority.
func ClassifyLabel(name string) LabelKind {
	switch {
	case strings.Contains(name, "Price:"):
		return LabelKindPrice
	case strings.Contains(name, "Time:"):
		return LabelKindTime
	case strings.Contains(name, "Priority:"):
		return LabelKindPriority
	default:
		return LabelKindOther
	}
}

// LabelNamesOfKind returns the names of all labels of the given kind, in order.
func LabelNamesOfKind(labels []Label, kind LabelKind) []string {
	var names []string
	for _, l := range labels {
		if l.Kind() == kind {
			names = append(names, l.Name)
		}
	}
	return names
}
