package model

// RepoRef identifies a GitHub repository by owner login and name.
type RepoRef struct {
	Owner string
	Name  string
}

// FullName returns the "owner/name" form of the reference.
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// Repository is an organization repository as returned by the listing call.
type Repository struct {
	RepoRef
	Archived bool
	Labels   []Label // Populated by the batch driver; mutated in place by reconciliation.
}
