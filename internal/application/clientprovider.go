package application

import (
	"errors"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// ErrNoCredentials is returned when neither the request nor the process
// configuration supplies a GitHub token.
var ErrNoCredentials = errors.New("no github credentials available")

// ClientFactory builds a GitHub client authenticated with token.
type ClientFactory func(token string) driven.GitHubClient

// GitHubClientProvider hands out GitHub clients for inbound requests. The
// plugin kernel sends a short-lived token with every event; requests without
// one fall back to the client built from the configured token.
type GitHubClientProvider struct {
	factory  ClientFactory
	fallback driven.GitHubClient
}

// NewGitHubClientProvider creates a provider. fallbackToken may be empty, in
// which case only requests carrying their own token can be served.
func NewGitHubClientProvider(factory ClientFactory, fallbackToken string) *GitHubClientProvider {
	p := &GitHubClientProvider{factory: factory}
	if fallbackToken != "" {
		p.fallback = factory(fallbackToken)
	}
	return p
}

// For returns a client for the given request token.
func (p *GitHubClientProvider) For(token string) (driven.GitHubClient, error) {
	if token != "" {
		return p.factory(token), nil
	}
	if p.fallback == nil {
		return nil, ErrNoCredentials
	}
	return p.fallback, nil
}

// HasFallback returns true if a configured-token client is available.
func (p *GitHubClientProvider) HasFallback() bool {
	return p.fallback != nil
}
