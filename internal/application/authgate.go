package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

// ErrUnauthorized is returned when the pusher or the sender lacks standing
// to change the organization's pay rate.
var ErrUnauthorized = errors.New("pusher and sender must both be an admin or billing manager")

// Roles that confer standing to change the base rate.
const (
	roleAdmin          = "admin"
	roleBillingManager = "billing_manager"
)

// AuthGate enforces dual control over base rate changes: the user who pushed
// the commit and the user who triggered the event must each independently be
// an admin or a billing manager of the organization.
type AuthGate struct {
	ghClient driven.GitHubClient
	logger   *slog.Logger
}

// NewAuthGate creates an AuthGate.
func NewAuthGate(ghClient driven.GitHubClient, logger *slog.Logger) *AuthGate {
	return &AuthGate{ghClient: ghClient, logger: logger}
}

// Authorize checks both actors of the push. Both are evaluated before the
// result is reported so each failing actor is logged on its own line.
func (g *AuthGate) Authorize(ctx context.Context, event model.PushEvent) error {
	repo := model.RepoRef{Owner: event.Org(), Name: event.RepoName}

	pusherAuthed, err := g.hasStanding(ctx, repo, event.Org(), event.Pusher)
	if err != nil {
		return fmt.Errorf("checking pusher %s: %w", event.Pusher, err)
	}

	senderAuthed, err := g.hasStanding(ctx, repo, event.Org(), event.Sender)
	if err != nil {
		return fmt.Errorf("checking sender %s: %w", event.Sender, err)
	}

	if !pusherAuthed {
		g.logger.Error("pusher is not an admin or billing manager", "pusher", event.Pusher, "org", event.Org())
	}
	if !senderAuthed {
		g.logger.Error("sender is not an admin or billing manager", "sender", event.Sender, "org", event.Org())
	}

	if !pusherAuthed || !senderAuthed {
		return ErrUnauthorized
	}
	return nil
}

// hasStanding reports whether username is a repository admin, an organization
// admin, or a billing manager. A 404 from either lookup means no standing.
func (g *AuthGate) hasStanding(ctx context.Context, repo model.RepoRef, org, username string) (bool, error) {
	if username == "" {
		return false, nil
	}

	permission, err := g.ghClient.GetCollaboratorPermission(ctx, repo, username)
	switch {
	case err == nil && permission == roleAdmin:
		return true, nil
	case err != nil && !driven.IsNotFound(err):
		return false, err
	}

	role, err := g.ghClient.GetOrgMembershipRole(ctx, org, username)
	if err != nil {
		if driven.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return role == roleAdmin || role == roleBillingManager, nil
}
