package application_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubq-testing/label-base-rate-watcher/internal/application"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/port/driven"
)

const (
	pusherMsg = "pusher is not an admin or billing manager"
	senderMsg = "sender is not an admin or billing manager"
)

func gateEvent() model.PushEvent {
	return model.PushEvent{
		EventName: "push",
		RepoOwner: "ubiquity",
		RepoName:  ".ubiquibot-config",
		Pusher:    "alice",
		Sender:    "bob",
	}
}

func TestAuthGate_Authorize(t *testing.T) {
	tests := []struct {
		name        string
		permissions map[string]string
		roles       map[string]string
		wantErr     bool
		wantLogs    []string
		noLogs      []string
	}{
		{
			name:        "both repository admins",
			permissions: map[string]string{"alice": "admin", "bob": "admin"},
			noLogs:      []string{pusherMsg, senderMsg},
		},
		{
			name:        "billing manager and org admin",
			permissions: map[string]string{"alice": "read", "bob": "write"},
			roles:       map[string]string{"alice": "billing_manager", "bob": "admin"},
			noLogs:      []string{pusherMsg, senderMsg},
		},
		{
			name:        "pusher lacks standing",
			permissions: map[string]string{"alice": "write", "bob": "admin"},
			roles:       map[string]string{"alice": "member"},
			wantErr:     true,
			wantLogs:    []string{pusherMsg},
			noLogs:      []string{senderMsg},
		},
		{
			name:        "sender lacks standing",
			permissions: map[string]string{"alice": "admin"},
			wantErr:     true,
			wantLogs:    []string{senderMsg},
			noLogs:      []string{pusherMsg},
		},
		{
			name:     "neither has standing",
			wantErr:  true,
			wantLogs: []string{pusherMsg, senderMsg},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gh := newFakeGitHub("ubiquity")
			for u, p := range tt.permissions {
				gh.permissions[u] = p
			}
			for u, r := range tt.roles {
				gh.roles[u] = r
			}
			logger, buf := captureLogger()
			gate := application.NewAuthGate(gh, logger)

			err := gate.Authorize(context.Background(), gateEvent())
			if tt.wantErr {
				require.ErrorIs(t, err, application.ErrUnauthorized)
			} else {
				require.NoError(t, err)
			}

			logs := buf.String()
			for _, msg := range tt.wantLogs {
				assert.Equal(t, 1, strings.Count(logs, msg), "expected one %q line", msg)
			}
			for _, msg := range tt.noLogs {
				assert.NotContains(t, logs, msg)
			}
		})
	}
}

func TestAuthGate_AdminSkipsMembershipLookup(t *testing.T) {
	gh := newFakeGitHub("ubiquity")
	gh.permissions["alice"] = "admin"
	gh.permissions["bob"] = "admin"
	gate := application.NewAuthGate(gh, discardLogger())

	require.NoError(t, gate.Authorize(context.Background(), gateEvent()))
	assert.Empty(t, gh.callsOf("get_membership"))
}

// failingRoleClient fails membership lookups with a server error.
type failingRoleClient struct {
	*fakeGitHub
}

func (c failingRoleClient) GetOrgMembershipRole(context.Context, string, string) (string, error) {
	return "", &driven.APIError{StatusCode: 502, Message: "Bad Gateway"}
}

func TestAuthGate_LookupErrorAborts(t *testing.T) {
	gh := failingRoleClient{newFakeGitHub("ubiquity")}
	gate := application.NewAuthGate(gh, discardLogger())

	err := gate.Authorize(context.Background(), gateEvent())
	require.Error(t, err)
	assert.False(t, errors.Is(err, application.ErrUnauthorized))
	assert.ErrorContains(t, err, "checking pusher alice")
}
