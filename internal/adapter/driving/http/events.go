package httphandler

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
)

// PluginInput is the envelope the plugin kernel posts for every event.
type PluginInput struct {
	StateID      string          `json:"stateId"`
	EventName    string          `json:"eventName"`
	EventPayload json.RawMessage `json:"eventPayload"`
	Settings     json.RawMessage `json:"settings"`
	AuthToken    string          `json:"authToken"`
	Ref          string          `json:"ref"`
}

// PluginEvent handles the plugin ingress. The kernel waits for the run; its
// outcome is logged and recorded in the run log, never reported back.
func (h *Handler) PluginEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Only POST requests are supported.")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error: %s is not a valid content type", contentType))
		return
	}

	var input PluginInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := decodeSettings(input.Settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid settings provided. %v", err))
		return
	}

	event := model.PushEvent{EventName: input.EventName}
	if input.EventName == "push" {
		var payload gh.PushEvent
		if err := json.Unmarshal(input.EventPayload, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid event payload")
			return
		}
		event = pushEventFromGitHub(&payload)
	}

	client, ok := h.clientFor(w, input.AuthToken)
	if !ok {
		return
	}

	h.logger.Info("plugin event received",
		"request_id", requestID(r.Context()),
		"state_id", input.StateID,
		"event_name", input.EventName,
		"ref", input.Ref,
	)

	if err := h.runEvent(r, client, settings, event); err != nil {
		h.logger.Error("plugin event failed", "state_id", input.StateID, "error", err)
	}

	writeJSON(w, http.StatusOK, "OK")
}

// GitHubWebhook handles events delivered by a GitHub App or repository webhook.
// The signature is checked when a secret is configured. Push events are
// reconciled in the background with the configured settings.
func (h *Handler) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	payload, err := gh.ValidatePayload(r, h.webhookSecret)
	if err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid webhook request")
		return
	}

	eventType := gh.WebHookType(r)
	if eventType == "ping" {
		writeJSON(w, http.StatusOK, "pong")
		return
	}

	parsed, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	push, isPush := parsed.(*gh.PushEvent)
	if !isPush {
		writeJSON(w, http.StatusAccepted, "ignored")
		return
	}

	client, ok := h.clientFor(w, "")
	if !ok {
		return
	}

	event := pushEventFromGitHub(push)
	deliveryID := gh.DeliveryID(r)
	h.logger.Info("webhook push received", "request_id", requestID(r.Context()), "delivery_id", deliveryID, "repo", event.RepoOwner+"/"+event.RepoName, "ref", event.Ref)

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if err := h.runEvent(r, client, h.settings, event); err != nil {
			h.logger.Error("webhook push failed", "delivery_id", deliveryID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, "OK")
}

// decodeSettings applies defaults to the settings object sent by the kernel
// and validates the result.
func decodeSettings(raw json.RawMessage) (model.Settings, error) {
	var settings model.Settings
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return model.Settings{}, fmt.Errorf("decode settings: %w", err)
		}
	}

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

// pushEventFromGitHub reduces a go-github push payload to the fields the
// watcher reads.
func pushEventFromGitHub(e *gh.PushEvent) model.PushEvent {
	owner := e.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		owner = e.GetRepo().GetOwner().GetName()
	}

	event := model.PushEvent{
		EventName:    "push",
		Ref:          e.GetRef(),
		Before:       e.GetBefore(),
		After:        e.GetAfter(),
		HeadCommitID: e.GetHeadCommit().GetID(),
		RepoName:     e.GetRepo().GetName(),
		RepoOwner:    owner,
		Organization: e.GetOrganization().GetLogin(),
		Sender:       e.GetSender().GetLogin(),
		Pusher:       strings.TrimSpace(e.GetPusher().GetName()),
	}

	for _, c := range e.Commits {
		event.Commits = append(event.Commits, model.CommitFiles{
			ID:       c.GetID(),
			Added:    c.Added,
			Modified: c.Modified,
		})
	}

	return event
}
