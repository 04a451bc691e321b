package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// RunResponse is the JSON representation of a reconciliation run.
type RunResponse struct {
	ID           string   `json:"id"`
	Org          string   `json:"org"`
	Repository   string   `json:"repository"`
	HeadSHA      string   `json:"head_sha"`
	PreviousRate *float64 `json:"previous_rate"`
	NewRate      *float64 `json:"new_rate"`
	Assistive    bool     `json:"assistive"`
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
	StartedAt    string   `json:"started_at"`
	FinishedAt   string   `json:"finished_at,omitempty"`

	// Populated only on the single run endpoint.
	Outcomes []RepoOutcomeResponse `json:"outcomes,omitempty"`
}

// RepoOutcomeResponse is the JSON representation of one repository's outcome.
type RepoOutcomeResponse struct {
	Repository       string `json:"repository"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	LabelsCreated    int    `json:"labels_created"`
	LabelsUpdated    int    `json:"labels_updated"`
	LabelsDeleted    int    `json:"labels_deleted"`
	IssuesRelabelled int    `json:"issues_relabelled"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	Time           string `json:"time"`
	FallbackClient bool   `json:"fallback_client"`
}

// toRunResponse converts a domain Run to its JSON representation without outcomes.
func toRunResponse(run model.Run) RunResponse {
	resp := RunResponse{
		ID:           run.ID,
		Org:          run.Org,
		Repository:   run.Repository,
		HeadSHA:      run.HeadSHA,
		PreviousRate: run.PreviousRate,
		NewRate:      run.NewRate,
		Assistive:    run.Assistive,
		Status:       string(run.Status),
		Error:        run.Error,
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toRepoOutcomeResponse converts a domain RepoOutcome to its JSON representation.
func toRepoOutcomeResponse(o model.RepoOutcome) RepoOutcomeResponse {
	return RepoOutcomeResponse{
		Repository:       o.Repository,
		Status:           string(o.Status),
		Reason:           o.Reason,
		LabelsCreated:    o.LabelsCreated,
		LabelsUpdated:    o.LabelsUpdated,
		LabelsDeleted:    o.LabelsDeleted,
		IssuesRelabelled: o.IssuesRelabelled,
	}
}
