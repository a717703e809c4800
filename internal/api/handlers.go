// Package api exposes the run journal over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/auth"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Handler serves journal reads.
type Handler struct {
	runs journal.Reader
}

// NewHandler builds a Handler.
func NewHandler(runs journal.Reader) *Handler {
	return &Handler{runs: runs}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/runs", h.listRuns)
	mux.HandleFunc("/v1/runs/", h.runByID)
	mux.HandleFunc("/healthz", healthz)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r) {
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxLimit)
		}
	}

	cursor, err := journal.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	runs, next, err := h.runs.ListRuns(r.Context(), cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]RunView, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunView(run))
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{Items: items, NextCursor: journal.EncodeCursor(next)})
}

func (h *Handler) runByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing run id")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if !authorize(w, r) {
		return
	}

	run, entries, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := RunDetailResponse{Run: toRunView(*run), Entries: make([]EntryView, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntryView{
			Key:        e.Key,
			Outcome:    string(e.Outcome),
			Reason:     e.Reason,
			Ambiguous:  e.Ambiguous,
			RowID:      e.RowID,
			RecordedAt: e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func authorize(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(auth.ScopeRunsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope runs:read required")
		return false
	}
	return true
}

// RunView is the wire shape of a run.
type RunView struct {
	RunID      string         `json:"run_id"`
	Job        string         `json:"job"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Counts     map[string]int `json:"counts"`
	Error      string         `json:"error,omitempty"`
}

// EntryView is the wire shape of one recorded outcome.
type EntryView struct {
	Key        string    `json:"key"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Ambiguous  bool      `json:"ambiguous,omitempty"`
	RowID      string    `json:"row_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ListRunsResponse struct {
	Items      []RunView `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type RunDetailResponse struct {
	Run     RunView     `json:"run"`
	Entries []EntryView `json:"entries"`
}

func toRunView(run journal.Run) RunView {
	view := RunView{
		RunID:     run.ID,
		Job:       run.Job,
		Status:    string(run.Status),
		StartedAt: run.StartedAt,
		Counts:    make(map[string]int, len(run.Counts)),
		Error:     run.Error,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		view.FinishedAt = &finished
	}
	for outcome, n := range run.Counts {
		view.Counts[string(outcome)] = n
	}
	return view
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
