package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/muninn/internal/apperr"
	"github.com/starford/muninn/internal/extract"
	"github.com/starford/muninn/internal/history"
	"github.com/starford/muninn/internal/scan"
)

// Handler holds API route handlers.
type Handler struct {
	scanner *scan.Scanner
	hist    history.Store
	presets []extract.Preset
}

// NewHandler creates a new Handler.
func NewHandler(scanner *scan.Scanner, hist history.Store, presets []extract.Preset) *Handler {
	return &Handler{scanner: scanner, hist: hist, presets: presets}
}

// StatusResponse is the payload for GET /api/status.
type StatusResponse struct {
	Scanning     bool         `json:"scanning"`
	LastScan     *scan.Result `json:"last_scan,omitempty"`
	HistoryCount int          `json:"history_count"`
	Time         time.Time    `json:"time"`
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.hist.Count()
	if err != nil {
		slog.Error("status: history count failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	resp := StatusResponse{
		Scanning:     h.scanner.Running(),
		HistoryCount: count,
		Time:         time.Now(),
	}
	if last, ok := h.scanner.LastResult(); ok {
		resp.LastScan = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

// TriggerScan handles POST /api/scan: the manual trigger. It runs one full
// pass synchronously and returns its summary. A pass already in flight
// yields 409 rather than a second concurrent pass.
func (h *Handler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	res, err := h.scanner.Scan(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrScanInProgress) {
			writeJSON(w, http.StatusConflict, errorBody("scan already in progress"))
			return
		}
		slog.Error("manual scan failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Upcoming handles GET /api/upcoming.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	ups, err := h.scanner.Upcoming(r.Context())
	if err != nil {
		slog.Error("upcoming failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if ups == nil {
		ups = []scan.UpcomingReminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": ups,
		"total":     len(ups),
	})
}

// History handles GET /api/history with an optional limit query parameter.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.hist.Recent(limit)
	if err != nil {
		slog.Error("history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// PresetItem mirrors one configured preset in list responses.
type PresetItem struct {
	Name     string   `json:"name"`
	Offsets  []string `json:"offsets"`
	Template string   `json:"template,omitempty"`
}

// Presets handles GET /api/presets.
func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	items := make([]PresetItem, len(h.presets))
	for i, p := range h.presets {
		items[i] = PresetItem{Name: p.Name, Offsets: p.Offsets, Template: p.Template}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"presets": items,
		"total":   len(items),
	})
}
