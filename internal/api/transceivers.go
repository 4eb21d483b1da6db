package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portlight/xcvrd/internal/fleet"
	"github.com/portlight/xcvrd/internal/transceiver"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxPauseSeconds     = 24 * 60 * 60
)

// transceiverSummary is one row of the list endpoint.
type transceiverSummary struct {
	ID      int    `json:"id"`
	State   string `json:"state"`
	Present bool   `json:"present"`
}

// handleListTransceivers returns the lifecycle state of every slot.
func (s *Server) handleListTransceivers(w http.ResponseWriter, _ *http.Request) {
	ids := s.fleet.IDs()

	summaries := make([]transceiverSummary, 0, len(ids))
	for _, id := range ids {
		state, err := s.fleet.State(id)
		if err != nil {
			continue
		}

		present := false
		if info, err := s.fleet.TransceiverInfo(id); err == nil {
			present = info.Present
		}

		summaries = append(summaries, transceiverSummary{
			ID:      int(id),
			State:   state.String(),
			Present: present,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transceivers": summaries,
		"count":        len(summaries),
	})
}

// handleGetTransceiver returns the latest telemetry snapshot for a slot.
func (s *Server) handleGetTransceiver(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}

	info, err := s.fleet.TransceiverInfo(id)
	if err != nil {
		switch {
		case errors.Is(err, fleet.ErrUnknownTransceiver):
			writeNotFound(w, "transceiver not found")
		case errors.Is(err, transceiver.ErrSnapshotNotReady):
			writeUnavailable(w, "snapshot not yet collected")
		default:
			writeInternalError(w, "failed to load snapshot")
		}
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleGetState returns the lifecycle state for a slot.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}

	state, err := s.fleet.State(id)
	if err != nil {
		writeNotFound(w, "transceiver not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    int(id),
		"state": state.String(),
	})
}

// handleRefresh forces an immediate refresh of a slot.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}

	if err := s.fleet.Refresh(id); err != nil {
		if errors.Is(err, fleet.ErrUnknownTransceiver) {
			writeNotFound(w, "transceiver not found")
			return
		}
		writeError(w, http.StatusBadGateway, ErrCodeInternal, fmt.Sprintf("refresh failed: %v", err))
		return
	}

	state, _ := s.fleet.State(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    int(id),
		"state": state.String(),
	})
}

// handleGetHistory returns lifecycle transitions for a slot, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}
	if _, err := s.fleet.State(id); err != nil {
		writeNotFound(w, "transceiver not found")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "history unavailable")
		return
	}

	entries, err := s.history.GetTransitions(r.Context(), int(id), limit)
	if err != nil {
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      int(id),
		"history": entries,
		"count":   len(entries),
	})
}

// handleGetRemediations returns remediation actions for a slot, newest first.
func (s *Server) handleGetRemediations(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}
	if _, err := s.fleet.State(id); err != nil {
		writeNotFound(w, "transceiver not found")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "history unavailable")
		return
	}

	entries, err := s.history.GetRemediations(r.Context(), int(id), limit)
	if err != nil {
		writeInternalError(w, "failed to load remediations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           int(id),
		"remediations": entries,
		"count":        len(entries),
	})
}

// handleGetPrbsStats returns accumulated PRBS statistics for one side.
func (s *Server) handleGetPrbsStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}

	side, err := parseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	stats, err := s.fleet.PrbsStats(id, side)
	if err != nil {
		writeNotFound(w, "transceiver not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    int(id),
		"side":  side.String(),
		"stats": stats,
	})
}

// handleClearPrbsStats resets accumulated PRBS counters for one side.
func (s *Server) handleClearPrbsStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transceiverID(w, r)
	if !ok {
		return
	}

	side, err := parseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.fleet.ClearPrbsStats(id, side); err != nil {
		writeNotFound(w, "transceiver not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pauseRequest is the body of the remediation pause endpoint.
type pauseRequest struct {
	Seconds int `json:"seconds"`
}

// handlePauseRemediation suppresses remediation fleet-wide for the
// requested duration.
func (s *Server) handlePauseRemediation(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Seconds <= 0 || req.Seconds > maxPauseSeconds {
		writeBadRequest(w, fmt.Sprintf("seconds must be between 1 and %d", maxPauseSeconds))
		return
	}

	s.fleet.PauseRemediationFor(time.Duration(req.Seconds) * time.Second)

	writeJSON(w, http.StatusOK, map[string]any{
		"paused_until": s.fleet.PauseRemediationUntil().UTC().Format(time.RFC3339),
	})
}

// transceiverID parses the id path parameter, writing a 400 on failure.
func (s *Server) transceiverID(w http.ResponseWriter, r *http.Request) (transceiver.ID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		writeBadRequest(w, "invalid transceiver ID")
		return 0, false
	}
	return transceiver.ID(id), true
}

// parseSide maps the side path parameter to a module side.
func parseSide(raw string) (transceiver.Side, error) {
	switch raw {
	case "system":
		return transceiver.SideSystem, nil
	case "line":
		return transceiver.SideLine, nil
	default:
		return 0, fmt.Errorf("side must be system or line")
	}
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
