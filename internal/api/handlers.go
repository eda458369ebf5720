package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/snapshot"
	"github.com/raaihank/mask-sentinel/internal/stats"
	"github.com/raaihank/mask-sentinel/internal/websocket"
	"go.uber.org/zap"
)

type maskRequest struct {
	Text         string   `json:"text"`
	Rules        []string `json:"rules,omitempty"`
	SnapshotName string   `json:"snapshot_name,omitempty"`
}

type maskResponse struct {
	MaskedText string                `json:"masked_text"`
	Detections []privacy.Detection   `json:"detections"`
	Mapping    *privacy.MappingTable `json:"mapping_table"`
	Summary    privacy.Summary       `json:"summary"`
	Snapshot   *snapshot.Snapshot    `json:"snapshot,omitempty"`
}

type restoreRequest struct {
	Text       string                `json:"text"`
	Mapping    *privacy.MappingTable `json:"mapping_table,omitempty"`
	SnapshotID string                `json:"snapshot_id,omitempty"`
}

type restoreResponse struct {
	Text string `json:"text"`
}

type patternRequest struct {
	Matcher     string `json:"matcher"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type statsResponse struct {
	Totals map[string]stats.Total `json:"totals"`
	Total  int64                  `json:"total"`
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	return nil
}

// fail logs and writes an error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := s.logger.WithRequestID(getRequestID(r.Context()))
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Int("status_code", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// handleMask masks text, optionally saving the mapping as a snapshot
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := getRequestID(r.Context())

	var req maskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.checkRuleKeys(req.Rules); err != nil {
		s.fail(w, r, err)
		return
	}

	result := s.engine.Mask(req.Text, req.Rules...)
	summary := s.engine.Summarize(result.Detections)

	resp := maskResponse{
		MaskedText: result.MaskedText,
		Detections: result.Detections,
		Mapping:    result.Mapping,
		Summary:    summary,
	}

	if req.SnapshotName != "" {
		snap, err := s.snapshots.Save(r.Context(), req.SnapshotName, result.Mapping)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Snapshot = snap.Meta()
		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeSnapshotSaved,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data:      websocket.SnapshotSavedEvent{ID: snap.ID, Name: snap.Name, EntryCount: snap.EntryCount},
		})
	}

	if err := s.recorder.Record(r.Context(), summary); err != nil {
		s.logger.WithRequestID(requestID).Warn("Failed to record detection counts", zap.Error(err))
	}

	if len(result.Detections) > 0 {
		s.logger.WithRequestID(requestID).LogDetectionCounts("Sensitive data masked", summary.Counts())
	}

	s.wsHub.BroadcastEvent(websocket.NewMaskResultEvent(requestID, result, time.Since(start)))

	writeJSON(w, http.StatusOK, resp)
}

// checkRuleKeys rejects requests naming rules that are not registered.
func (s *Server) checkRuleKeys(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	known := make(map[string]bool)
	for _, p := range s.engine.ListPatterns() {
		known[p.Key] = true
	}
	for _, k := range keys {
		if !known[k] {
			return fmt.Errorf("%w: unknown rule %s", errBadRequest, k)
		}
	}
	return nil
}

// handleRestore restores text from an inline mapping table or a snapshot
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	mapping := req.Mapping
	switch {
	case req.SnapshotID != "" && mapping != nil:
		s.fail(w, r, fmt.Errorf("%w: give either mapping_table or snapshot_id", errBadRequest))
		return
	case req.SnapshotID != "":
		snap, err := s.snapshots.Get(r.Context(), req.SnapshotID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		mapping = snap.Mapping
	case mapping == nil:
		s.fail(w, r, fmt.Errorf("%w: mapping_table or snapshot_id is required", errBadRequest))
		return
	}

	restored := s.engine.Restore(req.Text, mapping)

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRestoreResult,
		Timestamp: time.Now(),
		RequestID: getRequestID(r.Context()),
		Data: websocket.RestoreResultEvent{
			MappingEntries: mapping.Len(),
			SnapshotID:     req.SnapshotID,
			TextLength:     len(restored),
			ProcessingMS:   float64(time.Since(start).Microseconds()) / 1000,
		},
	})

	writeJSON(w, http.StatusOK, restoreResponse{Text: restored})
}

// handleListPatterns lists rules in evaluation order
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": s.engine.ListPatterns(),
	})
}

// handleValidatePattern checks a matcher without registering it
func (s *Server) handleValidatePattern(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := privacy.Validate(req.Matcher); err != nil {
		writeJSON(w, http.StatusOK, validateResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true})
}

// handlePutPattern adds or replaces a custom rule
func (s *Server) handlePutPattern(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req patternRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.engine.AddPattern(key, req.Matcher, req.Label, req.Description); err != nil {
		s.fail(w, r, err)
		return
	}

	s.broadcastPatternUpdate("added", key)

	for _, p := range s.engine.ListPatterns() {
		if p.Key == key {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeletePattern removes a rule
func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	s.engine.RemovePattern(key)
	s.broadcastPatternUpdate("removed", key)
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchPattern toggles a rule on or off
func (s *Server) handlePatchPattern(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Enabled == nil {
		s.fail(w, r, fmt.Errorf("%w: enabled is required", errBadRequest))
		return
	}

	if err := s.engine.SetEnabled(key, *req.Enabled); err != nil {
		s.fail(w, r, err)
		return
	}

	s.broadcastPatternUpdate("toggled", key)

	for _, p := range s.engine.ListPatterns() {
		if p.Key == key {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) broadcastPatternUpdate(action, key string) {
	ev := websocket.PatternUpdateEvent{Action: action, Key: key}
	for _, p := range s.engine.ListPatterns() {
		if p.Key == key {
			ev.Label = p.Label
			ev.Enabled = p.Enabled
		}
	}
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePatternUpdate,
		Timestamp: time.Now(),
		Data:      ev,
	})
}

// handleListSnapshots lists snapshot metadata, newest first
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.snapshots.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": list})
}

// handleGetSnapshot returns a snapshot including its mapping table
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDeleteSnapshot deletes a snapshot
func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.snapshots.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetStats returns cumulative detection counts
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.recorder.Totals(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Totals: totals, Total: stats.GrandTotal(totals)})
}

// handleResetStats clears cumulative detection counts
func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if err := s.recorder.Reset(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
