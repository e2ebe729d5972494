package server

import (
	"encoding/json"
	"net/http"

	"github.com/claude/motionscore/internal/exercise"
	"github.com/claude/motionscore/internal/pose"
	"github.com/claude/motionscore/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// analyzeRequest is the wire shape for whole-recording analysis.
type analyzeRequest struct {
	Frames []pose.RawFrame `json:"frames"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	frames, err := pose.DecodeFrames(req.Frames)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Empty input and no-confident-exercise come back as structured
	// outcomes inside the verdict, not as HTTP failures.
	agg := s.factory.NewSession()
	verdict, analysisErr := agg.AnalyzeRecording(frames)
	if analysisErr != nil {
		s.log.Info("analysis outcome", "outcome", string(verdict.Outcome))
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Label  exercise.Label  `json:"label"`
		Family exercise.Family `json:"family"`
	}
	catalogue := exercise.Catalogue()
	out := make([]entry, 0, len(catalogue))
	for _, l := range catalogue {
		out = append(out, entry{Label: l, Family: exercise.FamilyOf(l)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"exercises": out})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// pushFramesRequest feeds live frames into a session; an optional locked
// label forces classification for the tick.
type pushFramesRequest struct {
	Frames []pose.RawFrame `json:"frames"`
	Locked exercise.Label  `json:"locked,omitempty"`
}

// pushFramesResponse reports buffer state and, once the buffer is ready,
// the analyzed window.
type pushFramesResponse struct {
	Ready    bool                  `json:"ready"`
	Buffered int                   `json:"buffered_frames"`
	Result   *session.WindowResult `json:"result,omitempty"`
}

func (s *Server) handlePushFrames(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	ls, ok := s.sessions.get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}

	var req pushFramesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Locked != "" && !exercise.Valid(req.Locked) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown exercise label"})
		return
	}
	frames, err := pose.DecodeFrames(req.Frames)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// The aggregator is single-owner state; overlapping pushes to the same
	// session must not interleave.
	ls.mu.Lock()
	for _, f := range frames {
		ls.agg.Push(f)
	}
	resp := pushFramesResponse{Buffered: ls.agg.BufferedFrames()}
	res, ok := ls.agg.AnalyzeTick(req.Locked)
	ls.mu.Unlock()

	if ok {
		resp.Ready = true
		resp.Result = &res
		if !res.Diagnostic.IsCorrect {
			for _, v := range res.Diagnostic.Violations {
				ls.fb.Enqueue(v)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	if !s.sessions.Delete(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
