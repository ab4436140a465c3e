package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/session"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.List())
}

type createSessionRequest struct {
	ArtifactText string   `json:"artifact_text"`
	Threshold    *float64 `json:"threshold,omitempty"`
	ArtifactType string   `json:"artifact_type,omitempty"`
}

type createSessionResponse struct {
	ID           string              `json:"id"`
	Threshold    float64             `json:"threshold"`
	ArtifactType domain.ArtifactType `json:"artifact_type"`
	Detection    *analyser.Detection `json:"detection,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	threshold := s.deps.Info.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if err := domain.ValidateThreshold(threshold); err != nil {
		s.writeError(w, err)
		return
	}
	if err := domain.ValidateArtifact(req.ArtifactText); err != nil {
		s.writeError(w, err)
		return
	}

	requested, err := parseOptionalType(req.ArtifactType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, det, err := s.deps.Detector.Resolve(r.Context(), req.ArtifactText, requested)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess, err := s.deps.Sessions.Create(req.ArtifactText, threshold, t)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:           sess.ID,
		Threshold:    sess.Threshold,
		ArtifactType: sess.ArtifactType,
		Detection:    det,
	})
}

// withSession достает сессию по {id} или отвечает 404
func (s *Server) withSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Sessions.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	if purge, _ := strconv.ParseBool(r.URL.Query().Get("purge")); purge {
		if err := s.deps.Sessions.PurgeArchive(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleSessionAnalyse(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}

	s.stream(w, r, func(ctx context.Context, sse *sseWriter) (any, error) {
		next := sess.Snapshot().Iterations + 1
		sse.Send("progress", map[string]any{
			"step":      "starting",
			"iteration": next,
			"message":   "Starting iteration " + strconv.Itoa(next) + "...",
		})
		return sess.Analyse(analyser.WithProgress(ctx, progressTo(sse, 0)))
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Suggestions())
}

type applyRequest struct {
	AcceptedSuggestionIDs []string `json:"accepted_suggestion_ids"`
}

type artifactResponse struct {
	ArtifactText string `json:"artifact_text"`
}

func (s *Server) handleApplySuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}

	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	revised, err := sess.ApplySuggestions(r.Context(), req.AcceptedSuggestionIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifactResponse{ArtifactText: revised})
}

func (s *Server) handleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}

	var req artifactResponse
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := sess.UpdateArtifact(req.ArtifactText); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifactResponse{ArtifactText: sess.ArtifactText()})
}

func (s *Server) handleSessionCompare(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}

	current, err := queryInt(r, "current")
	if err != nil {
		s.writeError(w, err)
		return
	}
	previous, err := queryInt(r, "previous")
	if err != nil {
		s.writeError(w, err)
		return
	}

	report, err := sess.Compare(current, previous)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Sessions.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// queryInt - пустое значение означает 0 (по умолчанию)
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrInvalidIteration
	}
	return n, nil
}
