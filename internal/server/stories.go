package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

type StoryGenerator interface {
	Run(ctx context.Context, text string) (*stories.Generation, error)
	Refine(ctx context.Context, story domain.UserStory, feedback string) (*domain.UserStory, error)
}

var stepMessages = map[stories.Step]string{
	stories.StepExtracting: "Extracting requirements...",
	stories.StepPersonas:   "Identifying personas...",
	stories.StepGenerating: "Generating user stories...",
	stories.StepCoverage:   "Validating coverage...",
}

type generateStoriesRequest struct {
	ArtifactText string `json:"artifact_text"`
}

func (s *Server) handleGenerateStories(w http.ResponseWriter, r *http.Request) {
	var req generateStoriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := domain.ValidateArtifact(req.ArtifactText); err != nil {
		s.writeError(w, err)
		return
	}

	s.stream(w, r, func(ctx context.Context, sse *sseWriter) (any, error) {
		return s.deps.Stories.Run(stories.WithProgress(ctx, stepsTo(sse)), req.ArtifactText)
	})
}

type refineStoryRequest struct {
	Story    domain.UserStory `json:"story"`
	Feedback string           `json:"feedback"`
}

func (s *Server) handleRefineStory(w http.ResponseWriter, r *http.Request) {
	var req refineStoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	// невалидная история от клиента - 400, от модели - 502
	if err := req.Story.Validate(); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	refined, err := s.deps.Stories.Refine(r.Context(), req.Story, req.Feedback)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refined)
}

// handleSessionStories генерирует истории по рабочему тексту сессии и сохраняет их в ней
func (s *Server) handleSessionStories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}
	text := sess.ArtifactText()

	s.stream(w, r, func(ctx context.Context, sse *sseWriter) (any, error) {
		gen, err := s.deps.Stories.Run(stories.WithProgress(ctx, stepsTo(sse)), text)
		if err != nil {
			return nil, err
		}
		sess.SetStories(gen.Stories, gen.Coverage)
		return gen, nil
	})
}

type sessionStoriesResponse struct {
	Stories  []domain.UserStory     `json:"stories"`
	Coverage *domain.CoverageReport `json:"coverage,omitempty"`
}

func (s *Server) handleGetSessionStories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.withSession(w, r)
	if !ok {
		return
	}
	list, coverage := sess.Stories()
	writeJSON(w, http.StatusOK, sessionStoriesResponse{Stories: list, Coverage: coverage})
}

// stepsTo: начало шага - progress, конец - step_complete
func stepsTo(sse *sseWriter) stories.ProgressFunc {
	return func(e stories.Event) {
		if !e.Done {
			sse.Send("progress", map[string]any{"step": e.Step, "message": stepMessages[e.Step]})
			return
		}
		sse.Send("step_complete", map[string]any{"step": e.Step, "count": e.Count})
	}
}
