package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/iteration"
)

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Info)
}

type detectRequest struct {
	ArtifactText string `json:"artifact_text"`
}

func (s *Server) handleDetectType(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	det, err := s.deps.Detector.Detect(r.Context(), req.ArtifactText)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

type analyseRequest struct {
	ArtifactText string `json:"artifact_text"`
	ArtifactType string `json:"artifact_type,omitempty"`
}

// handleAnalyse - разовый анализ без сессии, прогресс идет SSE
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var req analyseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	requested, err := parseOptionalType(req.ArtifactType)
	if err == nil {
		err = domain.ValidateArtifact(req.ArtifactText)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.stream(w, r, func(ctx context.Context, sse *sseWriter) (any, error) {
		t, err := s.resolveType(ctx, sse, req.ArtifactText, requested)
		if err != nil {
			return nil, err
		}
		a := s.deps.NewAnalyser(t)
		return a.Analyse(analyser.WithProgress(ctx, progressTo(sse, 0)), req.ArtifactText, 1)
	})
}

type compareRequest struct {
	ArtifactText1 string `json:"artifact_text_1"`
	ArtifactText2 string `json:"artifact_text_2"`
	ArtifactType  string `json:"artifact_type,omitempty"`
}

type compareResponse struct {
	Result1    *domain.AnalysisResult  `json:"result_1"`
	Result2    *domain.AnalysisResult  `json:"result_2"`
	Comparison domain.ComparisonReport `json:"comparison"`
}

// handleCompare оценивает две версии как итерации 1 и 2 и сравнивает их
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	requested, err := parseOptionalType(req.ArtifactType)
	if err == nil {
		err = domain.ValidateArtifact(req.ArtifactText1)
	}
	if err == nil {
		err = domain.ValidateArtifact(req.ArtifactText2)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.stream(w, r, func(ctx context.Context, sse *sseWriter) (any, error) {
		t, err := s.resolveType(ctx, sse, req.ArtifactText1, requested)
		if err != nil {
			return nil, err
		}
		a := s.deps.NewAnalyser(t)

		results := make([]*domain.AnalysisResult, 2)
		for i, text := range []string{req.ArtifactText1, req.ArtifactText2} {
			n := i + 1
			sse.Send("progress", map[string]any{"step": "analysing", "artifact": n})
			res, err := a.Analyse(analyser.WithProgress(ctx, progressTo(sse, n)), text, n)
			if err != nil {
				return nil, err
			}
			results[i] = res
			sse.Send("artifact_complete", map[string]any{"artifact": n, "score": res.OverallScore})
		}

		return compareResponse{
			Result1:    results[0],
			Result2:    results[1],
			Comparison: iteration.Compare(results[0], results[1], 1, 2),
		}, nil
	})
}

// resolveType - явный тип или детекция с событием type_detected
func (s *Server) resolveType(ctx context.Context, sse *sseWriter, text string, requested domain.ArtifactType) (domain.ArtifactType, error) {
	if requested != "" {
		return requested, nil
	}
	sse.Send("progress", map[string]any{"step": "detecting_type", "message": "Detecting artifact type..."})
	t, det, err := s.deps.Detector.Resolve(ctx, text, "")
	if err != nil {
		return "", err
	}
	sse.Send("type_detected", det)
	return t, nil
}

func parseOptionalType(raw string) (domain.ArtifactType, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseArtifactType(raw)
}

// stream открывает SSE и завершает его событием complete или error
func (s *Server) stream(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, sse *sseWriter) (any, error)) {
	sse, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := run(r.Context(), sse)
	if err != nil {
		s.deps.Logger.Warn("streamed request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		sse.Send("error", map[string]any{"message": err.Error(), "status": errorStatus(err)})
		return
	}
	sse.Send("complete", result)
}
