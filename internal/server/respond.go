package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

// maxBodyBytes вмещает два артефакта максимальной длины с запасом на JSON-экранирование
const maxBodyBytes = 4 * domain.MaxArtifactLength

var (
	errInvalidBody  = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorStatus - единственное место, где ошибки превращаются в HTTP-коды
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidBody),
		errors.Is(err, stories.ErrEmptyFeedback),
		errors.Is(err, domain.ErrEmptyArtifact),
		errors.Is(err, domain.ErrArtifactTooLong),
		errors.Is(err, domain.ErrInvalidArtifactType),
		errors.Is(err, domain.ErrInvalidThreshold),
		errors.Is(err, domain.ErrEmptySessionID),
		errors.Is(err, domain.ErrInvalidIteration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientHistory),
		errors.Is(err, domain.ErrNoAnalysis),
		errors.Is(err, domain.ErrNoStories):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, llm.ErrAuthFailed),
		errors.Is(err, llm.ErrOverloaded),
		errors.Is(err, llm.ErrRequestFailed),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.Is(err, llm.ErrInvalidJSON),
		errors.Is(err, domain.ErrInvalidStory):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.deps.Logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", errInvalidBody, err)
}
