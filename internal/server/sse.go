package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
)

var errStreamingUnsupported = errors.New("streaming unsupported")

// sseWriter пишет события text/event-stream. Send можно звать из разных горутин.
type sseWriter struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &sseWriter{w: w, f: f}, nil
}

func (s *sseWriter) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// progressTo переводит события анализатора в SSE. artifact != 0 помечает сторону сравнения.
func progressTo(sse *sseWriter, artifact int) analyser.ProgressFunc {
	return func(e analyser.Event) {
		data := map[string]any{}
		if artifact != 0 {
			data["artifact"] = artifact
		}

		switch e.Kind {
		case analyser.EventDimensionStarted:
			data["step"] = "evaluating_dimension"
			data["dimension"] = e.Dimension
			data["current"] = e.Index
			data["total"] = e.Total
			data["message"] = fmt.Sprintf("Evaluating %s...", e.Name)
			sse.Send("progress", data)
		case analyser.EventDimensionComplete:
			data["dimension"] = e.Dimension
			data["score"] = e.Score
			data["current"] = e.Index
			data["total"] = e.Total
			sse.Send("dimension_complete", data)
		case analyser.EventSynthesising:
			data["step"] = "synthesising"
			data["message"] = "Synthesising results..."
			sse.Send("progress", data)
		}
	}
}
