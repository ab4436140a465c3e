package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/llm"
)

func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "gen-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func apiError(msg string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{"message": msg, "type": "error"},
	}
}

func TestClient_Invoke(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		response   interface{}
		statusCode int
		wantErr    error
	}{
		{
			name:       "successful completion",
			response:   chatResponse("Test response"),
			statusCode: http.StatusOK,
		},
		{
			name:       "unauthorized",
			response:   apiError("unauthorized"),
			statusCode: http.StatusUnauthorized,
			wantErr:    llm.ErrAuthFailed,
		},
		{
			name:       "rate limit",
			response:   apiError("rate limit"),
			statusCode: http.StatusTooManyRequests,
			wantErr:    llm.ErrRateLimit,
		},
		{
			name:       "upstream unavailable",
			response:   apiError("unavailable"),
			statusCode: http.StatusServiceUnavailable,
			wantErr:    llm.ErrOverloaded,
		},
		{
			name: "empty response",
			response: map[string]interface{}{
				"id":      "gen-1",
				"choices": []interface{}{},
			},
			statusCode: http.StatusOK,
			wantErr:    llm.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "" {
					t.Error("missing authorization header")
				}
				if r.Header.Get("X-Title") == "" {
					t.Error("missing X-Title header")
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := New(Config{
				APIKey:  "test-key",
				BaseURL: server.URL,
				Timeout: 5 * time.Second,
			}, logger)

			result, err := client.Invoke(context.Background(), llm.NewRequest("system", "prompt"))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Invoke() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Invoke() unexpected error = %v", err)
				return
			}

			if result != "Test response" {
				t.Errorf("Invoke() = %q, want %q", result, "Test response")
			}
		})
	}
}

func TestClient_InvokeSendsSystemMessage(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature *float64 `json:"temperature"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("ok"))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", Model: "m", BaseURL: server.URL}, zap.NewNop())
	if _, err := client.Invoke(context.Background(), llm.NewRequest("be precise", "hi").WithTemperature(0)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if body.Model != "m" {
		t.Errorf("model = %s, want m", body.Model)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(body.Messages))
	}
	if body.Messages[0].Role != "system" || body.Messages[0].Content != "be precise" {
		t.Errorf("system message = %+v", body.Messages[0])
	}
	if body.Messages[1].Role != "user" || body.Messages[1].Content != "hi" {
		t.Errorf("user message = %+v", body.Messages[1])
	}
	if body.Temperature == nil {
		t.Error("temperature omitted, want near-zero value sent")
	}
}
