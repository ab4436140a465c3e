package llm

import (
	"context"
	"errors"
)

var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRequestFailed = errors.New("request failed")
	ErrEmptyResponse = errors.New("empty response")
	ErrRateLimit     = errors.New("rate limit exceeded")
	ErrOverloaded    = errors.New("provider overloaded")
	ErrInvalidJSON   = errors.New("response is not valid json")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request - один вызов модели. Temperature nil и MaxTokens 0 значат "как настроено у провайдера".
type Request struct {
	System      string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

func NewRequest(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

func (r Request) WithTemperature(t float64) Request {
	r.Temperature = &t
	return r
}

func (r Request) WithMaxTokens(n int) Request {
	r.MaxTokens = n
	return r
}

// Client - свободный текстовый completion. Структурированный вариант см. InvokeJSON.
type Client interface {
	Invoke(ctx context.Context, req Request) (string, error)
	Name() string
}
