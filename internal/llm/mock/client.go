package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kitbuilder587/ba-analyser/internal/llm"
)

// Client - сценарный LLM для тестов и режима LLM_PROVIDER=mock.
// Порядок ответа на i-й вызов: Handler, Errors[i], Error, Responses[i], Response.
type Client struct {
	mu sync.Mutex

	Response  string
	Responses []string
	Error     error
	Errors    []error
	Handler   func(req llm.Request) (string, error)
	Delay     time.Duration

	CallCount   int
	LastRequest llm.Request
	AllCalls    []llm.Request
}

func New() *Client {
	return &Client{
		Response: "{}",
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

func (c *Client) WithResponses(responses ...string) *Client {
	c.Responses = responses
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithErrors(errs ...error) *Client {
	c.Errors = errs
	return c
}

func (c *Client) WithHandler(h func(req llm.Request) (string, error)) *Client {
	c.Handler = h
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) Name() string { return "mock" }

func (c *Client) Invoke(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	idx := c.CallCount
	c.CallCount++
	c.LastRequest = req
	c.AllCalls = append(c.AllCalls, req)
	handler := c.Handler
	delay := c.Delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if handler != nil {
		return handler(req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx < len(c.Errors) && c.Errors[idx] != nil {
		return "", c.Errors[idx]
	}
	if c.Error != nil {
		return "", c.Error
	}
	if idx < len(c.Responses) {
		return c.Responses[idx], nil
	}
	return c.Response, nil
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.AllCalls))
	copy(out, c.AllCalls)
	return out
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastRequest = llm.Request{}
	c.AllCalls = nil
}

// HasCallWithSystem - был ли вызов, у которого system prompt содержит substr
func (c *Client) HasCallWithSystem(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.AllCalls {
		if strings.Contains(call.System, substr) {
			return true
		}
	}
	return false
}

// Prompt - текст первого user-сообщения запроса
func Prompt(req llm.Request) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

var _ llm.Client = (*Client)(nil)
