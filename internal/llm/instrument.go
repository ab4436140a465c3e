package llm

import (
	"context"
	"time"
)

type Recorder interface {
	RecordLLMRequest(provider, status string, duration time.Duration)
}

// InstrumentedClient пишет в метрики каждый вызов провайдера (включая ретраи, если обернут снаружи retry).
type InstrumentedClient struct {
	next     Client
	recorder Recorder
}

func NewInstrumentedClient(next Client, recorder Recorder) Client {
	if recorder == nil {
		return next
	}
	return &InstrumentedClient{next: next, recorder: recorder}
}

func (c *InstrumentedClient) Name() string { return c.next.Name() }

func (c *InstrumentedClient) Invoke(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	resp, err := c.next.Invoke(ctx, req)
	c.recorder.RecordLLMRequest(c.next.Name(), StatusLabel(err), time.Since(start))
	return resp, err
}
