package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type RetryConfig struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
}

// RetryingClient повторяет транзиентные ошибки (429, 5xx, таймауты) с экспоненциальной паузой.
// Остальные ошибки и последняя неудачная попытка возвращаются как есть.
type RetryingClient struct {
	next   Client
	cfg    RetryConfig
	logger *zap.Logger
}

func NewRetryingClient(next Client, cfg RetryConfig, logger *zap.Logger) *RetryingClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MinWait <= 0 {
		cfg.MinWait = 2 * time.Second
	}
	if cfg.MaxWait < cfg.MinWait {
		cfg.MaxWait = cfg.MinWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingClient{next: next, cfg: cfg, logger: logger}
}

func (c *RetryingClient) Name() string { return c.next.Name() }

func (c *RetryingClient) Invoke(ctx context.Context, req Request) (string, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.MinWait
	exp.MaxInterval = c.cfg.MaxWait
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.MaxAttempts-1)), ctx)

	var out string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.next.Invoke(ctx, req)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = resp
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("transient llm error, retrying",
			zap.String("provider", c.next.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", err
	}
	return out, nil
}
