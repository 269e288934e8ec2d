package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"

	"trendcraft/internal/logging"
)

// RetryConfig configures RetryingProvider
type RetryConfig struct {
	// MaxAttempts includes the first attempt
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds each individual attempt
	Timeout time.Duration
}

// RetryingProvider retries transient provider failures with exponential backoff.
// Rate-limit responses are returned immediately.
type RetryingProvider struct {
	next     Provider
	config   RetryConfig
	logger   logging.Logger
	attempts *prometheus.CounterVec
}

// NewRetryingProvider wraps next. attempts may be nil; when set it is
// incremented with the provider name and the attempt outcome.
func NewRetryingProvider(next Provider, config RetryConfig, logger logging.Logger, attempts *prometheus.CounterVec) *RetryingProvider {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 300 * time.Millisecond
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 5 * time.Second
	}
	return &RetryingProvider{
		next:     next,
		config:   config,
		logger:   logger.With(logging.String("provider", next.Name())),
		attempts: attempts,
	}
}

// Name returns the wrapped provider's name
func (p *RetryingProvider) Name() string {
	return p.next.Name()
}

// Generate calls the wrapped provider, retrying transient failures
func (p *RetryingProvider) Generate(ctx context.Context, req Request) (string, error) {
	backoff := retry.NewExponential(p.config.InitialBackoff)
	backoff = retry.WithCappedDuration(p.config.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(p.config.MaxAttempts-1), backoff)

	var (
		text    string
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := p.call(ctx, req)
		if err == nil {
			p.observe("success")
			text = out
			return nil
		}

		switch {
		case IsRateLimited(err):
			p.observe("rate_limited")
			return err
		case IsTransient(err):
			p.observe("transient")
			p.logger.Warn("Transient provider failure",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", p.config.MaxAttempts),
				logging.Error(err),
			)
			return retry.RetryableError(err)
		default:
			p.observe("failure")
			return err
		}
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *RetryingProvider) call(ctx context.Context, req Request) (string, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}
	return p.next.Generate(ctx, req)
}

func (p *RetryingProvider) observe(outcome string) {
	if p.attempts != nil {
		p.attempts.WithLabelValues(p.next.Name(), outcome).Inc()
	}
}
