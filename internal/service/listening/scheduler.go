package listening

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

// SchedulerConfig contains configuration for scheduled discovery
type SchedulerConfig struct {
	// Spec is a standard 5-field cron expression
	Spec string
	// Targets are "category" or "source:category" entries
	Targets []string
	// RunTimeout bounds each discovery run
	RunTimeout time.Duration
}

// Scheduler triggers discovery runs on a cron schedule
type Scheduler struct {
	discoverer trend.Discoverer
	requests   []trend.DiscoverRequest
	cron       *cron.Cron
	logger     logging.Logger
	timeout    time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewScheduler creates a scheduler. Targets are run one after another on each tick.
func NewScheduler(discoverer trend.Discoverer, config SchedulerConfig, logger logging.Logger) (*Scheduler, error) {
	requests, err := ParseTargets(config.Targets)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("no discovery targets configured")
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 5 * time.Minute
	}

	cronLog := cronLogger{logger: logger}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		discoverer: discoverer,
		requests:   requests,
		cron:       c,
		logger:     logger,
		timeout:    config.RunTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}

	if _, err := c.AddFunc(config.Spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid discovery schedule %q: %w", config.Spec, err)
	}
	return s, nil
}

// Start begins running scheduled discovery
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Discovery scheduler started", logging.Int("targets", len(s.requests)))
}

// Stop stops scheduling, cancels a running tick and waits for it to return or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	s.cancel()

	select {
	case <-cronCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	s.RunOnce(s.ctx)
}

// RunOnce runs discovery for every target and returns the results in target order
func (s *Scheduler) RunOnce(ctx context.Context) []trend.DiscoveryResult {
	results := make([]trend.DiscoveryResult, 0, len(s.requests))
	for _, req := range s.requests {
		if ctx.Err() != nil {
			break
		}
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		result := s.discoverer.Discover(runCtx, req)
		cancel()
		results = append(results, result)

		if !result.Success {
			s.logger.Warn("Scheduled discovery failed",
				logging.String("source", string(req.Source)),
				logging.String("category", string(req.Category)),
				logging.String("kind", string(result.ErrorKind)),
			)
		}
	}
	return results
}

// ParseTargets parses "category" and "source:category" entries. A bare
// category uses the reddit source.
func ParseTargets(targets []string) ([]trend.DiscoverRequest, error) {
	requests := make([]trend.DiscoverRequest, 0, len(targets))
	for _, raw := range targets {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		req := trend.DiscoverRequest{Source: trend.SourceReddit, Category: trend.CategoryKey(raw)}
		if source, key, ok := strings.Cut(raw, ":"); ok {
			req.Source = trend.Source(strings.TrimSpace(source))
			req.Category = trend.CategoryKey(strings.TrimSpace(key))
		}
		if !req.Source.Valid() {
			return nil, fmt.Errorf("invalid discovery target %q: unknown source", raw)
		}
		if req.Category == "" {
			return nil, fmt.Errorf("invalid discovery target %q: missing category", raw)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(kvFields(keysAndValues), logging.Error(err))...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
