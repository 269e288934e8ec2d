// internal/service/listening/detector.go

package listening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trendcraft/internal/catalog"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

// Publisher delivers discovery events, e.g. a NATS connection
type Publisher interface {
	Publish(subject string, data []byte) error
}

// TrendDetectorConfig contains configuration for the trend detector
type TrendDetectorConfig struct {
	// EventsTopic prefixes published subjects: <topic>.discovered.<source>.<category>
	EventsTopic string
}

// DiscoveryEvent is published after a successful discovery run
type DiscoveryEvent struct {
	Source           trend.Source      `json:"source"`
	CategorySource   trend.CategoryKey `json:"categorySource"`
	TrendsDiscovered int               `json:"trendsDiscovered"`
	SynthesisPath    string            `json:"synthesisPath"`
	Trends           []trend.Trend     `json:"trends"`
	DiscoveredAt     time.Time         `json:"discoveredAt"`
}

var _ trend.Discoverer = (*TrendDetector)(nil)

// TrendDetector implements trend.Discoverer
type TrendDetector struct {
	fetchers    map[trend.Source]trend.Fetcher
	filters     map[trend.Source]*QualityFilter
	catalog     *catalog.Catalog
	synthesizer *Synthesizer
	scorer      *AlignmentScorer
	store       trend.Store
	eventBus    Publisher
	metrics     *Metrics
	logger      logging.Logger
	config      TrendDetectorConfig
	now         func() time.Time
}

// NewTrendDetector creates a new trend detector. eventBus and metrics may be nil.
func NewTrendDetector(
	cat *catalog.Catalog,
	fetchers []trend.Fetcher,
	synthesizer *Synthesizer,
	trendStore trend.Store,
	eventBus Publisher,
	metrics *Metrics,
	logger logging.Logger,
	config TrendDetectorConfig,
) *TrendDetector {
	if config.EventsTopic == "" {
		config.EventsTopic = "trend"
	}

	td := &TrendDetector{
		fetchers:    make(map[trend.Source]trend.Fetcher, len(fetchers)),
		filters:     make(map[trend.Source]*QualityFilter, len(fetchers)),
		catalog:     cat,
		synthesizer: synthesizer,
		scorer:      NewAlignmentScorer(cat),
		store:       trendStore,
		eventBus:    eventBus,
		metrics:     metrics,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}

	for _, f := range fetchers {
		rule := cat.FilterFor(f.Source())
		td.fetchers[f.Source()] = f
		td.filters[f.Source()] = NewQualityFilter(QualityFilterConfig{
			MinScore:    rule.MinScore,
			MinComments: rule.MinComments,
			Denylist:    cat.Denylist(),
		})
	}

	return td
}

// Discover runs fetch, filter, dedup, synthesis and persistence for one
// category. Failures are reported in the result, never as a Go error.
func (td *TrendDetector) Discover(ctx context.Context, req trend.DiscoverRequest) trend.DiscoveryResult {
	if req.Source == "" {
		req.Source = trend.SourceReddit
	}
	start := td.now()
	logger := td.logger.With(
		logging.String("source", string(req.Source)),
		logging.String("category", string(req.Category)),
	)

	stored, path, err := td.discover(ctx, req, logger)
	td.observe(req, stored, path, err, start)

	if err != nil {
		kind := trend.KindOf(err)
		logger.Warn("Discovery failed",
			logging.String("kind", string(kind)),
			logging.Error(err),
		)
		result := trend.DiscoveryResult{
			Success:   false,
			Error:     err.Error(),
			ErrorKind: kind,
		}
		var te *trend.Error
		if errors.As(err, &te) {
			result.RetryAfter = te.RetryAfter
		}
		return result
	}

	logger.Info("Discovery complete",
		logging.Int("trends", stored),
		logging.String("path", path),
		logging.Duration("elapsed", td.now().Sub(start)),
	)
	return trend.DiscoveryResult{
		Success:          true,
		TrendsDiscovered: stored,
		SynthesisPath:    path,
	}
}

func (td *TrendDetector) discover(ctx context.Context, req trend.DiscoverRequest, logger logging.Logger) (int, string, error) {
	fetcher, err := td.fetcherFor(req)
	if err != nil {
		return 0, "", err
	}

	items, err := fetcher.Fetch(ctx, req.Category)
	if err != nil {
		if trend.KindOf(err) == "" {
			err = trend.NewError(trend.KindSourceFetchFailure, "fetch", err)
		}
		return 0, "", err
	}

	quality := td.filters[req.Source].Apply(items)
	unique := Deduplicate(quality)
	logger.Debug("Candidate items prepared",
		logging.Int("fetched", len(items)),
		logging.Int("quality", len(quality)),
		logging.Int("unique", len(unique)),
	)
	if len(unique) == 0 {
		return 0, "", trend.NewError(trend.KindNoQualityItems, "filter", trend.ErrNoQualityItems)
	}

	synthesis, err := td.synthesizer.Synthesize(ctx, req.Source, unique)
	if err != nil {
		return 0, "", err
	}

	now := td.now().UTC()
	trends := synthesis.Trends
	for i := range trends {
		trends[i].ID = uuid.New().String()
		trends[i].Source = req.Source
		trends[i].CategorySource = req.Category
		trends[i].CreatedAt = now
	}

	stored, err := td.persist(ctx, req.Source, req.Category, trends, logger)
	if err != nil {
		return 0, "", err
	}

	if err := td.publishDiscoveryEvent(req, trends[:stored], synthesis.Path, now); err != nil {
		logger.Warn("Failed to publish discovery event", logging.Error(err))
	}

	return stored, synthesis.Path, nil
}

func (td *TrendDetector) fetcherFor(req trend.DiscoverRequest) (trend.Fetcher, error) {
	if !req.Source.Valid() {
		return nil, trend.NewError(trend.KindInvalidCategory, "discover", fmt.Errorf("unknown source %q", req.Source))
	}
	fetcher, ok := td.fetchers[req.Source]
	if !ok {
		return nil, trend.NewError(trend.KindInvalidCategory, "discover", fmt.Errorf("source %q is not configured", req.Source))
	}
	if !td.catalog.HasCategory(req.Category) || !fetcher.Supports(req.Category) {
		return nil, trend.NewError(trend.KindInvalidCategory, "discover",
			fmt.Errorf("category %q is not available for source %q", req.Category, req.Source))
	}
	return fetcher, nil
}

// persist replaces the stored trends for (source, categorySource). A failed
// delete is logged and ignored; a failed insert fails the run. The two steps
// are not atomic.
func (td *TrendDetector) persist(
	ctx context.Context,
	source trend.Source,
	key trend.CategoryKey,
	trends []trend.Trend,
	logger logging.Logger,
) (int, error) {
	deleted, err := td.store.DeleteTrends(ctx, source, key)
	if err != nil {
		logger.Warn("Failed to delete previous trends, inserting anyway", logging.Error(err))
	} else {
		logger.Debug("Deleted previous trends", logging.Int("deleted", int(deleted)))
	}

	stored, err := td.store.InsertTrends(ctx, trends)
	if err != nil {
		return 0, trend.NewError(trend.KindPersistenceFailure, "insert trends", err)
	}
	if stored > len(trends) {
		stored = len(trends)
	}
	return stored, nil
}

// publishDiscoveryEvent publishes a discovery event
func (td *TrendDetector) publishDiscoveryEvent(req trend.DiscoverRequest, trends []trend.Trend, path string, at time.Time) error {
	if td.eventBus == nil {
		return nil
	}

	data, err := json.Marshal(DiscoveryEvent{
		Source:           req.Source,
		CategorySource:   req.Category,
		TrendsDiscovered: len(trends),
		SynthesisPath:    path,
		Trends:           trends,
		DiscoveredAt:     at,
	})
	if err != nil {
		return fmt.Errorf("error marshaling discovery event: %w", err)
	}

	return td.eventBus.Publish(DiscoverySubject(td.config.EventsTopic, req.Source, req.Category), data)
}

// DiscoverySubject returns the subject a discovery event is published on
func DiscoverySubject(topic string, source trend.Source, key trend.CategoryKey) string {
	return fmt.Sprintf("%s.discovered.%s.%s", topic, source, key)
}

func (td *TrendDetector) observe(req trend.DiscoverRequest, stored int, path string, err error, start time.Time) {
	if td.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(trend.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	td.metrics.Runs.WithLabelValues(string(req.Source), string(req.Category), outcome).Inc()
	td.metrics.RunDuration.WithLabelValues(string(req.Source)).Observe(td.now().Sub(start).Seconds())
	if err == nil {
		td.metrics.TrendsDiscovered.WithLabelValues(string(req.Source)).Add(float64(stored))
		td.metrics.SynthesisPaths.WithLabelValues(path).Inc()
	}
}

// GetTrends returns stored trends filtered by the provided criteria
func (td *TrendDetector) GetTrends(ctx context.Context, filter trend.Filter) ([]trend.Trend, error) {
	return td.store.FindTrends(ctx, filter)
}

// GetTrendByID returns a specific trend by ID
func (td *TrendDetector) GetTrendByID(ctx context.Context, id string) (*trend.Trend, error) {
	return td.store.GetTrend(ctx, id)
}

// rankPageSize is the store page size used to read every candidate for ranking
const rankPageSize = 500

// RankForNiche ranks every stored trend matching filter by alignment with a
// brand niche. filter.Limit and filter.Offset are ignored; limit bounds the output.
func (td *TrendDetector) RankForNiche(ctx context.Context, filter trend.Filter, niche string, limit int) ([]trend.BrandAlignment, error) {
	filter.Limit = rankPageSize
	filter.Offset = 0

	var candidates []trend.Trend
	for {
		page, err := td.store.FindTrends(ctx, filter)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, page...)
		if len(page) < rankPageSize {
			break
		}
		filter.Offset += len(page)
	}
	return td.scorer.Rank(candidates, niche, limit), nil
}
