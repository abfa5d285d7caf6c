package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

// StatsCache is a read-through cache for aggregated stats, backed by
// Redis in production.
type StatsCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// CompanyStats combines audit-log aggregates with live queue depth.
type CompanyStats struct {
	*domain.Stats
	Queue map[domain.State]int `json:"queue"`
}

// StatsService serves processing statistics. Aggregation queries are
// cached and deduplicated with singleflight so a dashboard refresh
// storm costs one database round trip.
type StatsService struct {
	logs   domain.LogRepository
	queue  domain.QueueRepository
	cache  StatsCache
	ttl    time.Duration
	clock  Clock
	logger logging.Logger
	group  singleflight.Group
}

// NewStatsService builds a StatsService. A nil cache disables caching.
func NewStatsService(logs domain.LogRepository, queue domain.QueueRepository, cache StatsCache, ttl time.Duration, clock Clock, logger logging.Logger) *StatsService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StatsService{
		logs:   logs,
		queue:  queue,
		cache:  cache,
		ttl:    ttl,
		clock:  clock,
		logger: logger.Named("stats"),
	}
}

// Get returns stats for a company over the trailing window.
func (s *StatsService) Get(ctx context.Context, companyID uuid.UUID, window time.Duration) (*CompanyStats, error) {
	key := fmt.Sprintf("stats:%s:%s", companyID, window)

	if s.cache != nil {
		var cached CompanyStats
		if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.logger.Warn("stats cache read failed", logging.Err(err))
		} else if hit {
			return &cached, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.compute(ctx, companyID, window)
	})
	if err != nil {
		return nil, err
	}
	stats := v.(*CompanyStats)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", logging.Err(err))
		}
	}
	return stats, nil
}

func (s *StatsService) compute(ctx context.Context, companyID uuid.UUID, window time.Duration) (*CompanyStats, error) {
	since := s.clock.Now().Add(-window)
	aggregates, err := s.logs.Stats(ctx, companyID, since)
	if err != nil {
		return nil, err
	}
	counts, err := s.queue.Counts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &CompanyStats{Stats: aggregates, Queue: counts}, nil
}

// Invalidate drops cached aggregates. Wired to the category catalog's
// reload callback: cached stats may reference retired categories.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, "stats:"); err != nil {
		s.logger.Warn("stats cache invalidation failed", logging.Err(err))
	}
}
