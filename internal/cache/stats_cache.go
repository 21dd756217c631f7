package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AlphaSudo/HmS2/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStatsTTL bounds staleness for cached billing stats; mutations
// invalidate eagerly, the TTL is a backstop.
const DefaultStatsTTL = 5 * time.Minute

// StatsCache is a redis-backed cache for per-patient billing stats. All
// operations are best-effort: a cache failure is logged and the caller
// falls through to the database aggregation.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewStatsCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{rdb: rdb, ttl: ttl, log: log}
}

func statsKey(patientID int64) string {
	return fmt.Sprintf("billing:stats:%d", patientID)
}

func (c *StatsCache) Get(ctx context.Context, patientID int64) (*service.BillingStats, bool) {
	data, err := c.rdb.Get(ctx, statsKey(patientID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("stats cache read failed", zap.Int64("patient_id", patientID), zap.Error(err))
		}
		return nil, false
	}

	var stats service.BillingStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.log.Warn("stats cache entry corrupt, dropping", zap.Int64("patient_id", patientID), zap.Error(err))
		_ = c.rdb.Del(ctx, statsKey(patientID)).Err()
		return nil, false
	}
	return &stats, true
}

func (c *StatsCache) Set(ctx context.Context, stats service.BillingStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.log.Warn("stats cache marshal failed", zap.Int64("patient_id", stats.PatientID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, statsKey(stats.PatientID), data, c.ttl).Err(); err != nil {
		c.log.Warn("stats cache write failed", zap.Int64("patient_id", stats.PatientID), zap.Error(err))
	}
}

func (c *StatsCache) Invalidate(ctx context.Context, patientID int64) {
	if err := c.rdb.Del(ctx, statsKey(patientID)).Err(); err != nil {
		c.log.Warn("stats cache invalidation failed", zap.Int64("patient_id", patientID), zap.Error(err))
	}
}
