package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/arsip-go-api/internal/dto"
)

// ActivityStatsService caches the aggregate stats surface of the tracking
// facade. Aggregates are expensive over large trails; reports tolerate a
// slightly stale view.
type ActivityStatsService struct {
	tracking *TrackingService
	cache    *redis.Client
	ttl      time.Duration
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewActivityStatsService constructs the stats service. The cache is
// optional; without it every call hits the repository.
func NewActivityStatsService(tracking *TrackingService, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *ActivityStatsService {
	return &ActivityStatsService{
		tracking: tracking,
		cache:    cache,
		ttl:      ttl,
		tracer:   otel.Tracer("github.com/noah-isme/arsip-go-api/internal/service/activity_stats"),
		logger:   logger.With().Str("component", "activity_stats_service").Logger(),
	}
}

// UserStats returns cached per-user aggregates for the trailing window.
func (s *ActivityStatsService) UserStats(ctx context.Context, userID string, days int) (dto.ActivityStatsResponse, error) {
	key := fmt.Sprintf("tracking:stats:user:%s:%d", userID, normalizeWindow(days))
	return s.cached(ctx, key, func(ctx context.Context) (dto.ActivityStatsResponse, error) {
		return s.tracking.UserStats(ctx, userID, days)
	})
}

// SystemStats returns cached system-wide aggregates for the trailing window.
func (s *ActivityStatsService) SystemStats(ctx context.Context, days int) (dto.ActivityStatsResponse, error) {
	key := fmt.Sprintf("tracking:stats:system:%d", normalizeWindow(days))
	return s.cached(ctx, key, func(ctx context.Context) (dto.ActivityStatsResponse, error) {
		return s.tracking.SystemStats(ctx, days)
	})
}

func (s *ActivityStatsService) cached(ctx context.Context, key string, load func(context.Context) (dto.ActivityStatsResponse, error)) (dto.ActivityStatsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tracking.stats")
	span.SetAttributes(attribute.String("stats.cache_key", key))
	defer span.End()

	if s.cache != nil {
		cachedPayload, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var response dto.ActivityStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cachedPayload), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("stats.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read stats cache")
			span.RecordError(err)
		}
	}

	response, err := load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stats_aggregation_failed")
		return dto.ActivityStatsResponse{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("failed to store stats cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}
