package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/types"
	"go.uber.org/zap"
)

const componentTimeout = 3 * time.Second

// Pinger is anything that can report reachability: the pgx pool and the
// dedup client both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	db        Pinger
	redis     redis.Cmdable
	dedup     Pinger
	version   string
	startTime time.Time
	log       *zap.SugaredLogger
}

// NewHealthService accepts nil for redis or dedup when they are not configured.
func NewHealthService(db Pinger, redisClient redis.Cmdable, dedup Pinger, version string) *HealthService {
	return &HealthService{
		db:        db,
		redis:     redisClient,
		dedup:     dedup,
		version:   version,
		startTime: time.Now(),
		log:       logger.GetLogger(),
	}
}

// CheckHealth reports DOWN only when the database is unreachable. Redis and
// the dedup service degrade the service without stopping it: uploads are
// still accepted unchecked, confirmations fail until the service is back.
func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := map[string]types.HealthComponent{
		types.ComponentDatabase: h.check(ctx, types.ComponentDatabase, h.db, types.HealthStatusDown),
	}
	if h.redis != nil {
		components[types.ComponentRedis] = h.check(ctx, types.ComponentRedis, redisPinger{h.redis}, types.HealthStatusDegraded)
	}
	if h.dedup != nil {
		components[types.ComponentDedupService] = h.check(ctx, types.ComponentDedupService, h.dedup, types.HealthStatusDegraded)
	}

	overall := types.HealthStatusUp
	for _, c := range components {
		switch {
		case c.Status == types.HealthStatusDown:
			overall = types.HealthStatusDown
		case c.Status == types.HealthStatusDegraded && overall != types.HealthStatusDown:
			overall = types.HealthStatusDegraded
		}
	}

	return types.HealthCheck{
		Status:     overall,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

func (h *HealthService) check(ctx context.Context, name string, p Pinger, onFailure types.HealthStatus) types.HealthComponent {
	ctx, cancel := context.WithTimeout(ctx, componentTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		h.log.Errorw("Health check failed", "component", name, "error", err)
		return types.HealthComponent{Status: onFailure, Details: name + " unreachable"}
	}
	return types.HealthComponent{Status: types.HealthStatusUp}
}

type redisPinger struct{ c redis.Cmdable }

func (r redisPinger) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}
