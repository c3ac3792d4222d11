// Package events publishes listing lifecycle events on Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/types"
	"go.uber.org/zap"
)

const (
	DefaultChannel = "listings:events"
	eventSource    = "resaletix-backend"
)

type Config struct {
	Channel        string
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Channel:        DefaultChannel,
		PublishTimeout: 5 * time.Second,
	}
}

type metrics struct {
	publishLatency prometheus.Histogram
	errorCount     *prometheus.CounterVec
	eventCount     *prometheus.CounterVec
}

var (
	metricsInstance *metrics
	metricsOnce     sync.Once
	defaultRegistry = prometheus.DefaultRegisterer
)

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsInstance = &metrics{
			publishLatency: promauto.With(defaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "listing_event_publish_duration_seconds",
				Help:    "Time taken to publish listing events",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			}),
			errorCount: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "listing_event_errors_total",
				Help: "Listing event publish failures by reason",
			}, []string{"reason"}),
			eventCount: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "listing_events_total",
				Help: "Published listing events by type",
			}, []string{"type"}),
		}
	})
	return metricsInstance
}

func resetMetricsForTesting() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	defaultRegistry = reg
	metricsInstance = nil
	metricsOnce = sync.Once{}
	return reg
}

// RedisPublisher publishes every listing event on one channel.
type RedisPublisher struct {
	rdb     redis.Cmdable
	log     *zap.SugaredLogger
	metrics *metrics
	config  Config
}

func NewRedisPublisher(rdb redis.Cmdable, cfg ...Config) *RedisPublisher {
	config := DefaultConfig()
	if len(cfg) > 0 {
		config = cfg[0]
		if config.Channel == "" {
			config.Channel = DefaultChannel
		}
		if config.PublishTimeout <= 0 {
			config.PublishTimeout = DefaultConfig().PublishTimeout
		}
	}
	return &RedisPublisher{
		rdb:     rdb,
		log:     logger.GetLogger().Named("events"),
		metrics: newMetrics(),
		config:  config,
	}
}

// Publish fills in ID, timestamp, version and source when unset.
func (p *RedisPublisher) Publish(ctx context.Context, event types.Event) error {
	start := time.Now()
	defer func() {
		p.metrics.publishLatency.Observe(time.Since(start).Seconds())
	}()

	if err := event.Validate(); err != nil {
		p.metrics.errorCount.WithLabelValues("validation").Inc()
		return fmt.Errorf("invalid event: %w", err)
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	if event.Source == "" {
		event.Source = eventSource
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.metrics.errorCount.WithLabelValues("marshal").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, p.config.Channel, data).Err(); err != nil {
		p.metrics.errorCount.WithLabelValues("redis").Inc()
		return fmt.Errorf("redis publish: %w", err)
	}

	p.metrics.eventCount.WithLabelValues(string(event.Type)).Inc()
	p.log.Debugw("Published listing event", "type", event.Type, "listingID", event.ListingID, "eventID", event.ID)
	return nil
}

// NewEvent marshals payload into a listing event.
func NewEvent(eventType types.EventType, listingID, userID string, payload any) (types.Event, error) {
	event := types.Event{
		Type:      eventType,
		ListingID: listingID,
		UserID:    userID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return types.Event{}, fmt.Errorf("marshal event payload: %w", err)
		}
		event.Payload = raw
	}
	return event, nil
}
