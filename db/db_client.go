package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resaletix/resaletix-backend/logger"
)

var errNoPool = errors.New("database pool is not initialized")

// DatabaseClient owns the pgx pool shared by the listing store and the
// health check.
type DatabaseClient struct {
	pool       *pgxpool.Pool
	config     *pgxpool.Config
	maxRetries int
	retryDelay time.Duration
}

func NewDatabaseClient(pool *pgxpool.Pool) *DatabaseClient {
	return &DatabaseClient{
		pool:       pool,
		maxRetries: 5,
		retryDelay: time.Second,
	}
}

// Connect opens a pool from config, retrying with linear backoff while the
// database comes up.
func Connect(ctx context.Context, config *pgxpool.Config) (*DatabaseClient, error) {
	dc := NewDatabaseClient(nil)
	dc.config = config

	log := logger.GetLogger()
	var lastErr error
	for attempt := 1; attempt <= dc.maxRetries; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				dc.pool = pool
				return dc, nil
			}
			pool.Close()
		}
		lastErr = err
		log.Warnw("Database connection attempt failed", "attempt", attempt, "max_attempts", dc.maxRetries, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * dc.retryDelay):
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", dc.maxRetries, lastErr)
}

func (dc *DatabaseClient) GetPool() *pgxpool.Pool {
	return dc.pool
}

func (dc *DatabaseClient) Ping(ctx context.Context) error {
	if dc.pool == nil {
		return errNoPool
	}
	return dc.pool.Ping(ctx)
}

func (dc *DatabaseClient) Close() {
	if dc.pool != nil {
		dc.pool.Close()
	}
}
