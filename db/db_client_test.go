package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseClient(t *testing.T) {
	got := NewDatabaseClient(nil)
	require.NotNil(t, got)
	assert.Nil(t, got.GetPool())
	assert.Equal(t, 5, got.maxRetries)
	assert.Equal(t, time.Second, got.retryDelay)
}

func TestDatabaseClient_PingWithoutPool(t *testing.T) {
	err := NewDatabaseClient(nil).Ping(context.Background())
	assert.ErrorIs(t, err, errNoPool)
}

func TestDatabaseClient_CloseWithoutPool(t *testing.T) {
	assert.NotPanics(t, func() { NewDatabaseClient(nil).Close() })
}

func TestConnect_HonoursCancelledContext(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Connect(ctx, cfg)
	assert.Error(t, err)
}
