package config

import (
	"testing"

	"github.com/resaletix/resaletix-backend/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_JWT_SECRET", testJWTSecret)
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageSupabase, cfg.Storage.Backend)
	assert.Equal(t, "tickets", cfg.Storage.Bucket)
	assert.Equal(t, 120, cfg.DedupService.ExtractTimeoutSeconds)
	assert.Equal(t, 30, cfg.DedupService.CheckTimeoutSeconds)
	assert.InDelta(t, 0.5, cfg.DuplicateDetection.SimilarityThreshold, 1e-9)
	assert.Equal(t, 1, cfg.DuplicateDetection.MatchCount)
	assert.False(t, cfg.DuplicateDetection.PDFEmbeddingCheck)
	assert.True(t, cfg.DuplicateDetection.ExactFingerprintCheck)
	assert.Equal(t, "listings:events", cfg.EventService.Channel)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("DUPLICATE_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("DUPLICATE_PDF_EMBEDDING_CHECK", "true")
	t.Setenv("DEDUP_SERVICE_URL", "http://dedup:9000")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_PATH", t.TempDir())
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.InDelta(t, 0.8, cfg.DuplicateDetection.SimilarityThreshold, 1e-9)
	assert.True(t, cfg.DuplicateDetection.PDFEmbeddingCheck)
	assert.Equal(t, "http://dedup:9000", cfg.DedupService.BaseURL)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "short jwt secret",
			env:     map[string]string{"SUPABASE_JWT_SECRET": "short"},
			wantErr: "JWT secret",
		},
		{
			name:    "threshold out of range",
			env:     map[string]string{"DUPLICATE_SIMILARITY_THRESHOLD": "1.5"},
			wantErr: "similarity threshold",
		},
		{
			name:    "unknown storage backend",
			env:     map[string]string{"STORAGE_BACKEND": "ftp"},
			wantErr: "unknown storage backend",
		},
		{
			name:    "r2 without credentials",
			env:     map[string]string{"STORAGE_BACKEND": "r2"},
			wantErr: "r2 access key",
		},
		{
			name:    "zero check timeout",
			env:     map[string]string{"DEDUP_CHECK_TIMEOUT_SECONDS": "0"},
			wantErr: "timeouts must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEmailAutoDisabledWithoutKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("EMAIL_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Email.Enabled)
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", Name: "resaletix"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/resaletix?sslmode=disable", db.URL())
}

func TestPoolConfig(t *testing.T) {
	pc, err := PoolConfig(&DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret", Name: "resaletix",
		SSLMode: "require", MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLife: "bogus",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 8, pc.MaxConns)
	assert.EqualValues(t, 2, pc.MinConns)
	assert.NotNil(t, pc.ConnConfig.TLSConfig)
	assert.Equal(t, "30m0s", pc.MaxConnLifetime.String())
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(&RedisConfig{Address: "cache:6379", UseTLS: true, PoolSize: 4})
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 4, opts.PoolSize)
	assert.NotNil(t, opts.TLSConfig)
}
