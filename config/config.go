// Package config loads the service configuration from environment variables
// into a single Config value that main passes down to every component.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/resaletix/resaletix-backend/logger"
	"github.com/spf13/viper"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"

	minJWTLength = 32
)

type StorageBackend string

const (
	StorageSupabase StorageBackend = "supabase"
	StorageR2       StorageBackend = "r2"
	StorageLocal    StorageBackend = "local"
)

type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
	TrustedProxies []string    `mapstructure:"TRUSTED_PROXIES" yaml:"trusted_proxies"`
	// MaxUploadBytes bounds a single ticket upload, multipart overhead included.
	MaxUploadBytes int64 `mapstructure:"MAX_UPLOAD_BYTES" yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"HOST" yaml:"host"`
	Port         int    `mapstructure:"PORT" yaml:"port"`
	User         string `mapstructure:"USER" yaml:"user"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	Name         string `mapstructure:"NAME" yaml:"name"`
	SSLMode      string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"MAX_OPEN_CONNS" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"MAX_IDLE_CONNS" yaml:"max_idle_conns"`
	ConnMaxLife  string `mapstructure:"CONN_MAX_LIFE" yaml:"conn_max_life"`
	// AutoMigrate runs the embedded migrations at startup.
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE" yaml:"auto_migrate"`
}

// URL returns a postgres:// URL for golang-migrate and other URL-based tools.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

type RedisConfig struct {
	Address      string `mapstructure:"ADDRESS" yaml:"address"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	DB           int    `mapstructure:"DB" yaml:"db"`
	UseTLS       bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize     int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"MIN_IDLE_CONNS" yaml:"min_idle_conns"`
}

type ExternalServices struct {
	SupabaseURL        string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey    string `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `mapstructure:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `mapstructure:"SUPABASE_JWT_SECRET"`
}

type StorageConfig struct {
	Backend StorageBackend `mapstructure:"BACKEND" yaml:"backend"`
	Bucket  string         `mapstructure:"BUCKET" yaml:"bucket"`
	// LocalPath is the root directory for the local backend.
	LocalPath         string `mapstructure:"LOCAL_PATH" yaml:"local_path"`
	R2AccountID       string `mapstructure:"R2_ACCOUNT_ID" yaml:"r2_account_id"`
	R2AccessKeyID     string `mapstructure:"R2_ACCESS_KEY_ID" yaml:"r2_access_key_id"`
	R2SecretAccessKey string `mapstructure:"R2_SECRET_ACCESS_KEY" yaml:"r2_secret_access_key"`
	// R2Endpoint overrides the account-derived endpoint (S3-compatible stores, tests).
	R2Endpoint string `mapstructure:"R2_ENDPOINT" yaml:"r2_endpoint"`
}

// DedupServiceConfig points at the OCR/duplicate-detection microservice.
type DedupServiceConfig struct {
	BaseURL               string `mapstructure:"BASE_URL" yaml:"base_url"`
	APIKey                string `mapstructure:"API_KEY" yaml:"api_key"`
	ExtractTimeoutSeconds int    `mapstructure:"EXTRACT_TIMEOUT_SECONDS" yaml:"extract_timeout_seconds"`
	CheckTimeoutSeconds   int    `mapstructure:"CHECK_TIMEOUT_SECONDS" yaml:"check_timeout_seconds"`
}

type DuplicateDetectionConfig struct {
	// SimilarityThreshold is the minimum cosine similarity counted as a match.
	SimilarityThreshold float64 `mapstructure:"SIMILARITY_THRESHOLD" yaml:"similarity_threshold"`
	MatchCount          int     `mapstructure:"MATCH_COUNT" yaml:"match_count"`
	// PDFEmbeddingCheck runs the similarity pre-check for PDFs as well as images.
	PDFEmbeddingCheck     bool `mapstructure:"PDF_EMBEDDING_CHECK" yaml:"pdf_embedding_check"`
	ExactFingerprintCheck bool `mapstructure:"EXACT_FINGERPRINT_CHECK" yaml:"exact_fingerprint_check"`
	// RulesFile replaces the built-in extraction rule table when set.
	RulesFile string `mapstructure:"RULES_FILE" yaml:"rules_file"`
}

type EmailConfig struct {
	Enabled      bool   `mapstructure:"ENABLED" yaml:"enabled"`
	FromAddress  string `mapstructure:"FROM_ADDRESS" yaml:"from_address"`
	FromName     string `mapstructure:"FROM_NAME" yaml:"from_name"`
	ResendAPIKey string `mapstructure:"RESEND_API_KEY" yaml:"resend_api_key"`
	FrontendURL  string `mapstructure:"FRONTEND_URL" yaml:"frontend_url"`
}

type EventServiceConfig struct {
	PublishTimeoutSeconds int    `mapstructure:"PUBLISH_TIMEOUT_SECONDS" yaml:"publish_timeout_seconds"`
	Channel               string `mapstructure:"CHANNEL" yaml:"channel"`
}

type RateLimitConfig struct {
	UploadsPerWindow int `mapstructure:"UPLOADS_PER_WINDOW" yaml:"uploads_per_window"`
	WindowSeconds    int `mapstructure:"WINDOW_SECONDS" yaml:"window_seconds"`
}

type Config struct {
	Server             ServerConfig             `mapstructure:"SERVER" yaml:"server"`
	Database           DatabaseConfig           `mapstructure:"DATABASE" yaml:"database"`
	Redis              RedisConfig              `mapstructure:"REDIS" yaml:"redis"`
	ExternalServices   ExternalServices         `mapstructure:"EXTERNAL_SERVICES" yaml:"external_services"`
	Storage            StorageConfig            `mapstructure:"STORAGE" yaml:"storage"`
	DedupService       DedupServiceConfig       `mapstructure:"DEDUP_SERVICE" yaml:"dedup_service"`
	DuplicateDetection DuplicateDetectionConfig `mapstructure:"DUPLICATE_DETECTION" yaml:"duplicate_detection"`
	Email              EmailConfig              `mapstructure:"EMAIL" yaml:"email"`
	EventService       EventServiceConfig       `mapstructure:"EVENT_SERVICE" yaml:"event_service"`
	RateLimit          RateLimitConfig          `mapstructure:"RATE_LIMIT" yaml:"rate_limit"`
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds {configKey, envVar} pairs.
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.TRUSTED_PROXIES", []string{})
	v.SetDefault("SERVER.MAX_UPLOAD_BYTES", 11<<20)

	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "resaletix_dev")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE.MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE.CONN_MAX_LIFE", "1h")
	v.SetDefault("DATABASE.AUTO_MIGRATE", true)

	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 5)
	v.SetDefault("REDIS.MIN_IDLE_CONNS", 1)

	v.SetDefault("STORAGE.BACKEND", StorageSupabase)
	v.SetDefault("STORAGE.BUCKET", "tickets")
	v.SetDefault("STORAGE.LOCAL_PATH", "./uploads")

	v.SetDefault("DEDUP_SERVICE.BASE_URL", "http://localhost:8000")
	v.SetDefault("DEDUP_SERVICE.EXTRACT_TIMEOUT_SECONDS", 120)
	v.SetDefault("DEDUP_SERVICE.CHECK_TIMEOUT_SECONDS", 30)

	v.SetDefault("DUPLICATE_DETECTION.SIMILARITY_THRESHOLD", 0.5)
	v.SetDefault("DUPLICATE_DETECTION.MATCH_COUNT", 1)
	v.SetDefault("DUPLICATE_DETECTION.PDF_EMBEDDING_CHECK", false)
	v.SetDefault("DUPLICATE_DETECTION.EXACT_FINGERPRINT_CHECK", true)
	v.SetDefault("DUPLICATE_DETECTION.RULES_FILE", "")

	v.SetDefault("EMAIL.ENABLED", false)
	v.SetDefault("EMAIL.FROM_NAME", "Resaletix")

	v.SetDefault("EVENT_SERVICE.PUBLISH_TIMEOUT_SECONDS", 5)
	v.SetDefault("EVENT_SERVICE.CHANNEL", "listings:events")

	v.SetDefault("RATE_LIMIT.UPLOADS_PER_WINDOW", 10)
	v.SetDefault("RATE_LIMIT.WINDOW_SECONDS", 60)

	v.SetDefault("LOG_LEVEL", "info")
}

var envBindings = [][2]string{
	{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
	{"SERVER.PORT", "PORT"},
	{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
	{"SERVER.VERSION", "VERSION"},
	{"SERVER.TRUSTED_PROXIES", "TRUSTED_PROXIES"},
	{"SERVER.MAX_UPLOAD_BYTES", "MAX_UPLOAD_BYTES"},
	{"DATABASE.HOST", "DB_HOST"},
	{"DATABASE.PORT", "DB_PORT"},
	{"DATABASE.USER", "DB_USER"},
	{"DATABASE.PASSWORD", "DB_PASSWORD"},
	{"DATABASE.NAME", "DB_NAME"},
	{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
	{"DATABASE.AUTO_MIGRATE", "DB_AUTO_MIGRATE"},
	{"REDIS.ADDRESS", "REDIS_ADDRESS"},
	{"REDIS.PASSWORD", "REDIS_PASSWORD"},
	{"REDIS.DB", "REDIS_DB"},
	{"REDIS.USE_TLS", "REDIS_USE_TLS"},
	{"EXTERNAL_SERVICES.SUPABASE_URL", "SUPABASE_URL"},
	{"EXTERNAL_SERVICES.SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"},
	{"EXTERNAL_SERVICES.SUPABASE_SERVICE_KEY", "SUPABASE_SERVICE_KEY"},
	{"EXTERNAL_SERVICES.SUPABASE_JWT_SECRET", "SUPABASE_JWT_SECRET"},
	{"STORAGE.BACKEND", "STORAGE_BACKEND"},
	{"STORAGE.BUCKET", "STORAGE_BUCKET"},
	{"STORAGE.LOCAL_PATH", "STORAGE_LOCAL_PATH"},
	{"STORAGE.R2_ACCOUNT_ID", "R2_ACCOUNT_ID"},
	{"STORAGE.R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"},
	{"STORAGE.R2_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"},
	{"STORAGE.R2_ENDPOINT", "R2_ENDPOINT"},
	{"DEDUP_SERVICE.BASE_URL", "DEDUP_SERVICE_URL"},
	{"DEDUP_SERVICE.API_KEY", "DEDUP_SERVICE_API_KEY"},
	{"DEDUP_SERVICE.EXTRACT_TIMEOUT_SECONDS", "DEDUP_EXTRACT_TIMEOUT_SECONDS"},
	{"DEDUP_SERVICE.CHECK_TIMEOUT_SECONDS", "DEDUP_CHECK_TIMEOUT_SECONDS"},
	{"DUPLICATE_DETECTION.SIMILARITY_THRESHOLD", "DUPLICATE_SIMILARITY_THRESHOLD"},
	{"DUPLICATE_DETECTION.MATCH_COUNT", "DUPLICATE_MATCH_COUNT"},
	{"DUPLICATE_DETECTION.PDF_EMBEDDING_CHECK", "DUPLICATE_PDF_EMBEDDING_CHECK"},
	{"DUPLICATE_DETECTION.EXACT_FINGERPRINT_CHECK", "DUPLICATE_EXACT_FINGERPRINT_CHECK"},
	{"DUPLICATE_DETECTION.RULES_FILE", "EXTRACTION_RULES_FILE"},
	{"EMAIL.ENABLED", "EMAIL_ENABLED"},
	{"EMAIL.FROM_ADDRESS", "EMAIL_FROM_ADDRESS"},
	{"EMAIL.FROM_NAME", "EMAIL_FROM_NAME"},
	{"EMAIL.RESEND_API_KEY", "RESEND_API_KEY"},
	{"EMAIL.FRONTEND_URL", "FRONTEND_URL"},
	{"EVENT_SERVICE.PUBLISH_TIMEOUT_SECONDS", "EVENT_SERVICE_PUBLISH_TIMEOUT_SECONDS"},
	{"EVENT_SERVICE.CHANNEL", "EVENT_SERVICE_CHANNEL"},
	{"RATE_LIMIT.UPLOADS_PER_WINDOW", "RATE_LIMIT_UPLOADS_PER_WINDOW"},
	{"RATE_LIMIT.WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS"},
}

// LoadConfig reads defaults and environment variables, then validates the result.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}
	configFile, err := mergeConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	// env lists are comma separated and may carry spaces.
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = splitList(cfg.Server.TrustedProxies)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"config_file", configFile,
		"server_port", cfg.Server.Port,
		"db_host", cfg.Database.Host,
		"storage_backend", cfg.Storage.Backend,
		"dedup_service", cfg.DedupService.BaseURL,
		"dedup_api_key", logger.MaskSensitiveString(cfg.DedupService.APIKey, 2, 2),
		"similarity_threshold", cfg.DuplicateDetection.SimilarityThreshold,
		"pdf_embedding_check", cfg.DuplicateDetection.PDFEmbeddingCheck,
		"email_enabled", cfg.Email.Enabled,
	)
	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	log := logger.GetLogger()

	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Database.Password == "" {
		log.Warn("Database password is not set. Ensure this is intended (e.g., using trusted auth).")
	}

	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	if len(cfg.ExternalServices.SupabaseJWTSecret) < minJWTLength {
		return fmt.Errorf("supabase JWT secret must be at least %d characters long", minJWTLength)
	}

	if err := validateStorage(&cfg.Storage, &cfg.ExternalServices); err != nil {
		return err
	}
	if err := validateDedup(&cfg.DedupService, &cfg.DuplicateDetection); err != nil {
		return err
	}

	if cfg.Email.Enabled && (cfg.Email.ResendAPIKey == "" || cfg.Email.FromAddress == "") {
		log.Warn("Email enabled without Resend API key or from address, disabling seller notifications")
		cfg.Email.Enabled = false
	}

	if cfg.EventService.PublishTimeoutSeconds <= 0 {
		return fmt.Errorf("event service publish timeout must be positive")
	}
	if cfg.EventService.Channel == "" {
		return fmt.Errorf("event service channel is required")
	}

	if cfg.RateLimit.UploadsPerWindow <= 0 {
		return fmt.Errorf("rate limit uploads per window must be positive")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window seconds must be positive")
	}
	return nil
}

func validateStorage(s *StorageConfig, ext *ExternalServices) error {
	if s.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	switch s.Backend {
	case StorageSupabase:
		if ext.SupabaseURL == "" {
			return fmt.Errorf("supabase URL is required for the supabase storage backend")
		}
		if ext.SupabaseServiceKey == "" {
			return fmt.Errorf("supabase service key is required for the supabase storage backend")
		}
	case StorageR2:
		if s.R2AccessKeyID == "" || s.R2SecretAccessKey == "" {
			return fmt.Errorf("r2 access key id and secret are required for the r2 storage backend")
		}
		if s.R2AccountID == "" && s.R2Endpoint == "" {
			return fmt.Errorf("r2 account id or endpoint is required for the r2 storage backend")
		}
	case StorageLocal:
		if s.LocalPath == "" {
			return fmt.Errorf("local storage path is required for the local storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
	return nil
}

func validateDedup(d *DedupServiceConfig, dd *DuplicateDetectionConfig) error {
	if _, err := url.ParseRequestURI(d.BaseURL); err != nil {
		return fmt.Errorf("invalid dedup service URL: %w", err)
	}
	if d.ExtractTimeoutSeconds <= 0 || d.CheckTimeoutSeconds <= 0 {
		return fmt.Errorf("dedup service timeouts must be positive")
	}
	if dd.SimilarityThreshold <= 0 || dd.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", dd.SimilarityThreshold)
	}
	if dd.MatchCount <= 0 {
		return fmt.Errorf("duplicate match count must be positive")
	}
	return nil
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
