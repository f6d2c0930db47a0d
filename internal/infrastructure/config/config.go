// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Web        WebConfig        `mapstructure:"web"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Media      MediaConfig      `mapstructure:"media"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Timers     TimerConfig      `mapstructure:"timers"`
	Storage    StorageConfig    `mapstructure:"storage"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains API server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	EnableCompression bool        `mapstructure:"enable_compression"`
}

// WebConfig contains the browser-facing frontend server configuration.
// The frontend proxies every data request to the API server.
type WebConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	SecureCookies  bool          `mapstructure:"secure_cookies"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Database           string        `mapstructure:"database"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	ReplicaDSNs        []string      `mapstructure:"replica_dsns"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel           string        `mapstructure:"log_level"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	Database        int           `mapstructure:"database"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PoolSize        int           `mapstructure:"pool_size"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret               string        `mapstructure:"jwt_secret"`
	SessionTTL              time.Duration `mapstructure:"session_ttl"`
	MFAIssuer               string        `mapstructure:"mfa_issuer"`
	VerificationTTL         time.Duration `mapstructure:"verification_ttl"`
	VerificationBaseURL     string        `mapstructure:"verification_base_url"`
	RequireVerifiedEmail    bool          `mapstructure:"require_verified_email"`
	AllowAnonymousExtraction bool         `mapstructure:"allow_anonymous_extraction"`
}

// MediaConfig contains video download configuration
type MediaConfig struct {
	DownloaderPath  string        `mapstructure:"downloader_path"`
	WorkDir         string        `mapstructure:"work_dir"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	KeepLocalFiles  bool          `mapstructure:"keep_local_files"`
}

// TranscribeConfig contains speech-to-text configuration. Mode "local"
// shells out to the whisper CLI, mode "api" calls an OpenAI-compatible
// transcription endpoint.
type TranscribeConfig struct {
	Mode        string        `mapstructure:"mode"`
	BinaryPath  string        `mapstructure:"binary_path"`
	Model       string        `mapstructure:"model"`
	APIBaseURL  string        `mapstructure:"api_base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	EnableCache bool          `mapstructure:"enable_cache"`
}

// ExtractConfig contains recipe extraction configuration
type ExtractConfig struct {
	Provider        string        `mapstructure:"provider"`
	AnthropicKey    string        `mapstructure:"anthropic_key"`
	AnthropicModel  string        `mapstructure:"anthropic_model"`
	OllamaHost      string        `mapstructure:"ollama_host"`
	OllamaModel     string        `mapstructure:"ollama_model"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	PromptOverrides string        `mapstructure:"prompt_overrides"`
}

// ChatConfig contains step chat configuration
type ChatConfig struct {
	MaxMessageLength int           `mapstructure:"max_message_length"`
	HistoryTTL       time.Duration `mapstructure:"history_ttl"`
	HistoryTurns     int           `mapstructure:"history_turns"`
	StreamTimeout    time.Duration `mapstructure:"stream_timeout"`
}

// TimerConfig contains countdown timer configuration
type TimerConfig struct {
	MaxPerUser   int           `mapstructure:"max_per_user"`
	MaxDuration  time.Duration `mapstructure:"max_duration"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// StorageConfig contains media archive configuration
type StorageConfig struct {
	EnableArchive   bool   `mapstructure:"enable_archive"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	S3Region        string `mapstructure:"s3_region"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enable         bool          `mapstructure:"enable"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
	BurstSize      int           `mapstructure:"burst_size"`
	ProcessPerHour int           `mapstructure:"process_per_hour"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	UseRedis       bool          `mapstructure:"use_redis"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	MetricsPort     int     `mapstructure:"metrics_port"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	HealthCheckPath string  `mapstructure:"health_check_path"`
	ReadinessPath   string  `mapstructure:"readiness_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/touille")
	}

	// Enable environment variable override
	v.SetEnvPrefix("TOUILLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Touille")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	// Streaming responses hold the connection open well past a normal
	// request, the write timeout has to cover a full chat reply.
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.enable_compression", true)

	// Web defaults
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 3000)
	v.SetDefault("web.api_base_url", "http://localhost:8000")
	v.SetDefault("web.session_ttl", "168h") // 7 days
	v.SetDefault("web.request_timeout", "10m")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "touille")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.slow_query_threshold", "100ms")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Auth defaults
	v.SetDefault("auth.session_ttl", "168h") // 7 days
	v.SetDefault("auth.mfa_issuer", "Touille")
	v.SetDefault("auth.verification_ttl", "24h")
	v.SetDefault("auth.allow_anonymous_extraction", true)

	// Media defaults
	v.SetDefault("media.downloader_path", "yt-dlp")
	v.SetDefault("media.work_dir", "/tmp/touille")
	v.SetDefault("media.download_timeout", "3m")
	v.SetDefault("media.probe_timeout", "30s")
	v.SetDefault("media.keep_local_files", false)

	// Transcription defaults
	v.SetDefault("transcribe.mode", "local")
	v.SetDefault("transcribe.binary_path", "whisper")
	v.SetDefault("transcribe.model", "base")
	v.SetDefault("transcribe.timeout", "10m")
	v.SetDefault("transcribe.cache_ttl", "24h")
	v.SetDefault("transcribe.enable_cache", true)

	// Extraction defaults
	v.SetDefault("extract.provider", "anthropic")
	v.SetDefault("extract.anthropic_model", "claude-sonnet-4-20250514")
	v.SetDefault("extract.ollama_host", "http://ollama:11434")
	v.SetDefault("extract.ollama_model", "llama3.2")
	v.SetDefault("extract.max_tokens", 4096)
	v.SetDefault("extract.timeout", "2m")

	// Chat defaults
	v.SetDefault("chat.max_message_length", 2000)
	v.SetDefault("chat.history_ttl", "24h")
	v.SetDefault("chat.history_turns", 10)
	v.SetDefault("chat.stream_timeout", "2m")

	// Timer defaults
	v.SetDefault("timers.max_per_user", 16)
	v.SetDefault("timers.max_duration", "12h")
	v.SetDefault("timers.tick_interval", "1s")

	// Storage defaults
	v.SetDefault("storage.enable_archive", false)
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.key_prefix", "videos/")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests_per_min", 60)
	v.SetDefault("rate_limit.burst_size", 10)
	v.SetDefault("rate_limit.process_per_hour", 20)
	v.SetDefault("rate_limit.cleanup_interval", "1m")

	// Monitoring defaults
	v.SetDefault("monitoring.metrics_port", 9090)
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/ready")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}

	if c.Auth.JWTSecret == "" && c.App.Environment == "production" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Extract.Provider {
	case "anthropic":
		if c.Extract.AnthropicKey == "" && c.IsProduction() {
			return fmt.Errorf("extract.anthropic_key is required for the anthropic provider")
		}
	case "ollama":
		if c.Extract.OllamaHost == "" {
			return fmt.Errorf("extract.ollama_host is required for the ollama provider")
		}
	default:
		return fmt.Errorf("extract.provider must be one of: anthropic, ollama")
	}

	if mode := c.Transcribe.Mode; mode != "local" && mode != "api" {
		return fmt.Errorf("transcribe.mode must be one of: local, api")
	}
	if c.Transcribe.Mode == "api" && c.Transcribe.APIBaseURL == "" {
		return fmt.Errorf("transcribe.api_base_url is required for api transcription")
	}

	if c.Storage.EnableArchive && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required when the archive is enabled")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
