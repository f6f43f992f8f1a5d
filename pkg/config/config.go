package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingAPIKey      = errors.New("config: GEMINI_API_KEY is not set")
	ErrInvalidStorage     = errors.New("config: unsupported STORAGE_BACKEND")
	ErrMissingBucket      = errors.New("config: S3_BUCKET is required for the s3 storage backend")
	ErrInvalidReportShape = errors.New("config: PIPELINE_REPORT_FORMAT must be json or latex")
	ErrLockTTLTooShort    = errors.New("config: PIPELINE_LOCK_TTL_SECONDS must cover PIPELINE_JOB_TIMEOUT_MINUTES")
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	GenAI      GenAIConfig
	Pipeline   PipelineConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// GenAIConfig configures the hosted model used for both generation stages.
type GenAIConfig struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
	TimeoutSeconds    int
}

type PipelineConfig struct {
	MaxRetries        int
	RetryDelaySeconds int
	ReportFormat      string // json, latex
	ContextFormat     string // flat, pretty
	Persona           string
	PromptsDir        string
	LockTTLSeconds    int
	JobTimeoutMinutes int
	Concurrency       int
	MetricsAddr       string // worker /metrics listener; empty disables it
}

type StorageConfig struct {
	Backend  string // fs, s3
	Dir      string
	Bucket   string
	Region   string
	Endpoint string
	Seal     bool

	// Static S3 credentials; empty falls back to the AWS default chain.
	AccessKeyID     string
	SecretAccessKey string
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

// Validate fails fast when the generation backend cannot authenticate.
func (g *GenAIConfig) Validate() error {
	if strings.TrimSpace(g.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (g *GenAIConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (p *PipelineConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySeconds) * time.Second
}

func (p *PipelineConfig) LockTTL() time.Duration {
	return time.Duration(p.LockTTLSeconds) * time.Second
}

func (p *PipelineConfig) JobTimeout() time.Duration {
	return time.Duration(p.JobTimeoutMinutes) * time.Minute
}

func (p *PipelineConfig) Validate() error {
	if p.ReportFormat != "json" && p.ReportFormat != "latex" {
		return ErrInvalidReportShape
	}
	// The organization lock must outlive the longest run it guards.
	if p.LockTTL() < p.JobTimeout() {
		return fmt.Errorf("%w: lock ttl %s, job timeout %s", ErrLockTTLTooShort, p.LockTTL(), p.JobTimeout())
	}
	return nil
}

func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "fs":
		return nil
	case "s3":
		if s.Bucket == "" {
			return ErrMissingBucket
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorage, s.Backend)
	}
}

func Load() (*Config, error) {
	// Populate the process environment from .env so libraries that read
	// os.Getenv directly (AWS SDK) see the same values.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "goassess")
	v.SetDefault("DATABASE_PASSWORD", "goassess_secret")
	v.SetDefault("DATABASE_NAME", "goassess")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GEMINI_REQUESTS_PER_MINUTE", 30)
	v.SetDefault("GEMINI_TIMEOUT_SECONDS", 120)
	v.SetDefault("PIPELINE_MAX_RETRIES", 4)
	v.SetDefault("PIPELINE_RETRY_DELAY_SECONDS", 2)
	v.SetDefault("PIPELINE_REPORT_FORMAT", "json")
	v.SetDefault("PIPELINE_CONTEXT_FORMAT", "flat")
	v.SetDefault("PIPELINE_PERSONA", "")
	v.SetDefault("PROMPTS_DIR", "")
	v.SetDefault("PIPELINE_LOCK_TTL_SECONDS", 900)
	v.SetDefault("PIPELINE_JOB_TIMEOUT_MINUTES", 15)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_METRICS_ADDR", ":9091")
	v.SetDefault("STORAGE_BACKEND", "fs")
	v.SetDefault("STORAGE_DIR", "./data/documents")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("STORAGE_SEAL", false)
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		GenAI: GenAIConfig{
			APIKey:            v.GetString("GEMINI_API_KEY"),
			Model:             v.GetString("GEMINI_MODEL"),
			RequestsPerMinute: v.GetInt("GEMINI_REQUESTS_PER_MINUTE"),
			TimeoutSeconds:    v.GetInt("GEMINI_TIMEOUT_SECONDS"),
		},
		Pipeline: PipelineConfig{
			MaxRetries:        v.GetInt("PIPELINE_MAX_RETRIES"),
			RetryDelaySeconds: v.GetInt("PIPELINE_RETRY_DELAY_SECONDS"),
			ReportFormat:      strings.ToLower(v.GetString("PIPELINE_REPORT_FORMAT")),
			ContextFormat:     strings.ToLower(v.GetString("PIPELINE_CONTEXT_FORMAT")),
			Persona:           v.GetString("PIPELINE_PERSONA"),
			PromptsDir:        v.GetString("PROMPTS_DIR"),
			LockTTLSeconds:    v.GetInt("PIPELINE_LOCK_TTL_SECONDS"),
			JobTimeoutMinutes: v.GetInt("PIPELINE_JOB_TIMEOUT_MINUTES"),
			Concurrency:       v.GetInt("WORKER_CONCURRENCY"),
			MetricsAddr:       v.GetString("WORKER_METRICS_ADDR"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Dir:      v.GetString("STORAGE_DIR"),
			Bucket:   v.GetString("S3_BUCKET"),
			Region:   v.GetString("S3_REGION"),
			Endpoint: v.GetString("S3_ENDPOINT"),
			Seal:     v.GetBool("STORAGE_SEAL"),

			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
		},
		Log: LogConfig{
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
	}

	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
