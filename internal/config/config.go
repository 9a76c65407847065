package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "MEDBOT"

type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Log         LogConfig        `mapstructure:"log"`
	Chat        ChatConfig       `mapstructure:"chat"`
	Matcher     MatcherConfig    `mapstructure:"matcher"`
	Catalog     CatalogConfig    `mapstructure:"catalog"`
	Store       StoreConfig      `mapstructure:"store"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Uploads     UploadsConfig    `mapstructure:"uploads"`
	Alerts      AlertsConfig     `mapstructure:"alerts"`
	SMTP        SMTPConfig       `mapstructure:"smtp"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	CORS        CORSConfig       `mapstructure:"cors"`
	Worker      WorkerConfig     `mapstructure:"worker"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"min=1"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type ChatConfig struct {
	MaxWords   int           `mapstructure:"max_words" validate:"min=1"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type MatcherConfig struct {
	MinScore float64 `mapstructure:"min_score" validate:"min=0,max=1"`
}

type CatalogConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	ClipSuffix string `mapstructure:"clip_suffix"`
}

type StoreConfig struct {
	Backend           string `mapstructure:"backend" validate:"oneof=jsonfile redis postgres"`
	RecordsPath       string `mapstructure:"records_path"`
	PrescriptionsPath string `mapstructure:"prescriptions_path" validate:"required"`
	MaxRecords        int    `mapstructure:"max_records" validate:"min=1"`
	RedisKey          string `mapstructure:"redis_key"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type GenerationConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=gemini relay"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type AnalysisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Python    string        `mapstructure:"python"`
	ECGScript string        `mapstructure:"ecg_script"`
	OCRScript string        `mapstructure:"ocr_script"`
	WorkDir   string        `mapstructure:"work_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type UploadsConfig struct {
	Dir      string `mapstructure:"dir" validate:"required"`
	MaxBytes int64  `mapstructure:"max_bytes" validate:"min=1"`
}

type AlertsConfig struct {
	Recipients []string `mapstructure:"recipients" validate:"dive,email"`
	MinLevel   string   `mapstructure:"min_level" validate:"oneof=low medium high critical"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WorkerConfig struct {
	Channel       string        `mapstructure:"channel"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"min=1"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	HealthPort    int           `mapstructure:"health_port"`
}

// Secrets are read from the plain environment, outside the MEDBOT_ prefix.
type Secrets struct {
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 3*time.Minute)
	v.SetDefault("server.request_timeout", 150*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("chat.max_words", 150)
	v.SetDefault("chat.session_ttl", 10*time.Minute)
	v.SetDefault("matcher.min_score", 0.05)
	v.SetDefault("catalog.path", "config/catalog.json")
	v.SetDefault("catalog.clip_suffix", ".fbx")

	v.SetDefault("store.backend", "jsonfile")
	v.SetDefault("store.records_path", "data/ecg_data.json")
	v.SetDefault("store.prescriptions_path", "data/prescription_data.json")
	v.SetDefault("store.max_records", 50)
	v.SetDefault("store.redis_key", "medbot:health_records")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.model", "gemini-2.0-flash")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.timeout", 30*time.Second)
	v.SetDefault("generation.breaker_failures", 5)
	v.SetDefault("generation.breaker_timeout", 30*time.Second)

	v.SetDefault("analysis.enabled", true)
	v.SetDefault("analysis.python", "python3")
	v.SetDefault("analysis.ecg_script", "scripts/analyze_ecg.py")
	v.SetDefault("analysis.ocr_script", "scripts/pil_ocr_pipeline.py")
	v.SetDefault("analysis.work_dir", "")
	v.SetDefault("analysis.timeout", 2*time.Minute)

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_bytes", 10<<20)

	v.SetDefault("alerts.recipients", []string{})
	v.SetDefault("alerts.min_level", "critical")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "medbot@localhost")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("worker.channel", "analysis.completed")
	v.SetDefault("worker.retry_attempts", 3)
	v.SetDefault("worker.retry_delay", 2*time.Second)
	v.SetDefault("worker.health_port", 8081)
}

// LoadConfig reads config.yml from the working directory, ./config or
// /app/config. A missing file is not an error; defaults and MEDBOT_*
// environment variables still apply.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load reads the config file at path, or searches the default locations
// when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s Secrets) {
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = s.GeminiAPIKey
	}
	if c.SMTP.Password == "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if c.Database.URL == "" {
		c.Database.URL = s.DatabaseURL
	}
}

// Validate checks field constraints and the settings each backend needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Store.Backend {
	case "jsonfile":
		if c.Store.RecordsPath == "" {
			return errors.New("invalid config: store.records_path is required for the jsonfile backend")
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("invalid config: redis.url is required for the redis backend")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("invalid config: database.url or DATABASE_URL is required for the postgres backend")
		}
	}

	switch c.Generation.Provider {
	case "gemini":
		if c.Generation.APIKey == "" {
			return errors.New("invalid config: GEMINI_API_KEY is required for the gemini provider")
		}
	case "relay":
		if c.Generation.BaseURL == "" {
			return errors.New("invalid config: generation.base_url is required for the relay provider")
		}
	}
	return nil
}

// IsDevelopment reports whether the service runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Environment != "production"
}
