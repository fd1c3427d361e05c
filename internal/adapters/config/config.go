package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	AI            AIConfig
	Gateway       GatewayConfig
	Template      TemplateConfig
	Chatter       ChatterConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"hermes"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

type AIConfig struct {
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey  string `envconfig:"ANTHROPIC_API_KEY"`
	GeminiKey     string `envconfig:"GEMINI_API_KEY"`
	OpenRouterKey string `envconfig:"OPENROUTER_API_KEY"`

	// Per-call timeout applied by every provider client
	RequestTimeout time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"60s"`

	// Rate limits, requests per minute; 0 disables limiting for a provider
	OpenAIReqPerMinute     float64 `envconfig:"AI_OPENAI_REQ_PER_MINUTE" default:"500"`
	AnthropicReqPerMinute  float64 `envconfig:"AI_ANTHROPIC_REQ_PER_MINUTE" default:"50"`
	GeminiReqPerMinute     float64 `envconfig:"AI_GEMINI_REQ_PER_MINUTE" default:"60"`
	OpenRouterReqPerMinute float64 `envconfig:"AI_OPENROUTER_REQ_PER_MINUTE" default:"200"`
	RateLimitBurst         int     `envconfig:"AI_RATE_LIMIT_BURST" default:"10"`
}

// GetReqPerMinute returns the configured request rate for a provider code.
func (c AIConfig) GetReqPerMinute(code string) float64 {
	switch code {
	case "openai":
		return c.OpenAIReqPerMinute
	case "anthropic":
		return c.AnthropicReqPerMinute
	case "google":
		return c.GeminiReqPerMinute
	case "openrouter":
		return c.OpenRouterReqPerMinute
	default:
		return 0
	}
}

// GatewayConfig controls dispatch concurrency and the retry policy.
type GatewayConfig struct {
	PoolSize       int           `envconfig:"GATEWAY_POOL_SIZE" default:"8"`
	QueueDepth     int           `envconfig:"GATEWAY_QUEUE_DEPTH" default:"64"`
	RetryCount     int           `envconfig:"GATEWAY_RETRY_COUNT" default:"3"`
	BackoffMin     time.Duration `envconfig:"GATEWAY_BACKOFF_MIN" default:"500ms"`
	BackoffMax     time.Duration `envconfig:"GATEWAY_BACKOFF_MAX" default:"10s"`
	BackoffFactor  float64       `envconfig:"GATEWAY_BACKOFF_FACTOR" default:"2"`
}

type TemplateConfig struct {
	// Maximum relation hops allowed during template evaluation
	MaxRelationHops int `envconfig:"TEMPLATE_MAX_RELATION_HOPS" default:"8"`
}

type ChatterConfig struct {
	MaxMessages int `envconfig:"CHATTER_MAX_MESSAGES" default:"100"`
	MaxChars    int `envconfig:"CHATTER_MAX_CHARS" default:"16384"`
}

// PostgresConfig is optional; when Host is empty the gateway runs on the
// in-memory configuration source.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig is optional; when Host is empty rate limiting stays local.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig is optional; when Brokers is empty lifecycle events are dropped.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"hermes"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
