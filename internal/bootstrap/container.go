package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"hermes/internal/adapters/ai"
	"hermes/internal/adapters/config"
	"hermes/internal/adapters/kafka"
	"hermes/internal/assembler"
	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/internal/events"
	"hermes/internal/gateway"
	"hermes/internal/outputs"
	"hermes/internal/prompt"
	"hermes/internal/repository/memory"
	pgrepo "hermes/internal/repository/postgres"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Container holds the gateway's engine-independent dependencies.
// Components are organized in initialization order
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure
	DB       *sqlx.DB
	Redis    *redis.Client
	Producer *kafka.Producer

	// Gateway building blocks
	Source    action.Source
	Registry  *ai.Registry
	Limiters  *ai.LimiterFactory
	Factory   *ai.Factory
	Publisher events.Publisher
}

// HostAdapters are the integration points the embedding workflow engine
// must supply: its record graph, attachment store, conversation log,
// field writer, report generator and notification channel.
type HostAdapters struct {
	Resolver    record.Resolver
	Attachments record.AttachmentStore
	Chatter     record.ConversationLog
	Writer      record.Writer
	Reports     action.ReportGenerator
	Notifier    action.NotificationSink
}

// Build assembles everything that does not depend on the host engine.
func Build(cfg *config.Config, tracker errors.Tracker, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config:       cfg,
		Log:          log,
		ErrorTracker: tracker,
	}

	if err := c.initConfigSource(); err != nil {
		return nil, err
	}
	c.initRedis()
	c.initEvents()

	c.Registry = ai.NewBuiltinRegistry()

	// A typed nil must not reach the limiter factory or it would pick the
	// Redis path with a dead client.
	var limiterClient interface{}
	if c.Redis != nil {
		limiterClient = c.Redis
	}
	c.Limiters = ai.NewLimiterFactory(limiterClient)

	creds := ai.NewEnvCredentials(map[string]string{
		"openai":     cfg.AI.OpenAIKey,
		"anthropic":  cfg.AI.AnthropicKey,
		"google":     cfg.AI.GeminiKey,
		"openrouter": cfg.AI.OpenRouterKey,
	})

	c.Factory = ai.NewFactory(c.Registry, creds, c.Limiters, ai.FactoryConfig{
		RequestTimeout: cfg.AI.RequestTimeout,
		Burst:          cfg.AI.RateLimitBurst,
		ReqPerMinute: rateLimits(cfg, c.Registry.Codes()),
	}, log)

	return c, nil
}

// AttachHost completes the wiring with the embedding engine's adapters
// and returns a started-ready gateway and dispatch pool.
func (c *Container) AttachHost(host HostAdapters) (*gateway.Gateway, *gateway.Pool) {
	renderer := prompt.New(host.Resolver, c.Config.Template.MaxRelationHops)
	asm := assembler.New(host.Reports, host.Attachments, host.Chatter,
		c.Config.Chatter.MaxMessages, c.Config.Chatter.MaxChars, c.Log)
	router := outputs.New(host.Chatter, host.Writer, host.Notifier, c.Log)

	gw := gateway.New(c.Source, renderer, asm, c.Factory, router, c.Publisher,
		gateway.Config{
			RetryCount:    c.Config.Gateway.RetryCount,
			BackoffMin:    c.Config.Gateway.BackoffMin,
			BackoffMax:    c.Config.Gateway.BackoffMax,
			BackoffFactor: c.Config.Gateway.BackoffFactor,
		}, c.Log)

	pool := gateway.NewPool(gw, c.Config.Gateway.PoolSize, c.Config.Gateway.QueueDepth, c.Log)
	return gw, pool
}

// ValidateConfig takes one snapshot so broken configuration fails at
// startup instead of on the first trigger.
func (c *Container) ValidateConfig(ctx context.Context) error {
	_, err := c.Source.Snapshot(ctx)
	return err
}

// Shutdown releases infrastructure connections.
func (c *Container) Shutdown() {
	if c.Producer != nil {
		if err := c.Producer.Close(); err != nil {
			c.Log.Warnf("Failed to close Kafka producer: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Warnf("Failed to close Redis client: %v", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Log.Warnf("Failed to close PostgreSQL connection: %v", err)
		}
	}
}

// rateLimits builds the per-provider request rate map for every registered
// vendor code.
func rateLimits(cfg *config.Config, codes []ai.ProviderName) map[ai.ProviderName]float64 {
	limits := make(map[ai.ProviderName]float64, len(codes))
	for _, code := range codes {
		limits[code] = cfg.AI.GetReqPerMinute(string(code))
	}
	return limits
}

// initConfigSource selects the Postgres-backed configuration source or
// falls back to the built-in catalog in memory.
func (c *Container) initConfigSource() error {
	if c.Config.Postgres.Enabled() {
		db, err := sqlx.Connect("postgres", c.Config.Postgres.DSN())
		if err != nil {
			return errors.Wrap(err, "connect to postgres")
		}
		db.SetMaxOpenConns(c.Config.Postgres.MaxConns)

		c.DB = db
		c.Source = pgrepo.NewConfigSource(db)
		c.Log.Info("Configuration source: PostgreSQL")
		return nil
	}

	source, err := memory.NewSource(ai.CatalogProviders(), ai.CatalogModels(), nil)
	if err != nil {
		return errors.Wrap(err, "build catalog configuration")
	}

	c.Source = source
	c.Log.Info("Configuration source: built-in catalog (in-memory)")
	return nil
}

// initRedis connects to Redis for distributed rate limiting; a missing or
// unreachable Redis falls back to local limiters.
func (c *Container) initRedis() {
	if !c.Config.Redis.Enabled() {
		c.Log.Info("Redis disabled, using local rate limiters")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		c.Log.Warnf("Redis unreachable, falling back to local rate limiters: %v", err)
		_ = client.Close()
		return
	}

	c.Redis = client
	c.Log.Info("Redis connected, distributed rate limiting enabled")
}

// initEvents wires the Kafka lifecycle event publisher, or a no-op one.
func (c *Container) initEvents() {
	if !c.Config.Kafka.Enabled() {
		c.Publisher = events.NewNoopPublisher()
		c.Log.Info("Kafka disabled, lifecycle events dropped")
		return
	}

	c.Producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: c.Config.Kafka.Brokers})
	c.Publisher = events.NewKafkaPublisher(c.Producer, c.Log)
	c.Log.Infow("Kafka producer initialized", "brokers", c.Config.Kafka.Brokers)
}
