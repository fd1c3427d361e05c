package ai

import (
	"context"
	"sync"
	"time"

	"hermes/internal/domain/action"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// FactoryConfig carries the runtime knobs shared by all vendor clients.
type FactoryConfig struct {
	RequestTimeout time.Duration
	Burst          int
	ReqPerMinute   map[ProviderName]float64
}

// Factory builds vendor clients on demand. Credentials are resolved from
// the credential source at construction time and handed to the client in
// memory only; the factory never logs or stores them.
type Factory struct {
	registry *Registry
	creds    action.CredentialSource
	limiters *LimiterFactory
	cfg      FactoryConfig
	log      *logger.Logger

	mu      sync.Mutex
	clients map[ProviderName]Provider
}

// NewFactory creates a client factory on top of a constructor registry.
func NewFactory(
	registry *Registry,
	creds action.CredentialSource,
	limiters *LimiterFactory,
	cfg FactoryConfig,
	log *logger.Logger,
) *Factory {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	return &Factory{
		registry: registry,
		creds:    creds,
		limiters: limiters,
		cfg:      cfg,
		log:      log,
		clients:  make(map[ProviderName]Provider),
	}
}

// ClientFor returns the client for a configured provider, building it on
// first use. Clients are cached per provider code so all models of one
// vendor share a connection pool and rate limit bucket.
func (f *Factory) ClientFor(ctx context.Context, provider action.Provider) (Provider, error) {
	code := ProviderName(provider.Code)

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[code]; ok {
		return client, nil
	}

	ctor, err := f.registry.Resolve(code)
	if err != nil {
		return nil, err
	}

	secret, err := f.creds.GetSecret(ctx, provider.Code)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve credentials for provider %s", provider.Code)
	}
	if secret == "" {
		return nil, errors.Newf(errors.ErrProviderAuth, "provider %s has no credentials configured", provider.Code)
	}

	limiter := f.limiters.For(code, RateLimitConfig{
		ReqPerMinute: f.cfg.ReqPerMinute[code],
		Burst:        f.cfg.Burst,
	})

	client, err := ctor(ClientOptions{
		APIKey:  secret,
		Timeout: f.cfg.RequestTimeout,
		Limiter: limiter,
		Log:     f.log,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s client", provider.Code)
	}

	f.log.Infow("AI provider client created",
		"provider", provider.Code,
		"rate_limit_rpm", limiter.Limit(),
	)

	f.clients[code] = client
	return client, nil
}

// EnvCredentials resolves provider secrets from pre-loaded environment
// configuration. Used when no external secret store is wired.
type EnvCredentials struct {
	secrets map[string]string
}

// NewEnvCredentials creates a credential source from a code-to-key map.
func NewEnvCredentials(secrets map[string]string) *EnvCredentials {
	copied := make(map[string]string, len(secrets))
	for code, key := range secrets {
		copied[code] = key
	}
	return &EnvCredentials{secrets: copied}
}

// GetSecret returns the API key for a provider code.
func (c *EnvCredentials) GetSecret(_ context.Context, providerCode string) (string, error) {
	key, ok := c.secrets[providerCode]
	if !ok || key == "" {
		return "", errors.Newf(errors.ErrProviderAuth, "no API key configured for provider %s", providerCode)
	}
	return key, nil
}
