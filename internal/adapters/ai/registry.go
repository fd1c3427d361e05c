package ai

import (
	"sort"
	"sync"
	"time"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Constructor builds a vendor client from injected options. New vendors
// plug in by registering a constructor under their code; nothing in the
// factory needs to change.
type Constructor func(opts ClientOptions) (Provider, error)

// ClientOptions carries everything a vendor client needs at build time.
// APIKey is injected by the factory from the credential source and must
// never be logged or persisted by the client.
type ClientOptions struct {
	APIKey  string
	BaseURL string // optional override (openai-compatible vendors)
	Timeout time.Duration
	Limiter RateLimiter
	Log     *logger.Logger
}

// Registry maps provider codes to client constructors.
type Registry struct {
	constructors map[ProviderName]Constructor
	mu           sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[ProviderName]Constructor),
	}
}

// NewBuiltinRegistry creates a registry with all built-in vendor clients.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(ProviderNameOpenAI, func(opts ClientOptions) (Provider, error) {
		return NewOpenAIClient(ProviderNameOpenAI, opts)
	})
	r.MustRegister(ProviderNameOpenRouter, func(opts ClientOptions) (Provider, error) {
		if opts.BaseURL == "" {
			opts.BaseURL = openRouterBaseURL
		}
		return NewOpenAIClient(ProviderNameOpenRouter, opts)
	})
	r.MustRegister(ProviderNameAnthropic, func(opts ClientOptions) (Provider, error) {
		return NewAnthropicClient(opts)
	})
	r.MustRegister(ProviderNameGoogle, func(opts ClientOptions) (Provider, error) {
		return NewGeminiClient(opts)
	})
	return r
}

// Register adds a constructor for a provider code.
func (r *Registry) Register(code ProviderName, ctor Constructor) error {
	if ctor == nil {
		return errors.Newf(errors.ErrInvalidConfig, "nil constructor for provider %s", code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[code]; exists {
		return errors.Newf(errors.ErrInvalidConfig, "provider %s already registered", code)
	}

	r.constructors[code] = ctor
	return nil
}

// MustRegister adds a constructor and panics on conflict. Intended for
// process startup wiring only.
func (r *Registry) MustRegister(code ProviderName, ctor Constructor) {
	if err := r.Register(code, ctor); err != nil {
		panic(err)
	}
}

// Resolve returns the constructor for a provider code. An unknown code
// is a configuration error, not a crash.
func (r *Registry) Resolve(code ProviderName) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.constructors[code]
	if !ok {
		return nil, errors.Newf(errors.ErrUnsupportedProvider, "no client registered for provider %q", code)
	}

	return ctor, nil
}

// Codes returns all registered provider codes, sorted.
func (r *Registry) Codes() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]ProviderName, 0, len(r.constructors))
	for code := range r.constructors {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	return codes
}
