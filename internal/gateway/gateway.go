package gateway

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	"hermes/internal/adapters/ai"
	"hermes/internal/assembler"
	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/internal/events"
	"hermes/internal/metrics"
	"hermes/internal/outputs"
	"hermes/internal/prompt"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Config controls the retry policy for provider calls.
type Config struct {
	RetryCount    int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	BackoffFactor float64
}

func (c Config) withDefaults() Config {
	if c.RetryCount <= 0 {
		c.RetryCount = 3
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Second
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 2
	}
	return c
}

// ClientResolver hands out the vendor client for a configured provider.
// Satisfied by ai.Factory.
type ClientResolver interface {
	ClientFor(ctx context.Context, provider action.Provider) (ai.Provider, error)
}

// Gateway orchestrates one invocation through its stages: render the
// prompt, assemble attachments and chatter, dispatch to the provider and
// route the response. A configuration snapshot is captured at the start
// of each invocation so concurrent edits never affect it mid-flight.
type Gateway struct {
	source    action.Source
	renderer  *prompt.Renderer
	assembler *assembler.Assembler
	factory   ClientResolver
	router    *outputs.Router
	publisher events.Publisher
	cfg       Config
	log       *logger.Logger
}

// New creates a gateway.
func New(
	source action.Source,
	renderer *prompt.Renderer,
	asm *assembler.Assembler,
	factory ClientResolver,
	router *outputs.Router,
	publisher events.Publisher,
	cfg Config,
	log *logger.Logger,
) *Gateway {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &Gateway{
		source:    source,
		renderer:  renderer,
		assembler: asm,
		factory:   factory,
		router:    router,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// Execute runs one invocation end to end. The returned invocation always
// carries the final state; on failure Err is set and the same error is
// returned.
func (g *Gateway) Execute(ctx context.Context, actionID string, ref record.Ref, vars map[string]interface{}) (*Invocation, error) {
	inv := newInvocation(actionID, ref, vars)
	log := g.log.With("invocation_id", inv.ID, "action_id", actionID, "record", ref.Model+"/"+ref.ID)

	snap, err := g.source.Snapshot(ctx)
	if err != nil {
		return inv, g.fail(ctx, inv, errors.Wrap(err, "failed to load configuration snapshot"))
	}

	cfg, model, provider, err := snap.Resolve(actionID)
	if err != nil {
		return inv, g.fail(ctx, inv, err)
	}
	inv.Provider = provider.Code
	inv.Model = model.ModelName

	inv.State = StateRendering
	rendered, err := g.renderer.Render(ctx, cfg.PromptTemplate, g.bindVars(ref, vars))
	metrics.RecordTemplateRender(err)
	if err != nil {
		return inv, g.failNotify(ctx, inv, cfg, err)
	}

	inv.State = StateAssembling
	payload, err := g.assembler.Assemble(ctx, cfg, model, ref)
	if err != nil {
		return inv, g.failNotify(ctx, inv, cfg, err)
	}

	inv.State = StateDispatching
	client, err := g.factory.ClientFor(ctx, provider)
	if err != nil {
		return inv, g.failNotify(ctx, inv, cfg, err)
	}

	resp, err := g.dispatch(ctx, inv, client, ai.GenerateRequest{
		Model:     model.ModelName,
		Prompt:    rendered,
		Chatter:   payload.Chatter,
		Files:     payload.Files,
		MaxTokens: model.MaxTokens,
	})
	if err != nil {
		return inv, g.failNotify(ctx, inv, cfg, err)
	}
	inv.Response = resp.Text
	inv.Usage = resp.Usage
	if cost, ok := ai.EstimateCost(model.ModelName, resp.Usage); ok {
		inv.CostUSD = cost
		metrics.ProviderCost.WithLabelValues(inv.Provider, inv.Model).Add(cost)
	}

	inv.State = StateRouting
	if err := g.router.Route(ctx, cfg, ref, resp.Text); err != nil {
		return inv, g.failNotify(ctx, inv, cfg, err)
	}

	inv.State = StateDone
	inv.FinishedAt = time.Now().UTC()
	metrics.RecordInvocation(actionID, inv.Provider, inv.Model, inv.Duration(), nil)
	g.publishEvent(ctx, inv, events.EventInvocationCompleted)

	log.Infow("invocation completed",
		"provider", inv.Provider,
		"model", inv.Model,
		"attempts", inv.Attempts,
		"total_tokens", inv.Usage.TotalTokens,
		"duration", inv.Duration(),
	)
	return inv, nil
}

// PreviewPrompt renders an action's prompt template for a record without
// calling any provider or writing any output.
func (g *Gateway) PreviewPrompt(ctx context.Context, actionID string, ref record.Ref, vars map[string]interface{}) (string, error) {
	snap, err := g.source.Snapshot(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to load configuration snapshot")
	}

	cfg, err := snap.Action(actionID)
	if err != nil {
		return "", err
	}

	return g.renderer.Render(ctx, cfg.PromptTemplate, g.bindVars(ref, vars))
}

// bindVars exposes the triggering record as both "record" and "object",
// on top of any caller-supplied bindings.
func (g *Gateway) bindVars(ref record.Ref, vars map[string]interface{}) map[string]interface{} {
	bound := make(map[string]interface{}, len(vars)+2)
	for k, v := range vars {
		bound[k] = v
	}
	bound["record"] = ref
	bound["object"] = ref
	return bound
}

// dispatch calls the provider with bounded retries. Only transient errors
// (rate limits, timeouts) are retried up to the configured count;
// unclassified failures get a single retry; everything else fails fast.
func (g *Gateway) dispatch(ctx context.Context, inv *Invocation, client ai.Provider, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	b := &backoff.Backoff{
		Min:    g.cfg.BackoffMin,
		Max:    g.cfg.BackoffMax,
		Factor: g.cfg.BackoffFactor,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		inv.Attempts = attempt + 1

		start := time.Now()
		resp, err := client.GenerateText(ctx, req)
		if err == nil {
			metrics.RecordProviderCall(inv.Provider, inv.Model, time.Since(start),
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens, 0)
			return resp, nil
		}
		lastErr = err

		if !g.shouldRetry(err, attempt) {
			return nil, lastErr
		}

		reason := retryReason(err)
		metrics.InvocationRetries.WithLabelValues(inv.Provider, reason).Inc()

		delay := b.Duration()
		g.log.Warnw("provider call failed, retrying",
			"invocation_id", inv.ID,
			"provider", inv.Provider,
			"attempt", inv.Attempts,
			"reason", reason,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(errors.ErrCanceled, "invocation canceled during retry wait: %v", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (g *Gateway) shouldRetry(err error, attempt int) bool {
	if errors.IsTransient(err) {
		return attempt < g.cfg.RetryCount
	}
	if errors.Is(err, errors.ErrProviderUnknown) {
		return attempt < 1
	}
	return false
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errors.ErrProviderTimeout):
		return "timeout"
	default:
		return "unknown"
	}
}

// failNotify is fail plus a best-effort failure notification, used once
// the action configuration is known.
func (g *Gateway) failNotify(ctx context.Context, inv *Invocation, cfg action.Config, err error) error {
	g.router.NotifyFailure(ctx, cfg, inv.Record, err)
	return g.fail(ctx, inv, err)
}

// fail finalizes a failed invocation: records metrics, publishes the
// lifecycle event and returns the error unchanged.
func (g *Gateway) fail(ctx context.Context, inv *Invocation, err error) error {
	inv.State = StateFailed
	inv.FinishedAt = time.Now().UTC()
	inv.Err = err

	metrics.RecordInvocation(inv.ActionID, inv.Provider, inv.Model, inv.Duration(), err)
	g.publishEvent(ctx, inv, events.EventInvocationFailed)

	g.log.Errorw("invocation failed",
		"invocation_id", inv.ID,
		"action_id", inv.ActionID,
		"record", inv.Record.Model+"/"+inv.Record.ID,
		"attempts", inv.Attempts,
		"error", err,
	)
	return err
}

// publishEvent emits the lifecycle event. Event delivery is best effort;
// a broker failure never changes the invocation outcome.
func (g *Gateway) publishEvent(ctx context.Context, inv *Invocation, eventType string) {
	event := events.InvocationEvent{
		Type:             eventType,
		InvocationID:     inv.ID,
		ActionID:         inv.ActionID,
		RecordModel:      inv.Record.Model,
		RecordID:         inv.Record.ID,
		Provider:         inv.Provider,
		Model:            inv.Model,
		PromptTokens:     inv.Usage.PromptTokens,
		CompletionTokens: inv.Usage.CompletionTokens,
		CostUSD:          inv.CostUSD,
		Attempts:         inv.Attempts,
		DurationMs:       inv.Duration().Milliseconds(),
		Timestamp:        inv.FinishedAt,
	}
	if inv.Err != nil {
		event.Error = inv.Err.Error()
	}

	if err := g.publisher.PublishInvocation(ctx, event); err != nil {
		g.log.Warnw("failed to publish invocation event",
			"invocation_id", inv.ID,
			"type", eventType,
			"error", err,
		)
	}
}
