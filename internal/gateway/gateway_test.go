package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/ai"
	"hermes/internal/assembler"
	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/internal/events"
	"hermes/internal/outputs"
	"hermes/internal/prompt"
	"hermes/internal/repository/memory"
	"hermes/internal/testsupport"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// capturePublisher records lifecycle events in memory.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.InvocationEvent
}

func (p *capturePublisher) PublishInvocation(_ context.Context, e events.InvocationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) all() []events.InvocationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.InvocationEvent(nil), p.events...)
}

type fixture struct {
	graph     *testsupport.RecordGraph
	provider  *testsupport.FakeProvider
	notifier  *testsupport.FakeNotifier
	publisher *capturePublisher
	gw        *Gateway
	ref       record.Ref
}

func configFixture(t *testing.T, mutate func(*action.Config)) []action.Config {
	t.Helper()
	cfg := action.Config{
		ID: "act-summary", Name: "Summarize lead", ModelID: "m1",
		PromptTemplate:    "Summarize {{ record.name }}",
		OutputDestination: action.DestinationChatter,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return []action.Config{cfg}
}

func newFixture(t *testing.T, actions []action.Config, cfg Config) *fixture {
	t.Helper()

	source, err := memory.NewSource(
		[]action.Provider{{Code: "openai", Name: "OpenAI", SupportsVision: true, SupportsFiles: true, Active: true}},
		[]action.Model{{
			ID: "m1", ProviderCode: "openai", Name: "GPT-4o", ModelName: "gpt-4o",
			MaxAttachments: 5,
			AllowedFormats: []string{"application/pdf", "image/png", "text/plain"},
			SupportsVision: true, SupportsFiles: true, Active: true,
		}},
		actions,
	)
	require.NoError(t, err)

	ref := record.Ref{Model: "crm.lead", ID: "1"}
	graph := testsupport.NewRecordGraph()
	graph.SetScalar(ref, "name", "Big Deal")
	graph.DeclareField("crm.lead", "summary", record.FieldKindText)

	log := logger.Get()
	provider := testsupport.NewFakeProvider(ai.ProviderNameOpenAI, "All good")
	notifier := &testsupport.FakeNotifier{}
	publisher := &capturePublisher{}

	// Fast backoff keeps retry tests quick.
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 2 * time.Millisecond
	}

	gw := New(
		source,
		prompt.New(graph, 8),
		assembler.New(&testsupport.FakeReportGenerator{}, graph, graph, 100, 16384, log),
		&testsupport.FakeClientResolver{Provider: provider},
		outputs.New(graph, graph, notifier, log),
		publisher,
		cfg,
		log,
	)

	return &fixture{
		graph: graph, provider: provider, notifier: notifier,
		publisher: publisher, gw: gw, ref: ref,
	}
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})

	inv, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)

	assert.Equal(t, StateDone, inv.State)
	assert.Equal(t, "openai", inv.Provider)
	assert.Equal(t, "gpt-4o", inv.Model)
	assert.Equal(t, 1, inv.Attempts)
	assert.Equal(t, "All good", inv.Response)
	assert.Equal(t, 30, inv.Usage.TotalTokens)
	assert.False(t, inv.FinishedAt.IsZero())

	require.Equal(t, 1, f.provider.CallCount())
	assert.Equal(t, "Summarize Big Deal", f.provider.Requests[0].Prompt)
	assert.Equal(t, "gpt-4o", f.provider.Requests[0].Model)

	notes := f.graph.Notes(f.ref)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "All good")

	evts := f.publisher.all()
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventInvocationCompleted, evts[0].Type)
	assert.Equal(t, "act-summary", evts[0].ActionID)
	assert.Empty(t, evts[0].Error)
}

func TestExecuteCostEstimated(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})

	inv, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)
	assert.Greater(t, inv.CostUSD, 0.0)
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{RetryCount: 3})
	f.provider.Script(
		[]*ai.GenerateResponse{{Text: "recovered", FinishReason: ai.FinishReasonStop, Usage: ai.Usage{TotalTokens: 5}}},
		[]error{errors.Wrap(errors.ErrRateLimited, "429"), nil},
	)

	inv, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, inv.State)
	assert.Equal(t, 2, inv.Attempts)
	assert.Equal(t, "recovered", inv.Response)
}

func TestExecuteTransientErrorsExhaustRetries(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{RetryCount: 2})
	f.provider.Script(nil, []error{errors.Wrap(errors.ErrProviderTimeout, "deadline")})

	inv, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderTimeout))
	assert.Equal(t, StateFailed, inv.State)
	assert.Equal(t, 3, inv.Attempts)
	assert.Equal(t, 3, f.provider.CallCount())
}

func TestExecutePermanentErrorFailsFast(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{RetryCount: 3})
	f.provider.Script(nil, []error{errors.Wrap(errors.ErrProviderAuth, "401")})

	inv, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderAuth))
	assert.Equal(t, 1, f.provider.CallCount())

	evts := f.publisher.all()
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventInvocationFailed, evts[0].Type)
	assert.Contains(t, evts[0].Error, "401")
	assert.Equal(t, StateFailed, inv.State)
}

func TestExecuteUnclassifiedErrorRetriedOnce(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{RetryCount: 3})
	f.provider.Script(nil, []error{errors.Wrap(errors.ErrProviderUnknown, "boom")})

	_, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.Error(t, err)
	assert.Equal(t, 2, f.provider.CallCount())
}

func TestExecuteAttachmentLimitFailsBeforeDispatch(t *testing.T) {
	actions := configFixture(t, func(c *action.Config) {
		c.IncludeAllAttachments = true
		c.NotifyUser = "u7"
	})
	f := newFixture(t, actions, Config{})
	for i := 0; i < 6; i++ {
		f.graph.AddFile(f.ref, record.FileBlob{Filename: "f", MimeType: "text/plain", Data: []byte("x")})
	}

	inv, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAttachmentLimit))
	assert.Equal(t, StateFailed, inv.State)
	assert.Zero(t, f.provider.CallCount())

	require.Equal(t, 1, f.notifier.Count())
	assert.Contains(t, f.notifier.Messages[0], "failed")
}

func TestExecuteTemplateErrorSkipsProvider(t *testing.T) {
	actions := configFixture(t, func(c *action.Config) {
		c.PromptTemplate = "{{ record.no_such_field }}"
	})
	f := newFixture(t, actions, Config{})

	_, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))
	assert.Zero(t, f.provider.CallCount())
}

func TestExecuteUnknownActionFails(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})

	inv, err := f.gw.Execute(context.Background(), "no-such-action", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, StateFailed, inv.State)
}

func TestExecuteFoldsChatterIntoRequest(t *testing.T) {
	actions := configFixture(t, func(c *action.Config) {
		c.Chatter = action.ChatterFilter{Mode: action.ChatterAll}
	})
	f := newFixture(t, actions, Config{})
	f.graph.AddMessage(f.ref, record.Message{
		Author: "Alice", Type: "comment",
		Timestamp: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Body:      "Customer asked for a discount",
	})

	_, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)
	require.Equal(t, 1, f.provider.CallCount())
	assert.Contains(t, f.provider.Requests[0].Chatter, "Customer asked for a discount")
}

func TestExecuteWritesToField(t *testing.T) {
	actions := configFixture(t, func(c *action.Config) {
		c.OutputDestination = action.DestinationField
		c.OutputField = "summary"
	})
	f := newFixture(t, actions, Config{})

	_, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)
	assert.Equal(t, "All good", f.graph.Field(f.ref, "summary"))
	assert.Empty(t, f.graph.Notes(f.ref))
}

func TestExecuteMarkdownResponseToHTMLField(t *testing.T) {
	actions := configFixture(t, func(c *action.Config) {
		c.OutputDestination = action.DestinationField
		c.OutputField = "description"
	})
	f := newFixture(t, actions, Config{})
	f.graph.DeclareField("crm.lead", "description", record.FieldKindHTML)
	f.provider.Script([]*ai.GenerateResponse{{
		Text: "- point one\n- point two", FinishReason: ai.FinishReasonStop,
	}}, nil)

	_, err := f.gw.Execute(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)

	written := f.graph.Field(f.ref, "description")
	assert.Contains(t, written, "<li>point one</li>")
	assert.Contains(t, written, "<li>point two</li>")
	assert.Empty(t, f.graph.Notes(f.ref))
}

func TestExecuteCanceledDuringRetryWait(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{
		RetryCount: 3,
		BackoffMin: time.Second,
		BackoffMax: time.Second,
	})
	f.provider.Script(nil, []error{errors.Wrap(errors.ErrRateLimited, "429")})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.gw.Execute(ctx, "act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCanceled))
}

func TestPreviewPromptDoesNotDispatch(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})

	out, err := f.gw.PreviewPrompt(context.Background(), "act-summary", f.ref, nil)
	require.NoError(t, err)
	assert.Equal(t, "Summarize Big Deal", out)
	assert.Zero(t, f.provider.CallCount())
	assert.Empty(t, f.graph.Notes(f.ref))
	assert.Empty(t, f.publisher.all())
}

func TestPoolSubmitWait(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})
	pool := NewPool(f.gw, 2, 4, logger.Get())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Close()

	inv, err := pool.SubmitWait(ctx, "act-summary", f.ref, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, inv.State)
}

func TestPoolQueueFull(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})
	// Workers never started, so the queue only drains on capacity.
	pool := NewPool(f.gw, 1, 2, logger.Get())

	require.NoError(t, pool.Submit("act-summary", f.ref, nil))
	require.NoError(t, pool.Submit("act-summary", f.ref, nil))
	assert.Equal(t, 2, pool.Pending())

	err := pool.Submit("act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueueFull))
}

func TestPoolRejectsAfterClose(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})
	pool := NewPool(f.gw, 1, 2, logger.Get())
	pool.Close()

	err := pool.Submit("act-summary", f.ref, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueueFull))
}

func TestPoolCloseFailsPendingTasks(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})
	// Workers never started, so the submitted task stays queued.
	pool := NewPool(f.gw, 1, 2, logger.Get())

	waited := make(chan error, 1)
	go func() {
		_, err := pool.SubmitWait(context.Background(), "act-summary", f.ref, nil)
		waited <- err
	}()

	require.Eventually(t, func() bool { return pool.Pending() == 1 },
		time.Second, time.Millisecond)

	pool.Close()

	select {
	case err := <-waited:
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCanceled))
	case <-time.After(time.Second):
		t.Fatal("waiter not released after Close")
	}
	assert.Zero(t, f.provider.CallCount())
}

func TestPoolConcurrentInvocationsIsolated(t *testing.T) {
	f := newFixture(t, configFixture(t, nil), Config{})

	const leads = 8
	refs := make([]record.Ref, leads)
	for i := 0; i < leads; i++ {
		refs[i] = record.Ref{Model: "crm.lead", ID: fmt.Sprintf("10%d", i)}
		f.graph.SetScalar(refs[i], "name", fmt.Sprintf("lead-%d", i))
	}

	pool := NewPool(f.gw, 4, 16, logger.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Close()

	var wg sync.WaitGroup
	results := make([]result, leads)
	for i := 0; i < leads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := pool.SubmitWait(ctx, "act-summary", refs[i], nil)
			results[i] = result{inv: inv, err: err}
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for _, r := range results {
		require.NoError(t, r.err)
		ids[r.inv.ID] = true
	}
	assert.Len(t, ids, leads)

	// Each worker must have dispatched the prompt rendered from its own
	// record, not a sibling's.
	prompts := make(map[string]bool)
	for _, req := range f.provider.Requests {
		prompts[req.Prompt] = true
	}
	for i := 0; i < leads; i++ {
		assert.Contains(t, prompts, fmt.Sprintf("Summarize lead-%d", i))
	}

	for i := 0; i < leads; i++ {
		notes := f.graph.Notes(refs[i])
		require.Len(t, notes, 1, "record %s", refs[i].ID)
		assert.Contains(t, notes[0], "All good")
	}
}
