package testsupport

import (
	"context"
	"sync"

	"hermes/internal/adapters/ai"
	"hermes/internal/domain/action"
	"hermes/internal/domain/record"
	"hermes/pkg/errors"
)

// FakeProvider returns scripted responses and errors in order, recording
// every request it receives.
type FakeProvider struct {
	ProviderCode ai.ProviderName

	mu        sync.Mutex
	responses []*ai.GenerateResponse
	errs      []error
	Requests  []ai.GenerateRequest
}

// NewFakeProvider creates a provider that answers with text forever.
func NewFakeProvider(code ai.ProviderName, text string) *FakeProvider {
	return &FakeProvider{
		ProviderCode: code,
		responses: []*ai.GenerateResponse{{
			Text:         text,
			FinishReason: ai.FinishReasonStop,
			Usage:        ai.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}},
	}
}

// Script queues an ordered list of outcomes. A nil response with a non-nil
// error yields that error; the last outcome repeats once exhausted.
func (p *FakeProvider) Script(responses []*ai.GenerateResponse, errs []error) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = responses
	p.errs = errs
	return p
}

// Code implements ai.Provider.
func (p *FakeProvider) Code() ai.ProviderName {
	return p.ProviderCode
}

// GenerateText implements ai.Provider.
func (p *FakeProvider) GenerateText(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := len(p.Requests)
	p.Requests = append(p.Requests, req)

	var err error
	if len(p.errs) > 0 {
		if i < len(p.errs) {
			err = p.errs[i]
		} else {
			err = p.errs[len(p.errs)-1]
		}
	}
	if err != nil {
		return nil, err
	}

	if len(p.responses) == 0 {
		return nil, errors.Wrap(errors.ErrProviderUnknown, "fake provider has no scripted response")
	}
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

// CallCount returns how many requests the provider has served.
func (p *FakeProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// FakeReportGenerator returns fixed PDF bytes per report reference.
type FakeReportGenerator struct {
	Reports map[string][]byte
	Err     error
}

// RenderReport implements action.ReportGenerator.
func (g *FakeReportGenerator) RenderReport(_ context.Context, reportID string, _ record.Ref) ([]byte, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	data, ok := g.Reports[reportID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "report %q", reportID)
	}
	return data, nil
}

// FakeNotifier records notifications; Err makes delivery fail.
type FakeNotifier struct {
	mu       sync.Mutex
	Err      error
	Messages []string
	Users    []string
}

// Notify implements action.NotificationSink.
func (n *FakeNotifier) Notify(_ context.Context, user string, text string) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Users = append(n.Users, user)
	n.Messages = append(n.Messages, text)
	return nil
}

// Count returns the number of delivered notifications.
func (n *FakeNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}

// FakeClientResolver hands out a fixed provider client regardless of code.
type FakeClientResolver struct {
	Provider ai.Provider
	Err      error
}

// ClientFor implements the gateway's client resolution contract.
func (r *FakeClientResolver) ClientFor(_ context.Context, _ action.Provider) (ai.Provider, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Provider, nil
}

// FakeCredentials resolves secrets from a static map.
type FakeCredentials struct {
	Secrets map[string]string
}

// GetSecret implements action.CredentialSource.
func (c *FakeCredentials) GetSecret(_ context.Context, providerCode string) (string, error) {
	key, ok := c.Secrets[providerCode]
	if !ok {
		return "", errors.Wrapf(errors.ErrProviderAuth, "no API key configured for provider %s", providerCode)
	}
	return key, nil
}
