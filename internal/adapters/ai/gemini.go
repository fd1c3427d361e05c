package ai

import (
	"context"
	"time"

	"google.golang.org/genai"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

var _ Provider = (*GeminiClient)(nil)

// GeminiClient talks to the Gemini API through the official SDK.
type GeminiClient struct {
	client  *genai.Client
	timeout time.Duration
	limiter RateLimiter
	log     *logger.Logger
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(opts ClientOptions) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, errors.Newf(errors.ErrProviderAuth, "gemini API key is empty")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	log := opts.Log
	if log == nil {
		log = logger.Get()
	}

	return &GeminiClient{
		client:  client,
		timeout: opts.Timeout,
		limiter: limiter,
		log:     log.With("provider", ProviderNameGoogle),
	}, nil
}

// Code returns the provider code this client serves.
func (c *GeminiClient) Code() ProviderName {
	return ProviderNameGoogle
}

// GenerateText sends one generate content request. All files ride as
// inline byte parts; Gemini infers handling from the mimetype.
func (c *GeminiClient) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(req.promptWithChatter())}
	for _, f := range req.Files {
		parts = append(parts, genai.NewPartFromBytes(f.Data, f.MimeType))
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: parts,
	}}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(ProviderNameGoogle, apiErr.Code, apiErr.Message)
		}
		return nil, classifyTransport(ProviderNameGoogle, err)
	}

	if len(resp.Candidates) == 0 {
		return nil, errors.Newf(errors.ErrProviderUnknown, "gemini returned no candidates")
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	c.log.Debugw("generate content finished",
		"model", req.Model,
		"duration", time.Since(start),
		"total_tokens", usage.TotalTokens,
	)

	return &GenerateResponse{
		Text:         resp.Text(),
		FinishReason: mapGeminiFinishReason(resp.Candidates[0].FinishReason),
		Usage:        usage,
	}, nil
}

func mapGeminiFinishReason(reason genai.FinishReason) FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return FinishReasonLength
	default:
		return FinishReasonOther
	}
}
