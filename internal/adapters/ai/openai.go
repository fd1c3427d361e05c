package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenAIClient talks to any openai-compatible chat completions API.
// It serves both the openai and openrouter codes; the latter only
// changes the base URL.
type OpenAIClient struct {
	code    ProviderName
	client  openai.Client
	timeout time.Duration
	limiter RateLimiter
	log     *logger.Logger
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(code ProviderName, opts ClientOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, errors.Newf(errors.ErrProviderAuth, "%s API key is empty", code)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	log := opts.Log
	if log == nil {
		log = logger.Get()
	}

	return &OpenAIClient{
		code:    code,
		client:  openai.NewClient(reqOpts...),
		timeout: opts.Timeout,
		limiter: limiter,
		log:     log.With("provider", code),
	}, nil
}

// Code returns the provider code this client serves.
func (c *OpenAIClient) Code() ProviderName {
	return c.code
}

// GenerateText sends one chat completion request. Images ride as
// image_url parts, other files as base64 file parts.
func (c *OpenAIClient) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.promptWithChatter()),
	}
	for _, f := range req.Files {
		if IsImageMime(f.MimeType) {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(f.MimeType, f.Data),
			}))
			continue
		}
		parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileData: openai.String(dataURL(f.MimeType, f.Data)),
			Filename: openai.String(f.Filename),
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(c.code, apiErr.StatusCode, apiErr.Message)
		}
		return nil, classifyTransport(c.code, err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Newf(errors.ErrProviderUnknown, "%s returned no choices", c.code)
	}
	choice := resp.Choices[0]

	c.log.Debugw("chat completion finished",
		"model", req.Model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)

	return &GenerateResponse{
		Text:         choice.Message.Content,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func mapOpenAIFinishReason(reason string) FinishReason {
	switch reason {
	case "stop":
		return FinishReasonStop
	case "length":
		return FinishReasonLength
	default:
		return FinishReasonOther
	}
}

func dataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
