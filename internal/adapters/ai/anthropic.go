package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"

	// The messages API requires max_tokens on every request.
	anthropicDefaultMaxTokens = 4096
)

var _ Provider = (*AnthropicClient)(nil)

// AnthropicClient talks to the Anthropic messages API over plain HTTP.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    RateLimiter
	log        *logger.Logger
}

// NewAnthropicClient creates a messages API client.
func NewAnthropicClient(opts ClientOptions) (*AnthropicClient, error) {
	if opts.APIKey == "" {
		return nil, errors.Newf(errors.ErrProviderAuth, "anthropic API key is empty")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = anthropicAPIURL
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	log := opts.Log
	if log == nil {
		log = logger.Get()
	}

	return &AnthropicClient{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		log:        log.With("provider", ProviderNameAnthropic),
	}, nil
}

// Code returns the provider code this client serves.
func (c *AnthropicClient) Code() ProviderName {
	return ProviderNameAnthropic
}

// GenerateText sends one messages API request. Images ride as base64
// image blocks, PDFs as document blocks.
func (c *AnthropicClient) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, errors.Wrap(err, "marshal anthropic request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create anthropic request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ProviderNameAnthropic, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read anthropic response")
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, classifyStatus(ProviderNameAnthropic, resp.StatusCode, errResp.Error.Message)
		}
		return nil, classifyStatus(ProviderNameAnthropic, resp.StatusCode, string(respBody))
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, errors.Wrap(err, "unmarshal anthropic response")
	}

	c.log.Debugw("message finished",
		"model", req.Model,
		"duration", time.Since(start),
		"input_tokens", msgResp.Usage.InputTokens,
		"output_tokens", msgResp.Usage.OutputTokens,
	)

	var textParts []string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	return &GenerateResponse{
		Text:         strings.Join(textParts, "\n"),
		FinishReason: mapAnthropicStopReason(msgResp.StopReason),
		Usage: Usage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}, nil
}

func (c *AnthropicClient) buildRequest(req GenerateRequest) anthropicRequest {
	blocks := []anthropicContent{{Type: "text", Text: req.promptWithChatter()}}
	for _, f := range req.Files {
		blockType := "document"
		if IsImageMime(f.MimeType) {
			blockType = "image"
		}
		blocks = append(blocks, anthropicContent{
			Type: blockType,
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: f.MimeType,
				Data:      base64.StdEncoding.EncodeToString(f.Data),
			},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	return anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: blocks,
		}},
	}
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishReasonStop
	case "max_tokens":
		return FinishReasonLength
	default:
		return FinishReasonOther
	}
}

// Anthropic messages API types
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"` // "text", "image", "document"
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
