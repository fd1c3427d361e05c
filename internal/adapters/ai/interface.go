package ai

import (
	"context"
	"fmt"
)

// Provider defines the contract each AI vendor client must satisfy.
// Implementations wrap a single vendor's remote API: they map file blobs
// onto the vendor's attachment mechanism, fold chatter history into the
// prompt, apply a bounded timeout and translate vendor errors into the
// common taxonomy. Retry policy lives in the gateway, never here.
type Provider interface {
	Code() ProviderName

	// GenerateText sends one text-generation request and returns the
	// response text with usage metadata.
	GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// File is a single attachment blob sent with a request.
type File struct {
	Filename string
	MimeType string
	Data     []byte
}

// GenerateRequest is a normalized text-generation request.
type GenerateRequest struct {
	Model       string // vendor-specific model identifier
	Prompt      string
	Chatter     string // conversation history block, folded into the prompt
	Files       []File
	MaxTokens   int // 0 = vendor default
	Temperature float64
}

// promptWithChatter appends the chatter history block to the prompt,
// mirroring how every vendor client presents history.
func (r GenerateRequest) promptWithChatter() string {
	if r.Chatter == "" {
		return r.Prompt
	}
	return fmt.Sprintf("%s\n\nCHATTER HISTORY:\n%s", r.Prompt, r.Chatter)
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonOther  FinishReason = "other"
)

// Usage tracks token consumption for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateResponse is the normalized provider response.
type GenerateResponse struct {
	Text         string
	FinishReason FinishReason
	Usage        Usage
}
