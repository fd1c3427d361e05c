package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCostLongestPrefixWins(t *testing.T) {
	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	// gpt-4o-mini must not fall into the gpt-4o bucket
	cost, ok := EstimateCost("gpt-4o-mini-2024-07-18", usage)
	require.True(t, ok)
	assert.InDelta(t, 0.15+0.60, cost, 1e-9)

	cost, ok = EstimateCost("gpt-4o-2024-11-20", usage)
	require.True(t, ok)
	assert.InDelta(t, 2.50+10.00, cost, 1e-9)
}

func TestEstimateCostDatedModelNames(t *testing.T) {
	cost, ok := EstimateCost("claude-sonnet-4-20250514", Usage{PromptTokens: 2000, CompletionTokens: 1000})
	require.True(t, ok)
	assert.InDelta(t, 2000.0/1e6*3.00+1000.0/1e6*15.00, cost, 1e-9)
}

func TestEstimateCostUnknownModel(t *testing.T) {
	cost, ok := EstimateCost("llama-3-70b", Usage{PromptTokens: 1000})
	assert.False(t, ok)
	assert.Zero(t, cost)
}

func TestEstimateCostZeroUsage(t *testing.T) {
	cost, ok := EstimateCost("gemini-2.5-flash", Usage{})
	require.True(t, ok)
	assert.Zero(t, cost)
}
