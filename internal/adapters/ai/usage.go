package ai

import "strings"

// ModelPricing holds per-million-token USD prices for one model family.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// pricingTable maps model name prefixes to pricing. Longest prefix wins.
// Prices drift; unknown models simply report zero cost instead of failing.
var pricingTable = map[string]ModelPricing{
	"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4o":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4.1-mini":      {InputPerMTok: 0.40, OutputPerMTok: 1.60},
	"gpt-4.1":           {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"o3-mini":           {InputPerMTok: 1.10, OutputPerMTok: 4.40},
	"claude-3-5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"claude-3-5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-sonnet-4":   {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-opus-4":     {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"gemini-2.0-flash":  {InputPerMTok: 0.10, OutputPerMTok: 0.40},
	"gemini-2.5-flash":  {InputPerMTok: 0.30, OutputPerMTok: 2.50},
	"gemini-2.5-pro":    {InputPerMTok: 1.25, OutputPerMTok: 10.00},
}

// EstimateCost returns the approximate USD cost of one request.
// Returns false when the model is not in the pricing table.
func EstimateCost(model string, usage Usage) (float64, bool) {
	var best string
	for prefix := range pricingTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0, false
	}

	p := pricingTable[best]
	cost := float64(usage.PromptTokens)/1e6*p.InputPerMTok +
		float64(usage.CompletionTokens)/1e6*p.OutputPerMTok
	return cost, true
}
