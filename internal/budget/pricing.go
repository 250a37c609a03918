package budget

import "strings"

type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// per million tokens
var pricing = map[string]ModelPricing{
	"claude-opus-4-5-20251101":   {5.00, 25.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-sonnet-4-20250514":   {3.00, 15.00},
	"claude-haiku-4-5-20251001":  {1.00, 5.00},

	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},

	"anthropic/claude-sonnet-4-5": {3.00, 15.00},
}

// fallback for models missing from the table
var unknownPricing = ModelPricing{5.00, 15.00}

func CalculateCost(provider, model string, inputTokens, outputTokens int) float64 {
	if provider == "ollama" || strings.HasPrefix(model, "ollama/") {
		return 0
	}

	p, ok := pricing[model]
	if !ok {
		p = unknownPricing
	}

	inputCost := float64(inputTokens) * p.InputPerMillion / 1_000_000
	outputCost := float64(outputTokens) * p.OutputPerMillion / 1_000_000

	return inputCost + outputCost
}
