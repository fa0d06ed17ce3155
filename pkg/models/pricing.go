package models

// ModelPricing defines per-1K token costs for a model.
type ModelPricing struct {
	Model          string  `json:"model" yaml:"model"`
	PromptCost     float64 `json:"prompt_cost_per_1k" yaml:"prompt_cost_per_1k"`
	CompletionCost float64 `json:"completion_cost_per_1k" yaml:"completion_cost_per_1k"`
}

// Cost returns the estimated USD cost of a call with the given token counts.
func (p ModelPricing) Cost(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)/1000)*p.PromptCost +
		(float64(completionTokens)/1000)*p.CompletionCost
}

// DefaultPricing is the built-in OpenAI price table.
func DefaultPricing() []ModelPricing {
	return []ModelPricing{
		{Model: "gpt-4", PromptCost: 0.03, CompletionCost: 0.06},
		{Model: "gpt-4-turbo", PromptCost: 0.01, CompletionCost: 0.03},
		{Model: "gpt-3.5-turbo", PromptCost: 0.0015, CompletionCost: 0.002},
	}
}
