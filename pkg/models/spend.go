package models

// SpendStatus shows current monthly spend against the configured cap.
type SpendStatus struct {
	Month          string  `json:"month"`
	CapUSD         float64 `json:"cap_usd"`
	SpentUSD       float64 `json:"spent_usd"`
	RemainingUSD   float64 `json:"remaining_usd"`
	PercentageUsed float64 `json:"percentage_used"`
	IsCapped       bool    `json:"is_capped"`
	IsWarning      bool    `json:"is_warning"`
}

// CallRecord describes one completed LLM call to be written to the ledger.
// ActualCost overrides the table estimate when the provider reports a cost.
type CallRecord struct {
	SessionID        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	ActualCost       *float64
}
