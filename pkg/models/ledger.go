package models

import "time"

// LedgerEntry records the token usage and estimated cost of one LLM call.
type LedgerEntry struct {
	ID               int64     `json:"id" db:"id"`
	SessionID        *string   `json:"session_id,omitempty" db:"session_id"`
	Model            string    `json:"model" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd" db:"cost_usd"`
	MonthKey         string    `json:"month_key" db:"month_key"`
	DayKey           string    `json:"-" db:"day_key"`
	BlockedAfter     bool      `json:"blocked_after" db:"blocked_after"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// MonthlyStats aggregates ledger entries for one calendar month.
type MonthlyStats struct {
	Month            string  `json:"month" db:"month"`
	TotalCostUSD     float64 `json:"total_cost_usd" db:"total_cost_usd"`
	PromptTokens     int64   `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens" db:"completion_tokens"`
	TotalCalls       int64   `json:"total_calls" db:"total_calls"`
	BlockedCalls     int64   `json:"blocked_calls" db:"blocked_calls"`
}

// DailyCost is the summed cost of the calls made on one UTC day.
type DailyCost struct {
	Date    string  `json:"date" db:"date"`
	CostUSD float64 `json:"cost_usd" db:"cost_usd"`
	Calls   int64   `json:"calls" db:"calls"`
}

// MonthKey returns the YYYY-MM ledger partition for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// DayKey returns the YYYY-MM-DD day bucket for t.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
