package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Session groups the chat turns of one visitor.
type Session struct {
	ID        string    `json:"id" db:"id"`
	IPHash    string    `json:"ip_hash" db:"ip_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Message is a stored chat message.
type Message struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Role      Role      `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	TokensIn  *int      `json:"tokens_in,omitempty" db:"tokens_in"`
	TokensOut *int      `json:"tokens_out,omitempty" db:"tokens_out"`
	CostUSD   *float64  `json:"cost_usd,omitempty" db:"cost_usd"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BudgetTier is the accommodation price band a traveller asked for.
type BudgetTier string

const (
	TierBudget  BudgetTier = "budget"
	TierMid     BudgetTier = "mid"
	TierPremium BudgetTier = "premium"
)

// Valid reports whether t is one of the known tiers.
func (t BudgetTier) Valid() bool {
	switch t {
	case TierBudget, TierMid, TierPremium:
		return true
	}
	return false
}
