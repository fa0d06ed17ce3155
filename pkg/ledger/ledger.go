// Package ledger is the durable log of LLM call costs, partitioned by month.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wayfare-ai/wayfare/pkg/db"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// Ledger records and queries LLM call costs.
type Ledger interface {
	// Record appends an entry and returns its ID.
	Record(ctx context.Context, e models.LedgerEntry) (int64, error)
	// MonthlySpend returns the summed cost for a YYYY-MM month.
	MonthlySpend(ctx context.Context, month string) (float64, error)
	// MonthlyStats returns aggregated totals for a YYYY-MM month.
	MonthlyStats(ctx context.Context, month string) (models.MonthlyStats, error)
	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]models.LedgerEntry, error)
	// BySession returns a session's entries in call order.
	BySession(ctx context.Context, sessionID string) ([]models.LedgerEntry, error)
	// DailyCosts returns per-day totals for days on or after since, oldest first.
	DailyCosts(ctx context.Context, since time.Time) ([]models.DailyCost, error)
}

// SQLiteLedger implements Ledger on the shared SQLite database.
type SQLiteLedger struct {
	db *sqlx.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS llm_usage_ledger (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	month_key TEXT NOT NULL,
	day_key TEXT NOT NULL,
	blocked_after INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_ledger_month ON llm_usage_ledger(month_key);
CREATE INDEX IF NOT EXISTS idx_ledger_day ON llm_usage_ledger(day_key);
CREATE INDEX IF NOT EXISTS idx_ledger_session ON llm_usage_ledger(session_id, created_at);
`

const entryColumns = `id, session_id, model, prompt_tokens, completion_tokens, cost_usd,
	month_key, day_key, blocked_after, created_at`

// New creates a SQLiteLedger and runs auto-migration.
func New(conn *sqlx.DB) (*SQLiteLedger, error) {
	if err := db.Migrate(conn, createTable, createIndexes); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &SQLiteLedger{db: conn}, nil
}

// Record stores an entry. MonthKey and DayKey are derived from CreatedAt,
// which defaults to now.
func (l *SQLiteLedger) Record(ctx context.Context, e models.LedgerEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.MonthKey = models.MonthKey(e.CreatedAt)
	e.DayKey = models.DayKey(e.CreatedAt)

	res, err := l.db.NamedExecContext(ctx,
		`INSERT INTO llm_usage_ledger
		 (session_id, model, prompt_tokens, completion_tokens, cost_usd, month_key, day_key, blocked_after, created_at)
		 VALUES (:session_id, :model, :prompt_tokens, :completion_tokens, :cost_usd, :month_key, :day_key, :blocked_after, :created_at)`,
		e,
	)
	if err != nil {
		return 0, fmt.Errorf("record ledger entry: %w", err)
	}
	return res.LastInsertId()
}

// MonthlySpend returns the summed cost for a month.
func (l *SQLiteLedger) MonthlySpend(ctx context.Context, month string) (float64, error) {
	var total float64
	err := l.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(cost_usd), 0) FROM llm_usage_ledger WHERE month_key = ?`, month)
	if err != nil {
		return 0, fmt.Errorf("monthly spend: %w", err)
	}
	return total, nil
}

// MonthlyStats returns aggregated totals for a month.
func (l *SQLiteLedger) MonthlyStats(ctx context.Context, month string) (models.MonthlyStats, error) {
	var s models.MonthlyStats
	err := l.db.GetContext(ctx, &s,
		`SELECT ? AS month,
			COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
			COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
			COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
			COUNT(*) AS total_calls,
			COALESCE(SUM(blocked_after), 0) AS blocked_calls
		 FROM llm_usage_ledger WHERE month_key = ?`,
		month, month,
	)
	if err != nil {
		return models.MonthlyStats{}, fmt.Errorf("monthly stats: %w", err)
	}
	return s, nil
}

// Recent returns up to limit entries, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.LedgerEntry
	err := l.db.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM llm_usage_ledger ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent ledger entries: %w", err)
	}
	return entries, nil
}

// BySession returns a session's entries in call order.
func (l *SQLiteLedger) BySession(ctx context.Context, sessionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := l.db.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM llm_usage_ledger WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session ledger entries: %w", err)
	}
	return entries, nil
}

// DailyCosts returns per-day totals for days on or after since.
func (l *SQLiteLedger) DailyCosts(ctx context.Context, since time.Time) ([]models.DailyCost, error) {
	var costs []models.DailyCost
	err := l.db.SelectContext(ctx, &costs,
		`SELECT day_key AS date, COALESCE(SUM(cost_usd), 0) AS cost_usd, COUNT(*) AS calls
		 FROM llm_usage_ledger WHERE day_key >= ? GROUP BY day_key ORDER BY day_key ASC`,
		models.DayKey(since),
	)
	if err != nil {
		return nil, fmt.Errorf("daily costs: %w", err)
	}
	return costs, nil
}
