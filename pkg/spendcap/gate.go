// Package spendcap enforces the monthly LLM spend cap over the cost ledger.
//
// The cap is a soft limit. RecordCall serializes the read-compare-insert
// sequence inside one process, but several processes sharing a database can
// each pass the check and overshoot the cap by their in-flight calls.
package spendcap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/ledger"
	"github.com/wayfare-ai/wayfare/pkg/metrics"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// ErrCapExceeded is returned by Check when the monthly cap has been reached.
var ErrCapExceeded = errors.New("monthly spend cap exceeded")

// warningPercent is the usage level at which Status raises IsWarning.
const warningPercent = 80

// Gate answers spend questions for the current month and records calls.
type Gate struct {
	ledger   ledger.Ledger
	capUSD   float64
	pricing  map[string]models.ModelPricing
	priciest models.ModelPricing
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// New creates a Gate with the configured cap and pricing table.
func New(cfg config.SpendConfig, l ledger.Ledger, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	table := cfg.Pricing
	if len(table) == 0 {
		table = models.DefaultPricing()
	}
	g := &Gate{
		ledger:  l,
		capUSD:  cfg.MonthlyCapUSD,
		pricing: make(map[string]models.ModelPricing, len(table)),
		logger:  logger,
		now:     time.Now,
	}
	for i, p := range table {
		g.pricing[p.Model] = p
		if i == 0 || p.PromptCost+p.CompletionCost > g.priciest.PromptCost+g.priciest.CompletionCost {
			g.priciest = p
		}
	}
	return g
}

// Cap returns the monthly cap in USD.
func (g *Gate) Cap() float64 { return g.capUSD }

// CurrentMonth returns the YYYY-MM key of the current UTC month.
func (g *Gate) CurrentMonth() string {
	return models.MonthKey(g.now())
}

func (g *Gate) month(m string) string {
	if m == "" {
		return g.CurrentMonth()
	}
	return m
}

// EstimateCost prices a call from the table. Unknown models are priced as
// the most expensive known model.
func (g *Gate) EstimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := g.pricing[model]
	if !ok {
		p = g.priciest
	}
	return p.Cost(promptTokens, completionTokens)
}

// IsExceeded reports whether spend for month has reached the cap.
// An empty month means the current month.
func (g *Gate) IsExceeded(ctx context.Context, month string) (bool, error) {
	spent, err := g.ledger.MonthlySpend(ctx, g.month(month))
	if err != nil {
		return false, fmt.Errorf("spend check: %w", err)
	}
	return spent >= g.capUSD, nil
}

// Check returns ErrCapExceeded when the current month is capped.
func (g *Gate) Check(ctx context.Context) error {
	exceeded, err := g.IsExceeded(ctx, "")
	if err != nil {
		return err
	}
	if exceeded {
		return ErrCapExceeded
	}
	return nil
}

// RemainingBudget returns the unspent part of the cap, never negative.
func (g *Gate) RemainingBudget(ctx context.Context, month string) (float64, error) {
	spent, err := g.ledger.MonthlySpend(ctx, g.month(month))
	if err != nil {
		return 0, fmt.Errorf("remaining budget: %w", err)
	}
	return max(0, g.capUSD-spent), nil
}

// Status returns the spend status for month.
func (g *Gate) Status(ctx context.Context, month string) (models.SpendStatus, error) {
	m := g.month(month)
	spent, err := g.ledger.MonthlySpend(ctx, m)
	if err != nil {
		return models.SpendStatus{}, fmt.Errorf("spend status: %w", err)
	}
	var pct float64
	if g.capUSD > 0 {
		pct = spent / g.capUSD * 100
	}
	return models.SpendStatus{
		Month:          m,
		CapUSD:         g.capUSD,
		SpentUSD:       spent,
		RemainingUSD:   max(0, g.capUSD-spent),
		PercentageUsed: pct,
		IsCapped:       spent >= g.capUSD,
		IsWarning:      pct >= warningPercent,
	}, nil
}

// CanAfford reports whether a call with the estimated token counts fits in
// the remaining budget.
func (g *Gate) CanAfford(ctx context.Context, model string, promptTokens, completionTokens int) (bool, error) {
	m := g.CurrentMonth()
	spent, err := g.ledger.MonthlySpend(ctx, m)
	if err != nil {
		return false, fmt.Errorf("afford check: %w", err)
	}
	if spent >= g.capUSD {
		return false, nil
	}
	return g.EstimateCost(model, promptTokens, completionTokens) <= g.capUSD-spent, nil
}

// RecordCall writes one ledger entry for a completed call. The entry is
// flagged BlockedAfter when this call moved spend from under the cap to at
// or over it.
func (g *Gate) RecordCall(ctx context.Context, rec models.CallRecord) (models.LedgerEntry, error) {
	cost := g.EstimateCost(rec.Model, rec.PromptTokens, rec.CompletionTokens)
	if rec.ActualCost != nil {
		cost = *rec.ActualCost
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	before, err := g.ledger.MonthlySpend(ctx, models.MonthKey(now))
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("record call: %w", err)
	}
	blocked := before < g.capUSD && before+cost >= g.capUSD

	entry := models.LedgerEntry{
		Model:            rec.Model,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		CostUSD:          cost,
		BlockedAfter:     blocked,
		CreatedAt:        now,
	}
	if rec.SessionID != "" {
		sid := rec.SessionID
		entry.SessionID = &sid
	}
	id, err := g.ledger.Record(ctx, entry)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("record call: %w", err)
	}
	entry.ID = id
	entry.MonthKey = models.MonthKey(now)
	entry.DayKey = models.DayKey(now)

	metrics.LLMCostUSD.WithLabelValues(rec.Model).Add(cost)
	metrics.SpendMonthUSD.Set(before + cost)
	if blocked {
		metrics.SpendCapBlocks.Inc()
		g.logger.Warn("monthly spend cap reached",
			zap.String("month", entry.MonthKey),
			zap.Float64("cap_usd", g.capUSD),
			zap.Float64("spent_usd", before+cost),
			zap.String("session_id", rec.SessionID),
		)
	}
	return entry, nil
}

// FallbackMessage is the reply sent instead of an LLM answer once the cap
// is reached.
func (g *Gate) FallbackMessage(ctx context.Context) (string, error) {
	s, err := g.Status(ctx, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("I'm sorry, but I've reached the monthly budget limit of $%.2f for this service. "+
		"The budget will reset next month. Currently spent: $%.2f. "+
		"You can still view and export any itineraries you've already created.", s.CapUSD, s.SpentUSD), nil
}
