package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// formatSpendStatus formats a month's spend as text.
func formatSpendStatus(s models.SpendStatus) string {
	state := "OK"
	switch {
	case s.IsCapped:
		state = "CAPPED"
	case s.IsWarning:
		state = "WARNING"
	}
	return fmt.Sprintf("Spend Status %s\n"+
		"  Cap:       $%.2f\n"+
		"  Spent:     $%.4f\n"+
		"  Remaining: $%.4f\n"+
		"  Used:      %.1f%%\n"+
		"  State:     %s\n",
		s.Month, s.CapUSD, s.SpentUSD, s.RemainingUSD, s.PercentageUsed, state)
}

// formatMonthlyStats formats ledger totals followed by a per-day table.
func formatMonthlyStats(stats models.MonthlyStats, daily []models.DailyCost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ledger %s\n", stats.Month)
	fmt.Fprintf(&b, "  Calls:             %d\n", stats.TotalCalls)
	fmt.Fprintf(&b, "  Blocked after:     %d\n", stats.BlockedCalls)
	fmt.Fprintf(&b, "  Prompt tokens:     %d\n", stats.PromptTokens)
	fmt.Fprintf(&b, "  Completion tokens: %d\n", stats.CompletionTokens)
	fmt.Fprintf(&b, "  Cost:              $%.4f\n", stats.TotalCostUSD)

	if len(daily) == 0 {
		b.WriteString("\nNo daily costs recorded.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "\n%-12s %8s %12s\n", "Date", "Calls", "Cost (USD)")
	b.WriteString(strings.Repeat("-", 34) + "\n")
	for _, d := range daily {
		fmt.Fprintf(&b, "%-12s %8d %12.4f\n", d.Date, d.Calls, d.CostUSD)
	}
	return b.String()
}

// formatCacheStats formats cache stats with a per-provider table.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
	if len(stats.Providers) == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "\n%-20s %8s %8s\n", "Provider", "Entries", "Expired")
	b.WriteString(strings.Repeat("-", 38) + "\n")
	for _, p := range stats.Providers {
		fmt.Fprintf(&b, "%-20s %8d %8d\n", p.Provider, p.Entries, p.Expired)
	}
	return b.String()
}

// formatActionResult puts the chat summary line above the raw result.
func formatActionResult(res actions.Result, summary string) string {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return summary
	}
	if summary == "" {
		return string(data)
	}
	return summary + "\n\n" + string(data)
}
