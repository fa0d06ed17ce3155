package orchestrator

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/wayfare-ai/wayfare/pkg/actions"
)

// ToolResponse renders action results as the user-facing reply. It returns
// "" when the only outcome is a POI search with no results and nothing was
// finalized, which asks the caller to continue with the model.
func ToolResponse(results []actions.Result) string {
	if len(results) == 0 {
		return "I couldn't execute the requested actions. Please try again."
	}

	var parts []string
	poiEmpty := false
	for _, r := range results {
		if !r.Success {
			parts = append(parts, fmt.Sprintf("❌ %s failed: %s", r.Action, r.Error))
			continue
		}
		switch d := r.Data.(type) {
		case *actions.POIResults:
			if d.Count > 0 {
				parts = append(parts, fmt.Sprintf("🏛️ Found %d interesting places in %s! I'll include the best ones in your itinerary.", d.Count, d.City))
			} else {
				poiEmpty = true
			}
		case *actions.HotelResults:
			if d.Count > 0 {
				parts = append(parts, fmt.Sprintf("🏨 Found %d %s-range hotels in %s! I'll recommend the best options for your stay.", d.Count, d.BudgetTier, d.City))
			} else {
				parts = append(parts, fmt.Sprintf("I'll provide excellent hotel recommendations for %s based on your %s budget.", d.City, d.BudgetTier))
			}
		case *actions.ItineraryCreated:
			parts = append(parts, fmt.Sprintf("✅ Perfect! I've created your %d-day itinerary for %s! You can export it as JSON using the link below or continue chatting to refine it.", d.DaysCount, d.City))
		}
	}

	finalizeRan := lo.ContainsBy(results, func(r actions.Result) bool { return r.Action == actions.KindFinalizeItinerary })
	if poiEmpty && !finalizeRan && len(parts) == 0 {
		return ""
	}
	if len(parts) == 0 {
		return "Actions completed successfully!"
	}
	return strings.Join(parts, " ")
}

// ToolSummary condenses search results into a note for the continuation
// call. Failed results are skipped.
func ToolSummary(results []actions.Result) string {
	var parts []string
	for _, r := range results {
		switch d := r.Data.(type) {
		case *actions.POIResults:
			if d.Count == 0 {
				parts = append(parts, fmt.Sprintf("POI search for %s returned no results from external APIs, but I have extensive knowledge of %s's attractions.", d.City, d.City))
			} else {
				parts = append(parts, fmt.Sprintf("Found %d POIs in %s from external data.", d.Count, d.City))
			}
		case *actions.HotelResults:
			if d.Count == 0 {
				parts = append(parts, fmt.Sprintf("Hotel search for %s returned no results, but I can recommend excellent %s-tier accommodations.", d.City, d.BudgetTier))
			} else {
				parts = append(parts, fmt.Sprintf("Found %d %s-tier hotels in %s.", d.Count, d.BudgetTier, d.City))
			}
		}
	}
	if len(parts) == 0 {
		return "Tool execution completed. Ready to proceed with itinerary creation."
	}
	return strings.Join(parts, " ") + " I'm ready to create a detailed itinerary."
}

// emptySearch reports whether a successful search of kind found nothing.
func emptySearch(results []actions.Result, kind actions.Kind) bool {
	return lo.ContainsBy(results, func(r actions.Result) bool {
		return r.Success && r.Action == kind && r.Count() == 0
	})
}
