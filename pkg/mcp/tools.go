package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/samber/lo"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	"github.com/wayfare-ai/wayfare/pkg/orchestrator"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

// mcpIPHash marks sessions opened by MCP clients rather than web visitors.
const mcpIPHash = "mcp"

type monthArgs struct {
	Month string `json:"month"`
}

type monthlyStatsArgs struct {
	Month string `json:"month"`
	Days  int    `json:"days"`
}

type travelActionArgs struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

type itineraryArgs struct {
	ItineraryID string `json:"itinerary_id"`
}

// toolHandler handles one tools/call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"wayfare_spend_status":  handleSpendStatus,
	"wayfare_monthly_stats": handleMonthlyStats,
	"wayfare_cache_stats":   handleCacheStats,
	"wayfare_travel_action": handleTravelAction,
	"wayfare_itinerary":     handleItinerary,
}

var monthProperty = map[string]any{
	"type":        "string",
	"description": "Month in YYYY-MM format (optional, defaults to the current month)",
}

var allTools = []ToolDefinition{
	{
		Name:        "wayfare_spend_status",
		Description: "Show LLM spend for a month against the monthly spend cap.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"month": monthProperty},
		},
	},
	{
		Name:        "wayfare_monthly_stats",
		Description: "Show ledger totals for a month and per-day costs for recent days.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"month": monthProperty,
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of recent days to list (optional, defaults to 30)",
				},
			},
		},
	},
	{
		Name:        "wayfare_cache_stats",
		Description: "Show upstream API cache statistics per provider.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "wayfare_travel_action",
		Description: actions.ToolDescription + ". Finalized itineraries are stored under session_id, or a new session when omitted.",
		InputSchema: travelActionSchema(),
	},
	{
		Name:        "wayfare_itinerary",
		Description: "Export a stored itinerary as JSON.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"itinerary_id"},
			"properties": map[string]any{
				"itinerary_id": map[string]any{
					"type":        "string",
					"description": "The itinerary ID to export",
				},
			},
		},
	},
}

// travelActionSchema is the chat tool schema plus an optional session_id.
func travelActionSchema() map[string]any {
	schema := actions.ToolParameters()
	props := lo.Assign(schema["properties"].(map[string]any), map[string]any{
		"session_id": map[string]any{
			"type":        "string",
			"description": "Session that owns a finalized itinerary (optional)",
		},
	})
	schema["properties"] = props
	return schema
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func handleSpendStatus(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Spend == nil {
		return textResult("Spend tracking is not configured.")
	}
	var args monthArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if !validMonth(args.Month) {
		return errorResult("Invalid month (use YYYY-MM): " + args.Month)
	}
	status, err := s.deps.Spend.Status(ctx, args.Month)
	if err != nil {
		return errorResult("Error fetching spend status: " + err.Error())
	}
	return textResult(formatSpendStatus(status))
}

func handleMonthlyStats(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Stats == nil || s.deps.Spend == nil {
		return textResult("Spend tracking is not configured.")
	}
	var args monthlyStatsArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if !validMonth(args.Month) {
		return errorResult("Invalid month (use YYYY-MM): " + args.Month)
	}
	month := lo.Ternary(args.Month == "", s.deps.Spend.CurrentMonth(), args.Month)
	days := lo.Ternary(args.Days > 0, args.Days, 30)

	stats, err := s.deps.Stats.MonthlyStats(ctx, month)
	if err != nil {
		return errorResult("Error fetching monthly stats: " + err.Error())
	}
	daily, err := s.deps.Stats.DailyCosts(ctx, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return errorResult("Error fetching daily costs: " + err.Error())
	}
	return textResult(formatMonthlyStats(stats, daily))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.deps.Cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleTravelAction(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Actions == nil {
		return textResult("Travel actions are not configured.")
	}
	var args travelActionArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}

	sessionID := args.SessionID
	if sessionID == "" && actions.Kind(args.Action) == actions.KindFinalizeItinerary {
		if s.deps.Sessions == nil {
			return errorResult("session_id is required to finalize an itinerary")
		}
		sess, err := s.deps.Sessions.CreateSession(ctx, mcpIPHash)
		if err != nil {
			return errorResult("Error creating session: " + err.Error())
		}
		sessionID = sess.ID
	}

	res := s.deps.Actions.ExecuteRaw(ctx, sessionID, rawArgs)
	text := formatActionResult(res, orchestrator.ToolResponse([]actions.Result{res}))
	if !res.Success {
		return errorResult(text)
	}
	return textResult(text)
}

func handleItinerary(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Exporter == nil {
		return textResult("Itinerary export is not configured.")
	}
	var args itineraryArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.ItineraryID == "" {
		return errorResult("itinerary_id is required")
	}
	doc, err := s.deps.Exporter.JSON(ctx, args.ItineraryID)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult("Itinerary not found: " + args.ItineraryID)
	}
	if err != nil {
		return errorResult("Error exporting itinerary: " + err.Error())
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errorResult("Error encoding itinerary: " + err.Error())
	}
	return textResult(string(out))
}

func validMonth(m string) bool {
	if m == "" {
		return true
	}
	_, err := time.Parse("2006-01", m)
	return err == nil
}
