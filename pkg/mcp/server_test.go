package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	"github.com/wayfare-ai/wayfare/pkg/export"
	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

type fakeSpend struct {
	status    models.SpendStatus
	lastMonth string
}

func (f *fakeSpend) CurrentMonth() string { return "2024-05" }
func (f *fakeSpend) Status(_ context.Context, month string) (models.SpendStatus, error) {
	f.lastMonth = month
	return f.status, nil
}

type fakeStats struct {
	stats models.MonthlyStats
	daily []models.DailyCost
}

func (f *fakeStats) MonthlyStats(_ context.Context, month string) (models.MonthlyStats, error) {
	s := f.stats
	s.Month = month
	return s, nil
}
func (f *fakeStats) DailyCosts(_ context.Context, _ time.Time) ([]models.DailyCost, error) {
	return f.daily, nil
}

type fakeCache struct {
	stats models.CacheStats
}

func (f *fakeCache) Stats(context.Context) (models.CacheStats, error) { return f.stats, nil }

type fakeActions struct {
	result    actions.Result
	sessionID string
	raw       string
}

func (f *fakeActions) ExecuteRaw(_ context.Context, sessionID string, raw []byte) actions.Result {
	f.sessionID = sessionID
	f.raw = string(raw)
	return f.result
}

type fakeSessions struct{ created int }

func (f *fakeSessions) CreateSession(_ context.Context, ipHash string) (models.Session, error) {
	f.created++
	return models.Session{ID: "sess-mcp", IPHash: ipHash}, nil
}

type fakeExporter struct{}

func (fakeExporter) JSON(_ context.Context, id string) (export.Document, error) {
	if id != "it-1" {
		return export.Document{}, store.ErrNotFound
	}
	return export.Document{ID: "it-1", City: "Rome", Days: []export.Day{}}, nil
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	p := ToolCallParams{Name: name}
	if args != "" {
		p.Arguments = json.RawMessage(args)
	}
	params, _ := json.Marshal(p)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(Deps{}, "test", nil)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	_ = json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "wayfare" {
		t.Errorf("server name = %s, want wayfare", result.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(Deps{}, "test", nil)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	_ = json.Unmarshal(data, &result)

	if len(result.Tools) != len(toolHandlers) {
		t.Errorf("got %d tools, want %d", len(result.Tools), len(toolHandlers))
	}
	for _, tool := range result.Tools {
		if _, ok := toolHandlers[tool.Name]; !ok {
			t.Errorf("listed tool %s has no handler", tool.Name)
		}
	}
}

func TestTravelActionSchemaKeepsChatFields(t *testing.T) {
	props := travelActionSchema()["properties"].(map[string]any)
	for _, want := range []string{"action", "city", "days", "session_id"} {
		if _, ok := props[want]; !ok {
			t.Errorf("schema missing %s", want)
		}
	}
	if _, ok := actions.ToolParameters()["properties"].(map[string]any)["session_id"]; ok {
		t.Error("chat tool schema must not gain session_id")
	}
}

func TestToolCallSpendStatus(t *testing.T) {
	spend := &fakeSpend{status: models.SpendStatus{Month: "2024-04", CapUSD: 10, SpentUSD: 9.5, PercentageUsed: 95, IsWarning: true}}
	srv := New(Deps{Spend: spend}, "test", nil)

	result := callTool(t, srv, "wayfare_spend_status", `{"month":"2024-04"}`)
	text := result.Content[0].Text
	if !strings.Contains(text, "2024-04") || !strings.Contains(text, "WARNING") || !strings.Contains(text, "95.0%") {
		t.Errorf("unexpected spend output: %s", text)
	}
	if spend.lastMonth != "2024-04" {
		t.Errorf("month = %q, want 2024-04", spend.lastMonth)
	}

	result = callTool(t, srv, "wayfare_spend_status", `{"month":"April"}`)
	if !result.IsError {
		t.Error("expected isError=true for a bad month")
	}
}

func TestToolCallMonthlyStats(t *testing.T) {
	stats := &fakeStats{
		stats: models.MonthlyStats{TotalCalls: 3, TotalCostUSD: 0.12, PromptTokens: 3000},
		daily: []models.DailyCost{{Date: "2024-05-02", CostUSD: 0.12, Calls: 3}},
	}
	srv := New(Deps{Spend: &fakeSpend{}, Stats: stats}, "test", nil)

	text := callTool(t, srv, "wayfare_monthly_stats", `{}`).Content[0].Text
	for _, want := range []string{"Ledger 2024-05", "3000", "2024-05-02", "0.1200"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got: %s", want, text)
		}
	}
}

func TestToolCallNotConfigured(t *testing.T) {
	srv := New(Deps{}, "test", nil)
	for _, name := range []string{"wayfare_spend_status", "wayfare_monthly_stats", "wayfare_cache_stats", "wayfare_travel_action", "wayfare_itinerary"} {
		result := callTool(t, srv, name, "")
		if !strings.Contains(result.Content[0].Text, "not configured") {
			t.Errorf("%s: expected 'not configured', got: %s", name, result.Content[0].Text)
		}
	}
}

func TestToolCallCacheStats(t *testing.T) {
	cache := &fakeCache{stats: models.CacheStats{
		Entries: 42, Hits: 10, Misses: 5,
		Providers: []models.ProviderCacheStats{{Provider: "opentripmap", Entries: 40, Expired: 2}},
	}}
	srv := New(Deps{Cache: cache}, "test", nil)

	text := callTool(t, srv, "wayfare_cache_stats", "").Content[0].Text
	if !strings.Contains(text, "42") || !strings.Contains(text, "66.7%") || !strings.Contains(text, "opentripmap") {
		t.Errorf("unexpected cache stats output: %s", text)
	}
}

func TestToolCallTravelAction(t *testing.T) {
	acts := &fakeActions{result: actions.Result{
		Action:  actions.KindSearchHotels,
		Success: true,
		Data:    &actions.HotelResults{City: "Rome", BudgetTier: models.TierBudget, Count: 2},
	}}
	sessions := &fakeSessions{}
	srv := New(Deps{Actions: acts, Sessions: sessions}, "test", nil)

	args := `{"action":"search_hotels","city":"Rome","budget_tier":"budget","session_id":"s-1"}`
	result := callTool(t, srv, "wayfare_travel_action", args)
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "Found 2 budget-range hotels in Rome") {
		t.Errorf("unexpected output: %s", result.Content[0].Text)
	}
	if acts.sessionID != "s-1" || acts.raw != args {
		t.Errorf("executor got session %q raw %q", acts.sessionID, acts.raw)
	}
	if sessions.created != 0 {
		t.Error("searches must not open a session")
	}
}

func TestToolCallFinalizeOpensSession(t *testing.T) {
	acts := &fakeActions{result: actions.Result{
		Action:  actions.KindFinalizeItinerary,
		Success: true,
		Data:    &actions.ItineraryCreated{ItineraryID: "it-1", City: "Rome", DaysCount: 2},
	}}
	sessions := &fakeSessions{}
	srv := New(Deps{Actions: acts, Sessions: sessions}, "test", nil)

	result := callTool(t, srv, "wayfare_travel_action", `{"action":"finalize_itinerary","city":"Rome"}`)
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content[0].Text)
	}
	if sessions.created != 1 || acts.sessionID != "sess-mcp" {
		t.Errorf("created %d sessions, executor session %q", sessions.created, acts.sessionID)
	}
	if !strings.Contains(result.Content[0].Text, `"itinerary_id": "it-1"`) {
		t.Errorf("expected raw result in output, got: %s", result.Content[0].Text)
	}
}

func TestToolCallTravelActionFailure(t *testing.T) {
	acts := &fakeActions{result: actions.Result{Action: actions.KindUnknown, Error: "Unknown action: fly"}}
	srv := New(Deps{Actions: acts}, "test", nil)

	result := callTool(t, srv, "wayfare_travel_action", `{"action":"fly"}`)
	if !result.IsError {
		t.Error("expected isError=true for a failed action")
	}
	if !strings.Contains(result.Content[0].Text, "Unknown action: fly") {
		t.Errorf("unexpected output: %s", result.Content[0].Text)
	}
}

func TestToolCallItinerary(t *testing.T) {
	srv := New(Deps{Exporter: fakeExporter{}}, "test", nil)

	result := callTool(t, srv, "wayfare_itinerary", `{"itinerary_id":"it-1"}`)
	if result.IsError || !strings.Contains(result.Content[0].Text, `"city": "Rome"`) {
		t.Errorf("unexpected output: %s", result.Content[0].Text)
	}

	if !callTool(t, srv, "wayfare_itinerary", `{"itinerary_id":"nope"}`).IsError {
		t.Error("expected isError=true for an unknown itinerary")
	}
	if !callTool(t, srv, "wayfare_itinerary", `{}`).IsError {
		t.Error("expected isError=true for a missing itinerary_id")
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(Deps{}, "test", nil)
	result := callTool(t, srv, "wayfare_flights", "")
	if !result.IsError {
		t.Error("expected isError=true for an unknown tool")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(Deps{}, "test", nil)

	line, _ := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(Deps{}, "test", nil)
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestParseError(t *testing.T) {
	var out bytes.Buffer
	_ = New(Deps{}, "test", nil).Run(context.Background(), strings.NewReader("{not json\n"), &out)

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}
