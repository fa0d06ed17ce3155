package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachepkg "github.com/wayfare-ai/wayfare/pkg/cache/sqlite"
	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/db"
	"github.com/wayfare-ai/wayfare/pkg/export"
	"github.com/wayfare-ai/wayfare/pkg/ledger"
	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/orchestrator"
	"github.com/wayfare-ai/wayfare/pkg/spendcap"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

// echoChat stores the turn and a canned reply the way the orchestrator does.
type echoChat struct {
	store *store.Store
	turns []orchestrator.Turn
}

func (e *echoChat) ProcessChatMessage(ctx context.Context, t orchestrator.Turn) orchestrator.Reply {
	e.turns = append(e.turns, t)
	_, _ = e.store.AddMessage(ctx, models.Message{SessionID: t.SessionID, Role: models.RoleUser, Content: t.Message})
	_, _ = e.store.AddMessage(ctx, models.Message{SessionID: t.SessionID, Role: models.RoleAssistant, Content: "echo: " + t.Message})
	return orchestrator.Reply{Response: "echo: " + t.Message, Success: true}
}

type utcLocator struct{}

func (utcLocator) CityLocation(string) *time.Location { return time.UTC }

type testServer struct {
	srv    *Server
	chat   *echoChat
	store  *store.Store
	ledger *ledger.SQLiteLedger
}

func setupServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "server_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	cfg := config.Default()
	cfg.Admin.Password = "s3cret"
	cfg.IPHashSalt = "pepper"
	if mutate != nil {
		mutate(cfg)
	}

	s, err := store.New(conn)
	require.NoError(t, err)
	l, err := ledger.New(conn)
	require.NoError(t, err)
	c, err := cachepkg.New(conn, cfg.Cache, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	chat := &echoChat{store: s}
	srv := New(cfg, Deps{
		Chat:     chat,
		Sessions: s,
		Exporter: export.New(s, utcLocator{}),
		Spend:    spendcap.New(cfg.Spend, l, nil),
		Ledger:   l,
		Cache:    c,
	}, nil)
	return &testServer{srv: srv, chat: chat, store: s, ledger: l}
}

func (ts *testServer) postChat(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	return w
}

func decodeChat(t *testing.T, w *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	ts := setupServer(t, nil)
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestChatSessionLifecycle(t *testing.T) {
	ts := setupServer(t, nil)

	first := decodeChat(t, ts.postChat(t, url.Values{"message": {"Plan Rome"}, "destination": {"Rome"}}))
	require.NotEmpty(t, first.SessionID)
	assert.Equal(t, "echo: Plan Rome", first.Response)
	assert.True(t, first.Success)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, models.RoleUser, first.Messages[0].Role)
	assert.Regexp(t, `^\d{2}:\d{2}$`, first.Messages[0].Timestamp)

	require.Len(t, ts.chat.turns, 1)
	assert.Equal(t, models.TierMid, ts.chat.turns[0].BudgetTier, "tier defaults to mid")
	assert.Equal(t, "Rome", ts.chat.turns[0].Destination)

	second := decodeChat(t, ts.postChat(t, url.Values{
		"message":     {"Add hotels"},
		"session_id":  {first.SessionID},
		"budget_tier": {"budget"},
		"start_date":  {"2024-05-01"},
		"end_date":    {"2024-05-03"},
	}))
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, second.Messages, 4)
	assert.Equal(t, models.TierBudget, ts.chat.turns[1].BudgetTier)
	assert.Equal(t, "2024-05-01", ts.chat.turns[1].StartDate)

	sess, err := ts.store.GetSession(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, HashIP("192.0.2.1", "pepper"), sess.IPHash)
}

func TestChatUnknownSessionStartsNew(t *testing.T) {
	ts := setupServer(t, nil)

	for _, id := range []string{"not-a-uuid", "6f1c1f8e-52a4-4a55-9a43-3f9b8f5c2d10"} {
		resp := decodeChat(t, ts.postChat(t, url.Values{"message": {"hi"}, "session_id": {id}}))
		assert.NotEqual(t, id, resp.SessionID)
		assert.Len(t, resp.Messages, 2, "fresh session for %q", id)
	}
}

func TestChatValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing message", url.Values{}},
		{"message too long", url.Values{"message": {strings.Repeat("a", 1001)}}},
		{"destination too long", url.Values{"message": {"hi"}, "destination": {strings.Repeat("x", 101)}}},
		{"bad tier", url.Values{"message": {"hi"}, "budget_tier": {"luxury"}}},
		{"bad start date", url.Values{"message": {"hi"}, "start_date": {"01/05/2024"}}},
		{"bad end date", url.Values{"message": {"hi"}, "end_date": {"2024-13-01"}}},
		{"end before start", url.Values{"message": {"hi"}, "start_date": {"2024-05-03"}, "end_date": {"2024-05-01"}}},
		{"end equals start", url.Values{"message": {"hi"}, "start_date": {"2024-05-03"}, "end_date": {"2024-05-03"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupServer(t, nil)
			w := ts.postChat(t, tt.form)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"type":"wayfare_error"`)
			assert.Empty(t, ts.chat.turns)
		})
	}
}

func TestChatAcceptsLongestMessage(t *testing.T) {
	ts := setupServer(t, nil)
	decodeChat(t, ts.postChat(t, url.Values{"message": {strings.Repeat("é", 1000)}}))
}

func TestChatRateLimit(t *testing.T) {
	ts := setupServer(t, func(c *config.Config) { c.RateLimit.PerDay = 2 })

	for i := 0; i < 2; i++ {
		decodeChat(t, ts.postChat(t, url.Values{"message": {"hi"}}))
	}
	w := ts.postChat(t, url.Values{"message": {"hi"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Len(t, ts.chat.turns, 2)

	// Another client has its own allowance.
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("message=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w = httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatMethodNotAllowed(t *testing.T) {
	ts := setupServer(t, nil)
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func createItinerary(t *testing.T, s *store.Store) string {
	t.Helper()
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "h")
	require.NoError(t, err)
	start := "09:00:00"
	it, err := s.CreateItinerary(ctx, store.NewItinerary{
		SessionID: sess.ID, City: "Rome", StartDate: "2024-05-01", EndDate: "2024-05-02", BudgetTier: "mid",
		Days: []store.NewDay{
			{DayIndex: 2, Date: "2024-05-02", Items: []store.NewItem{{Type: models.ItemMeal, Notes: "Dinner"}}},
			{DayIndex: 1, Date: "2024-05-01", Items: []store.NewItem{{Type: models.ItemPOI, StartTime: &start, Notes: "Pantheon"}}},
		},
	})
	require.NoError(t, err)
	return it.ID
}

func TestItineraryJSON(t *testing.T) {
	ts := setupServer(t, nil)
	id := createItinerary(t, ts.store)

	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/itineraries/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var doc export.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, id, doc.ID)
	require.Len(t, doc.Days, 2)
	assert.Equal(t, 1, doc.Days[0].DayIndex)
	require.Len(t, doc.Days[0].Items, 1)
	require.NotNil(t, doc.Days[0].Items[0].StartTime)
	assert.Equal(t, "09:00", *doc.Days[0].Items[0].StartTime)
}

func TestItineraryICS(t *testing.T) {
	ts := setupServer(t, nil)
	id := createItinerary(t, ts.store)

	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/itineraries/"+id+".ics", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "DTSTART:20240501T090000Z")
}

func TestItineraryNotFound(t *testing.T) {
	ts := setupServer(t, nil)
	for _, path := range []string{"/api/v1/itineraries/missing", "/api/v1/itineraries/missing.ics"} {
		w := httptest.NewRecorder()
		ts.srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestAdminAuth(t *testing.T) {
	ts := setupServer(t, nil)

	tests := []struct {
		name     string
		user     string
		pass     string
		withAuth bool
		want     int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "s3cret", true, http.StatusUnauthorized},
		{"valid", "admin", "s3cret", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.withAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			ts.srv.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAdminLockedWithoutPassword(t *testing.T) {
	ts := setupServer(t, func(c *config.Config) { c.Admin.Password = "" })
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("admin", "")
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminReport(t *testing.T) {
	ts := setupServer(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := ts.ledger.Record(ctx, models.LedgerEntry{
		Model: "gpt-4", PromptTokens: 1000, CompletionTokens: 500, CostUSD: 0.06,
		MonthKey: models.MonthKey(now), DayKey: models.DayKey(now), CreatedAt: now,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("admin", "s3cret")
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report adminReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.InDelta(t, 0.06, report.Spend.SpentUSD, 1e-9)
	assert.Equal(t, int64(1), report.MonthlyStats.TotalCalls)
	require.Len(t, report.DailyCosts, 1)
	require.Len(t, report.RecentUsage, 1)
	assert.Equal(t, "gpt-4", report.System.Model)
	assert.Equal(t, config.HotelProviderStub, report.System.HotelProvider)
	assert.InDelta(t, 1.0, report.System.CacheTTLHours, 1e-9)
}

func TestHashIP(t *testing.T) {
	a := HashIP("192.0.2.1", "salt")
	assert.Len(t, a, 16)
	assert.Equal(t, a, HashIP("192.0.2.1", "salt"))
	assert.NotEqual(t, a, HashIP("192.0.2.1", "other"))
	assert.NotEqual(t, a, HashIP("192.0.2.2", "salt"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", " 198.51.100.7 ")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestTurnLimiterDisabled(t *testing.T) {
	l := newTurnLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("k"))
	}
	assert.Zero(t, l.clients.ItemCount())
}

func TestTurnLimiterEvictsIdleClients(t *testing.T) {
	l := newTurnLimiter(1, 50*time.Millisecond)
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.clients.ItemCount())

	time.Sleep(100 * time.Millisecond)
	l.clients.DeleteExpired()
	assert.Zero(t, l.clients.ItemCount())
	assert.True(t, l.Allow("a"), "an evicted client starts with a full bucket")
}
