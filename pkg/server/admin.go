package server

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/models"
)

const (
	adminDailyDays   = 30
	adminRecentLimit = 20
)

type systemInfo struct {
	MonthlyCapUSD float64 `json:"monthly_cap_usd"`
	Model         string  `json:"openai_model"`
	HotelProvider string  `json:"hotel_provider"`
	CacheTTLHours float64 `json:"cache_ttl_hours"`
}

type adminReport struct {
	Spend        models.SpendStatus   `json:"spend"`
	MonthlyStats models.MonthlyStats  `json:"monthly_stats"`
	DailyCosts   []models.DailyCost   `json:"daily_costs"`
	RecentUsage  []models.LedgerEntry `json:"recent_usage"`
	Cache        models.CacheStats    `json:"cache"`
	System       systemInfo           `json:"system"`
}

// requireAdmin guards next with HTTP basic auth. An empty admin password
// locks the endpoint.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		want := s.cfg.Admin
		if !ok || want.Password == "" ||
			subtle.ConstantTimeCompare([]byte(user), []byte(want.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(want.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="wayfare admin"`)
			writeJSONError(w, http.StatusUnauthorized, "invalid admin credentials")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := s.deps.Spend.CurrentMonth()

	report := adminReport{
		System: systemInfo{
			MonthlyCapUSD: s.cfg.Spend.MonthlyCapUSD,
			Model:         s.cfg.LLM.Model,
			HotelProvider: s.cfg.Hotels.Provider,
			CacheTTLHours: s.cfg.Cache.TTL.Hours(),
		},
	}

	var err error
	if report.Spend, err = s.deps.Spend.Status(ctx, month); err != nil {
		s.adminError(w, "spend status", err)
		return
	}
	if report.MonthlyStats, err = s.deps.Ledger.MonthlyStats(ctx, month); err != nil {
		s.adminError(w, "monthly stats", err)
		return
	}
	since := s.now().UTC().AddDate(0, 0, -adminDailyDays)
	if report.DailyCosts, err = s.deps.Ledger.DailyCosts(ctx, since); err != nil {
		s.adminError(w, "daily costs", err)
		return
	}
	if report.RecentUsage, err = s.deps.Ledger.Recent(ctx, adminRecentLimit); err != nil {
		s.adminError(w, "recent usage", err)
		return
	}
	if report.Cache, err = s.deps.Cache.Stats(ctx); err != nil {
		s.adminError(w, "cache stats", err)
		return
	}
	if report.DailyCosts == nil {
		report.DailyCosts = []models.DailyCost{}
	}
	if report.RecentUsage == nil {
		report.RecentUsage = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) adminError(w http.ResponseWriter, what string, err error) {
	s.logger.Error("admin report", zap.String("section", what), zap.Error(err))
	writeJSONError(w, http.StatusInternalServerError, "internal server error")
}
