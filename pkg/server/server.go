// Package server exposes the chat, itinerary export and admin endpoints
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/export"
	"github.com/wayfare-ai/wayfare/pkg/ledger"
	"github.com/wayfare-ai/wayfare/pkg/metrics"
	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/orchestrator"
)

// ChatProcessor runs one chat turn.
type ChatProcessor interface {
	ProcessChatMessage(ctx context.Context, t orchestrator.Turn) orchestrator.Reply
}

// SessionStore creates and reads chat sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, ipHash string) (models.Session, error)
	GetSession(ctx context.Context, id string) (models.Session, error)
	Messages(ctx context.Context, sessionID string) ([]models.Message, error)
}

// ItineraryExporter renders stored itineraries.
type ItineraryExporter interface {
	JSON(ctx context.Context, id string) (export.Document, error)
	ICS(ctx context.Context, id string) (string, error)
}

// SpendReporter reports spend against the monthly cap.
type SpendReporter interface {
	CurrentMonth() string
	Status(ctx context.Context, month string) (models.SpendStatus, error)
}

// CacheReporter reports API cache usage.
type CacheReporter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// Deps are the collaborators the HTTP handlers call into.
type Deps struct {
	Chat     ChatProcessor
	Sessions SessionStore
	Exporter ItineraryExporter
	Spend    SpendReporter
	Ledger   ledger.Ledger
	Cache    CacheReporter
}

// Server is the Wayfare HTTP server.
type Server struct {
	cfg     *config.Config
	deps    Deps
	limiter *turnLimiter
	router  *mux.Router
	handler http.Handler
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		limiter: newTurnLimiter(cfg.RateLimit.PerDay, limiterIdleTTL),
		router:  mux.NewRouter(),
		logger:  logger,
		now:     time.Now,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/admin", s.requireAdmin(s.handleAdmin)).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	// The .ics route must be registered first: {id} would also match "x.ics".
	api.HandleFunc("/itineraries/{id}.ics", s.handleItineraryICS).Methods(http.MethodGet)
	api.HandleFunc("/itineraries/{id}", s.handleItineraryJSON).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.Use(s.logRequests)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("wayfare listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.code),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"wayfare_error","code":%d}}`, message, code)
}
