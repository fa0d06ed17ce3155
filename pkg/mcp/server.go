// Package mcp serves Wayfare's spend, cache and travel tools to MCP
// clients as JSON-RPC 2.0 over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	"github.com/wayfare-ai/wayfare/pkg/export"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// SpendReporter reports spend against the monthly cap.
type SpendReporter interface {
	CurrentMonth() string
	Status(ctx context.Context, month string) (models.SpendStatus, error)
}

// StatsReader reads ledger aggregates.
type StatsReader interface {
	MonthlyStats(ctx context.Context, month string) (models.MonthlyStats, error)
	DailyCosts(ctx context.Context, since time.Time) ([]models.DailyCost, error)
}

// CacheStatter provides API cache statistics.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// ActionRunner executes raw travel actions.
type ActionRunner interface {
	ExecuteRaw(ctx context.Context, sessionID string, raw []byte) actions.Result
}

// SessionCreator opens the session that owns itineraries finalized over MCP.
type SessionCreator interface {
	CreateSession(ctx context.Context, ipHash string) (models.Session, error)
}

// ItineraryExporter renders a stored itinerary.
type ItineraryExporter interface {
	JSON(ctx context.Context, id string) (export.Document, error)
}

// Deps are the collaborators behind the tools. Nil members disable the
// tools that need them.
type Deps struct {
	Spend    SpendReporter
	Stats    StatsReader
	Cache    CacheStatter
	Actions  ActionRunner
	Sessions SessionCreator
	Exporter ItineraryExporter
}

// Server is a minimal MCP server speaking line-delimited JSON-RPC 2.0.
type Server struct {
	deps    Deps
	version string
	logger  *zap.Logger
}

// New creates an MCP Server.
func New(deps Deps, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, version: version, logger: logger}
}

// Run reads requests from r line by line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.writeResponse(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "wayfare", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		if len(req.ID) == 0 {
			return nil
		}
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultResponse(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}

	s.logger.Debug("mcp tool call", zap.String("tool", params.Name))
	return resultResponse(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) writeResponse(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp marshal", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("mcp write", zap.Error(err))
	}
}
