// Package orchestrator runs one chat turn: it checks the spend cap, asks the
// model for a reply, executes any travel actions the model requests and
// falls back to a second model call when searches come back empty.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/actions"
	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/llm"
	"github.com/wayfare-ai/wayfare/pkg/metrics"
	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/tokens"
)

const (
	historyLimit             = 10
	continuationHistoryLimit = 8
)

// Replies used when the model cannot be reached.
const (
	msgLLMError          = "I encountered an error processing your request. Please try again."
	msgUnexpectedError   = "I encountered an unexpected error. Please try again."
	msgContinuationError = "I'm ready to create a great itinerary for you! Please provide your travel dates and I'll design a detailed plan."
)

// Gate is the spend-cap policy consulted before and after model calls.
type Gate interface {
	IsExceeded(ctx context.Context, month string) (bool, error)
	RecordCall(ctx context.Context, rec models.CallRecord) (models.LedgerEntry, error)
	FallbackMessage(ctx context.Context) (string, error)
}

// MessageStore persists the conversation.
type MessageStore interface {
	AddMessage(ctx context.Context, m models.Message) (models.Message, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

// ToolExecutor runs raw tool-call arguments.
type ToolExecutor interface {
	ExecuteRaw(ctx context.Context, sessionID string, raw []byte) actions.Result
}

// Turn is one user chat message with optional trip fields.
type Turn struct {
	SessionID   string
	Message     string
	Destination string
	StartDate   string
	EndDate     string
	BudgetTier  models.BudgetTier
}

// Reply is the outcome of a Turn.
type Reply struct {
	Response    string `json:"response"`
	Success     bool   `json:"success"`
	SpendCapped bool   `json:"spend_capped"`
	ItineraryID string `json:"itinerary_id,omitempty"`
}

// Orchestrator drives chat turns.
type Orchestrator struct {
	gate        Gate
	messages    MessageStore
	client      llm.Client
	exec        ToolExecutor
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// New creates an Orchestrator.
func New(cfg config.LLMConfig, gate Gate, messages MessageStore, client llm.Client, exec ToolExecutor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		gate:        gate,
		messages:    messages,
		client:      client,
		exec:        exec,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// outcome accumulates what a turn produced across model calls.
type outcome struct {
	content          string
	promptTokens     int
	completionTokens int
	costUSD          float64
	itineraryID      string
}

// errLLM marks failures of the primary model call or its ledger write.
var errLLM = errors.New("llm call failed")

// ProcessChatMessage handles one turn. It never returns an error; failures
// are reported in the Reply and stored as assistant messages.
func (o *Orchestrator) ProcessChatMessage(ctx context.Context, t Turn) Reply {
	reply, err := o.process(ctx, t)
	if err == nil {
		return reply
	}

	msg := msgUnexpectedError
	if errors.Is(err, errLLM) {
		msg = msgLLMError
	}
	o.logger.Error("chat turn failed", zap.String("session_id", t.SessionID), zap.Error(err))
	out := tokens.Estimate(msg)
	if _, serr := o.messages.AddMessage(ctx, models.Message{
		SessionID: t.SessionID, Role: models.RoleAssistant, Content: msg, TokensOut: &out,
	}); serr != nil {
		o.logger.Warn("store error reply", zap.Error(serr))
	}
	return Reply{Response: msg}
}

func (o *Orchestrator) process(ctx context.Context, t Turn) (Reply, error) {
	capped, err := o.gate.IsExceeded(ctx, "")
	if err != nil {
		return Reply{}, fmt.Errorf("check spend cap: %w", err)
	}
	if capped {
		return o.capped(ctx, t)
	}

	in := tokens.Estimate(t.Message)
	if _, err := o.messages.AddMessage(ctx, models.Message{
		SessionID: t.SessionID, Role: models.RoleUser, Content: t.Message, TokensIn: &in,
	}); err != nil {
		return Reply{}, fmt.Errorf("store user message: %w", err)
	}

	msgs, err := o.buildContext(ctx, t)
	if err != nil {
		return Reply{}, err
	}

	res, err := o.primary(ctx, t, msgs)
	if err != nil {
		return Reply{}, err
	}

	if _, err := o.messages.AddMessage(ctx, models.Message{
		SessionID: t.SessionID,
		Role:      models.RoleAssistant,
		Content:   res.content,
		TokensIn:  &res.promptTokens,
		TokensOut: &res.completionTokens,
		CostUSD:   &res.costUSD,
	}); err != nil {
		return Reply{}, fmt.Errorf("store assistant message: %w", err)
	}
	return Reply{Response: res.content, Success: true, ItineraryID: res.itineraryID}, nil
}

func (o *Orchestrator) capped(ctx context.Context, t Turn) (Reply, error) {
	fallback, err := o.gate.FallbackMessage(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("build fallback: %w", err)
	}
	in := tokens.Estimate(t.Message)
	if _, err := o.messages.AddMessage(ctx, models.Message{
		SessionID: t.SessionID, Role: models.RoleUser, Content: t.Message, TokensIn: &in,
	}); err != nil {
		return Reply{}, fmt.Errorf("store user message: %w", err)
	}
	out := tokens.Estimate(fallback)
	if _, err := o.messages.AddMessage(ctx, models.Message{
		SessionID: t.SessionID, Role: models.RoleAssistant, Content: fallback, TokensOut: &out,
	}); err != nil {
		return Reply{}, fmt.Errorf("store fallback message: %w", err)
	}
	metrics.SpendCappedTurns.Inc()
	o.logger.Info("turn refused by spend cap", zap.String("session_id", t.SessionID))
	return Reply{Response: fallback, SpendCapped: true}, nil
}

// buildContext assembles the primary call's messages. The stored history
// already holds the new user message, which is appended once more at the
// end.
func (o *Orchestrator) buildContext(ctx context.Context, t Turn) ([]llm.Message, error) {
	msgs := []llm.Message{{Role: models.RoleSystem, Content: SystemPrompt()}}
	if block := contextBlock(t); block != "" {
		msgs = append(msgs, llm.Message{Role: models.RoleSystem, Content: block})
	}
	history, err := o.history(ctx, t.SessionID, historyLimit)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, history...)
	return append(msgs, llm.Message{Role: models.RoleUser, Content: t.Message}), nil
}

// history returns the last limit user and assistant messages, oldest first.
func (o *Orchestrator) history(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	recent, err := o.messages.RecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]llm.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role == models.RoleUser || m.Role == models.RoleAssistant {
			out = append(out, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out, nil
}

func (o *Orchestrator) complete(ctx context.Context, sessionID string, msgs []llm.Message, tools []llm.Tool) (*llm.Response, models.LedgerEntry, error) {
	resp, err := o.client.Complete(ctx, llm.Request{
		Model:       o.model,
		Messages:    msgs,
		Tools:       tools,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return nil, models.LedgerEntry{}, err
	}
	entry, err := o.gate.RecordCall(ctx, models.CallRecord{
		SessionID:        sessionID,
		Model:            o.model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	})
	if err != nil {
		return nil, models.LedgerEntry{}, err
	}
	return resp, entry, nil
}

func (o *Orchestrator) primary(ctx context.Context, t Turn, msgs []llm.Message) (outcome, error) {
	tool := llm.Tool{Name: actions.ToolName, Description: actions.ToolDescription, Parameters: actions.ToolParameters()}
	resp, entry, err := o.complete(ctx, t.SessionID, msgs, []llm.Tool{tool})
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %w", errLLM, err)
	}
	res := outcome{
		content:          resp.Content,
		promptTokens:     resp.PromptTokens,
		completionTokens: resp.CompletionTokens,
		costUSD:          entry.CostUSD,
	}

	if len(resp.ToolCalls) > 0 {
		return o.handleToolCalls(ctx, t, resp.ToolCalls, res), nil
	}

	calls, preface := ParsePseudoToolCalls(resp.Content)
	if len(calls) == 0 {
		return res, nil
	}
	o.logger.Debug("pseudo tool calls in reply", zap.Int("count", len(calls)))
	res = o.handleToolCalls(ctx, t, calls, res)
	if p := strings.TrimSpace(preface); p != "" {
		if res.content != "" {
			p += "\n\n" + res.content
		}
		res.content = p
	}
	return res, nil
}

func (o *Orchestrator) handleToolCalls(ctx context.Context, t Turn, calls []llm.ToolCall, res outcome) outcome {
	var results []actions.Result
	for _, call := range calls {
		if call.Name != actions.ToolName {
			o.logger.Warn("ignoring unknown tool", zap.String("tool", call.Name))
			continue
		}
		r := o.exec.ExecuteRaw(ctx, t.SessionID, []byte(call.Arguments))
		results = append(results, r)
		if id := r.ItineraryID(); id != "" {
			res.itineraryID = id
		}
	}

	poiEmpty := emptySearch(results, actions.KindSearchPOIs)
	hotelEmpty := emptySearch(results, actions.KindSearchHotels)
	created := res.itineraryID != ""

	res.content = ToolResponse(results)
	if res.content != "" && (!(poiEmpty || hotelEmpty) || created) {
		return res
	}

	o.logger.Info("searches came back empty, continuing without tools", zap.String("session_id", t.SessionID))
	text, err := o.continuation(ctx, t, ToolSummary(results), &res)
	if err != nil {
		o.logger.Error("continuation call failed", zap.String("session_id", t.SessionID), zap.Error(err))
		res.content = msgContinuationError
		return res
	}
	res.content = text
	return res
}

// continuation asks the model to answer from its own knowledge after the
// tool summary. Usage is added to res.
func (o *Orchestrator) continuation(ctx context.Context, t Turn, summary string, res *outcome) (string, error) {
	msgs := []llm.Message{{Role: models.RoleSystem, Content: SystemPrompt()}}
	if block := contextBlock(t); block != "" {
		msgs = append(msgs, llm.Message{Role: models.RoleSystem, Content: block})
	}
	msgs = append(msgs, llm.Message{Role: models.RoleSystem, Content: "Tool results: " + summary})
	history, err := o.history(ctx, t.SessionID, continuationHistoryLimit)
	if err != nil {
		return "", err
	}
	msgs = append(msgs, history...)

	resp, entry, err := o.complete(ctx, t.SessionID, msgs, nil)
	if err != nil {
		return "", err
	}
	res.promptTokens += resp.PromptTokens
	res.completionTokens += resp.CompletionTokens
	res.costUSD += entry.CostUSD
	return resp.Content, nil
}
