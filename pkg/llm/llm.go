// Package llm wraps the chat-completions API behind a small interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/metrics"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// ErrNoChoices is returned when the upstream answers without a choice.
var ErrNoChoices = errors.New("completion has no choices")

// Message is one chat message.
type Message struct {
	Role    models.Role
	Content string
}

// Tool is a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a function call requested by the model. Arguments is the raw
// JSON argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Request is a chat-completions request. Tools may be empty for an
// un-tooled call.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// Response is the first choice of a completion plus usage.
type Response struct {
	Model            string
	Content          string
	ToolCalls        []ToolCall
	PromptTokens     int
	CompletionTokens int
}

// Client completes chat requests.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// OpenAIClient is a Client backed by the OpenAI chat-completions API.
type OpenAIClient struct {
	client openai.Client
	logger *zap.Logger
}

// NewOpenAI creates an OpenAIClient. Retries are disabled; a failed call
// surfaces immediately.
func NewOpenAI(cfg config.LLMConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), logger: logger}
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: toMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	metrics.LLMRequestDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	metrics.LLMRequestsTotal.WithLabelValues(req.Model, metrics.Status(err)).Inc()
	if err != nil {
		c.logger.Error("chat completion failed", zap.String("model", req.Model), zap.Error(err))
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrNoChoices
	}

	msg := completion.Choices[0].Message
	resp := &Response{
		Model:            completion.Model,
		Content:          msg.Content,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	metrics.LLMTokensUsed.WithLabelValues(req.Model, "prompt").Add(float64(resp.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(req.Model, "completion").Add(float64(resp.CompletionTokens))
	c.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens),
		zap.Int("tool_calls", len(resp.ToolCalls)),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func toMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toTools(tools []Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}
