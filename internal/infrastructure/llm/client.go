package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/outfitter/backend/internal/domain"
	"github.com/outfitter/backend/internal/metrics"
)

// statusOverloaded is returned by some OpenAI-compatible gateways when the model is overloaded
const statusOverloaded = 529

// Client calls an OpenAI-compatible chat completion API for classification and generation.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the classification service settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewClient creates a classification client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.Named("llm"),
	}
}

// Generate implements domain.Generator. The model is asked for a JSON object that
// follows req.Schema; the raw text is returned for the caller to parse strictly.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	prompt := req.Instruction
	if req.Schema != "" {
		prompt += "\n\nRespond with a single JSON object matching this schema and nothing else:\n" + req.Schema
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.ImageURLs) == 0 {
		msg.Content = prompt
	} else {
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
		for _, u := range req.ImageURLs {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: u, Detail: openai.ImageURLDetailLow},
			})
		}
		msg.MultiContent = parts
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{msg},
	}
	if req.Schema != "" {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	metrics.RemoteCallDuration.WithLabelValues("llm", req.Operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues("llm", req.Operation, "error").Inc()
		mapped := classifyAPIError(err)
		c.logger.Warn("completion failed", zap.String("operation", req.Operation), zap.Error(mapped))
		return "", mapped
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.RemoteCallsTotal.WithLabelValues("llm", req.Operation, "error").Inc()
		return "", fmt.Errorf("%w: empty completion", domain.ErrParse)
	}

	metrics.RemoteCallsTotal.WithLabelValues("llm", req.Operation, "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

// classifyAPIError wraps err with ErrTransientRemote for rate-limit and overload
// signals and with ErrTerminalRemote otherwise.
func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTerminalRemote, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isTransientStatus(apiErr.HTTPStatusCode) || isTransientMessage(apiErr.Message) {
			return fmt.Errorf("%w: api error %d: %s", domain.ErrTransientRemote, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w: api error %d: %s", domain.ErrTerminalRemote, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if isTransientStatus(reqErr.HTTPStatusCode) || isTransientMessage(string(reqErr.Body)) {
			return fmt.Errorf("%w: request error %d", domain.ErrTransientRemote, reqErr.HTTPStatusCode)
		}
		return fmt.Errorf("%w: request error %d: %s", domain.ErrTerminalRemote, reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	if isTransientMessage(err.Error()) {
		return fmt.Errorf("%w: %v", domain.ErrTransientRemote, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrTerminalRemote, err)
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable || code == statusOverloaded
}

func isTransientMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "rate limit") ||
		strings.Contains(m, "overloaded") ||
		strings.Contains(m, "resource_exhausted") ||
		strings.Contains(m, "too many requests")
}
