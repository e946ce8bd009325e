// Package ai provides the chat-completion collaborator used when no
// capability matches the user's input. The client speaks the
// OpenAI-compatible chat completions protocol, which most hosted and local
// model servers accept.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skillwire/skillwire/core"
	"github.com/skillwire/skillwire/resilience"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements core.AIClient against an OpenAI-compatible endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	temp       float32
	httpClient *http.Client
	retry      *resilience.RetryConfig
	logger     core.Logger
}

// Option configures the client.
type Option func(*Client)

// WithModel sets the default model used when options omit one.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens sets the default completion token budget.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Client) { c.temp = t }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry replaces the transient-failure retry policy.
func WithRetry(config *resilience.RetryConfig) Option {
	return func(c *Client) {
		if config != nil {
			c.retry = config
		}
	}
}

// NewClient creates a chat client. Requests propagate trace context through
// the instrumented transport.
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     "gpt-4o-mini",
		maxTokens: 1024,
		temp:      0.7,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:  resilience.DefaultRetryConfig(),
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []core.ChatMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message core.ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat sends the ordered conversation to the completion endpoint and
// returns the assistant's reply. Transient failures (5xx, rate limits,
// network errors) are retried with backoff.
func (c *Client) Chat(ctx context.Context, messages []core.ChatMessage, options *core.AIOptions) (*core.AIResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("chat client: API key not configured: %w", core.ErrMissingConfiguration)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("chat client: empty conversation: %w", core.ErrInvalidConfiguration)
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	}
	if options != nil {
		if options.Model != "" {
			req.Model = options.Model
		}
		if options.MaxTokens > 0 {
			req.MaxTokens = options.MaxTokens
		}
		if options.Temperature > 0 {
			req.Temperature = options.Temperature
		}
		if options.SystemPrompt != "" {
			req.Messages = append([]core.ChatMessage{{Role: "system", Content: options.SystemPrompt}}, messages...)
		}
	}

	start := time.Now()
	c.logger.Debug("Sending chat request", map[string]interface{}{
		"operation": "chat_request",
		"model":     req.Model,
		"messages":  len(req.Messages),
	})

	var response *core.AIResponse
	var permanent error
	err := resilience.Retry(ctx, c.retry, func() error {
		resp, err := c.send(ctx, &req)
		if err != nil {
			if !core.IsRetryable(err) {
				// Permanent failure; returning nil stops the retry loop.
				permanent = err
				return nil
			}
			return err
		}
		response = resp
		return nil
	})
	if err == nil && permanent != nil {
		err = permanent
	}
	if err != nil {
		c.logger.Error("Chat request failed", map[string]interface{}{
			"operation": "chat_request",
			"model":     req.Model,
			"error":     err.Error(),
		})
		return nil, err
	}

	c.logger.Info("Chat request completed", map[string]interface{}{
		"operation":    "chat_request",
		"model":        response.Model,
		"total_tokens": response.Usage.TotalTokens,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return response, nil
}

func (c *Client) send(ctx context.Context, req *chatRequest) (*core.AIResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w: %v", core.ErrConnectionFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %v", core.ErrConnectionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat response contained no choices: %w", core.ErrRequestFailed)
	}

	return &core.AIResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// apiError classifies HTTP failures so the retry policy only hammers on
// transient ones. 429 and 5xx wrap core.ErrConnectionFailed (retryable);
// everything else wraps core.ErrRequestFailed.
func (c *Client) apiError(status int, body []byte) error {
	var parsed chatResponse
	detail := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		detail = parsed.Error.Message
	}
	if detail == "" {
		detail = string(body)
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("chat API status %d: %s: %w", status, detail, core.ErrConnectionFailed)
	}
	return fmt.Errorf("chat API status %d: %s: %w", status, detail, core.ErrRequestFailed)
}
