// Package openai adapts the OpenAI-compatible chat and embeddings endpoints
// behind the model and embedder ports. All calls run through the shared
// resilience executor so a failing endpoint trips one circuit per operation.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
	"github.com/cosyhq/regcheck/internal/infrastructure/resilience"
	"github.com/cosyhq/regcheck/internal/observability/metrics"
)

type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
}

type Client struct {
	api            openai.Client
	embeddingModel string
	executor       *resilience.Executor

	service string
	metrics *metrics.HTTPServerMetrics
}

func NewClient(cfg Config, executor *resilience.Executor) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}

	return &Client{
		api:            openai.NewClient(opts...),
		embeddingModel: embeddingModel,
		executor:       executor,
	}, nil
}

// WithMetrics enables per-call accounting. Safe to skip in tests.
func (c *Client) WithMetrics(service string, m *metrics.HTTPServerMetrics) *Client {
	c.service = service
	c.metrics = m
	return c
}

// Complete runs one chat completion. Completions are never retried: a
// duplicate generation doubles token spend for an answer the caller already
// gave up on. The circuit breaker still counts transport failures.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var content string
	err := c.executor.Execute(ctx, "chat_completion", func(ctx context.Context) error {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("openai chat: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, completionClassifier)
	c.recordCall("chat", err)
	if err != nil {
		return "", domain.WrapError(domain.ErrModelUnavailable, "chat completion", err)
	}
	return content, nil
}

// EmbedQuery embeds one query string. Embeddings are cheap and idempotent,
// so transient failures are retried.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: c.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}

	var vector []float32
	err := c.executor.Execute(ctx, "embedding", func(ctx context.Context) error {
		resp, err := c.api.Embeddings.New(ctx, params)
		if err != nil {
			return fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("no embeddings in response")
		}
		raw := resp.Data[0].Embedding
		vector = make([]float32, len(raw))
		for i, v := range raw {
			vector[i] = float32(v)
		}
		return nil
	}, embeddingClassifier)
	c.recordCall("embedding", err)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelUnavailable, "embed query", err)
	}
	return vector, nil
}

func completionClassifier(err error) resilience.ErrorClassification {
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: isInfrastructureError(err),
	}
}

func embeddingClassifier(err error) resilience.ErrorClassification {
	transient := isInfrastructureError(err)
	return resilience.ErrorClassification{
		Retryable:     transient,
		RecordFailure: transient,
	}
}

// isInfrastructureError separates endpoint trouble from caller mistakes.
// 4xx responses other than 429 mean the request itself is bad and must not
// trip the breaker.
func isInfrastructureError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}

func (c *Client) recordCall(purpose string, err error) {
	if c.metrics != nil {
		c.metrics.RecordLLMCall(c.service, purpose, err)
	}
}
