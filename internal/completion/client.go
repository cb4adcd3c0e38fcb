// Package completion obtains schema-valid structured output from a
// chat-completions provider. Models are tried in priority order; any failure
// moves on to the next model and the last failure is returned once the list
// is exhausted.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/schema"
)

const (
	// DefaultTemperature favours structural fidelity over creativity.
	DefaultTemperature = 0.2

	// DefaultMaxTokens bounds the output of a single attempt.
	DefaultMaxTokens = 4000

	transportHTTP = "http"
	transportSDK  = "sdk"
)

// ModelRequest is one attempt against one model.
type ModelRequest struct {
	Model       string
	Messages    []domain.Message
	Temperature float64
	MaxTokens   int
	SchemaName  string
	Schema      map[string]any
}

// Caller sends a ModelRequest and returns the raw message content.
// Implementations report failures as *NetworkError, *APIError or *ParseError.
type Caller interface {
	Call(ctx context.Context, req *ModelRequest) (string, error)
}

// Result is a validated structured completion.
type Result[T any] struct {
	Data         T
	Model        string
	FallbackUsed bool
}

// Client runs structured completions across a model priority list.
type Client struct {
	models         []string
	strictPrefixes []string
	caller         Caller
	attemptTimeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithCaller replaces the transport selected from Config.
func WithCaller(caller Caller) Option {
	return func(c *Client) {
		c.caller = caller
	}
}

// New creates a new structured completion client (DI constructor).
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Message: "AI API key is required"}
	}

	models := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return nil, &ConfigurationError{Message: "at least one model is required"}
	}

	c := &Client{
		models:         models,
		strictPrefixes: cfg.StrictModelPrefixes,
		caller:         nil,
		attemptTimeout: time.Duration(cfg.AttemptTimeout) * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.caller == nil {
		switch cfg.Transport {
		case "", transportHTTP:
			c.caller = NewHTTPCaller(cfg)
		case transportSDK:
			c.caller = NewSDKCaller(cfg)
		default:
			return nil, &ConfigurationError{Message: fmt.Sprintf("unknown transport %q", cfg.Transport)}
		}
	}

	return c, nil
}

// Models returns a copy of the model priority list.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// CallOption customises a single completion.
type CallOption func(*callOptions)

type callOptions struct {
	temperature float64
	maxTokens   int
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *callOptions) {
		o.temperature = temperature
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *callOptions) {
		o.maxTokens = maxTokens
	}
}

// Generate runs a structured completion and decodes the result into T.
func Generate[T any](
	ctx context.Context,
	c *Client,
	messages []domain.Message,
	s *schema.Schema[T],
	opts ...CallOption,
) (*Result[T], error) {
	var data T

	model, fallbackUsed, err := c.complete(ctx, messages, s, func(content string) error {
		decoded, decodeErr := s.Decode([]byte(content))
		if decodeErr != nil {
			return decodeErr
		}
		data = decoded
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &Result[T]{
		Data:         data,
		Model:        model,
		FallbackUsed: fallbackUsed,
	}, nil
}

// complete walks the model list until decode accepts a response.
func (c *Client) complete(
	ctx context.Context,
	messages []domain.Message,
	desc schema.Descriptor,
	decode func(content string) error,
	opts ...CallOption,
) (string, bool, error) {
	if len(messages) == 0 {
		return "", false, &ParseError{Message: "Messages array cannot be empty", Content: "", Err: nil}
	}

	options := callOptions{
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&options)
	}

	var lastErr error
	for i, model := range c.models {
		attemptCtx := observability.WithModel(ctx, model)
		logger := observability.FromContext(attemptCtx)

		err := c.attempt(attemptCtx, model, messages, desc, decode, options)
		if err == nil {
			if i > 0 {
				logger.Info("structured completion succeeded on fallback model",
					observability.Bool("fallback_used", true),
					observability.Int("attempt", i+1),
					observability.String("primary_model", c.models[0]))
			} else {
				logger.Info("structured completion succeeded")
			}
			return model, i > 0, nil
		}

		lastErr = err
		logger.Warn("structured completion attempt failed",
			observability.String("error_kind", Kind(err)),
			observability.Int("attempt", i+1),
			observability.Int("models", len(c.models)),
			observability.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return "", false, normalizeError(lastErr)
}

func (c *Client) attempt(
	ctx context.Context,
	model string,
	messages []domain.Message,
	desc schema.Descriptor,
	decode func(content string) error,
	options callOptions,
) error {
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	content, err := c.caller.Call(ctx, &ModelRequest{
		Model:       model,
		Messages:    messages,
		Temperature: options.temperature,
		MaxTokens:   options.maxTokens,
		SchemaName:  desc.Name(),
		Schema:      c.prepareSchema(desc, model),
	})
	if err != nil {
		return err
	}

	if decodeErr := decode(content); decodeErr != nil {
		var validationErr *schema.ValidationError
		message := "response is not valid JSON"
		if errors.As(decodeErr, &validationErr) {
			message = "response does not match schema"
		}
		return &ParseError{Message: message, Content: content, Err: decodeErr}
	}

	return nil
}
