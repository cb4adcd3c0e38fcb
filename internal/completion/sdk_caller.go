package completion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/liftplan/internal/domain"
)

// SDKCaller sends chat completions through the official openai-go client.
// SDK retries are disabled: the fallback chain is the retry policy.
type SDKCaller struct {
	client openai.Client
}

type exchangeKey struct{}

// exchange records what the transport saw for one call, so SDK errors can be
// mapped onto the error taxonomy.
type exchange struct {
	transportErr error
	statusCode   int
	body         []byte
}

// NewSDKCaller creates a new openai-go backed caller.
func NewSDKCaller(cfg Config) *SDKCaller {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithMiddleware(recordExchange),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	return &SDKCaller{
		client: openai.NewClient(opts...),
	}
}

// recordExchange captures transport errors and the raw response body.
func recordExchange(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	resp, err := next(req)

	ex, ok := req.Context().Value(exchangeKey{}).(*exchange)
	if !ok {
		return resp, err
	}

	if err != nil {
		ex.transportErr = err
		return resp, err
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		ex.transportErr = readErr
		return nil, readErr
	}

	ex.statusCode = resp.StatusCode
	ex.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return resp, nil
}

// Call sends one chat completion and returns the message content.
func (c *SDKCaller) Call(ctx context.Context, req *ModelRequest) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}

	ex := &exchange{}
	ctx = context.WithValue(ctx, exchangeKey{}, ex)

	resp, err := c.client.Chat.Completions.New(ctx, toSDKParams(req))
	if err != nil {
		var apiErr *openai.Error
		switch {
		case ex.transportErr != nil:
			return "", &NetworkError{Message: "request to provider failed", Err: ex.transportErr}
		case errors.As(err, &apiErr):
			return "", &APIError{StatusCode: apiErr.StatusCode, Body: string(ex.body)}
		case ex.statusCode >= http.StatusOK && ex.statusCode < http.StatusMultipleChoices:
			return "", &ParseError{Message: "failed to decode provider response", Content: string(ex.body), Err: err}
		default:
			return "", &NetworkError{Message: "request to provider failed", Err: err}
		}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ParseError{Message: "provider returned empty content", Content: string(ex.body), Err: nil}
	}

	return resp.Choices[0].Message.Content, nil
}

// toSDKParams converts a ModelRequest to SDK ChatCompletionNewParams.
func toSDKParams(req *ModelRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleAssistant:
			messages[i] = openai.AssistantMessage(msg.Content)
		case domain.RoleSystem:
			messages[i] = openai.SystemMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	//nolint:exhaustruct // OpenAI SDK struct has many optional fields
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Strict: openai.Bool(true),
					Schema: req.Schema,
				},
			},
		},
	}
}
