package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/davidbz/liftplan/internal/domain"
)

// HTTPCaller talks to the chat-completions endpoint with hand-built requests.
type HTTPCaller struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCaller creates a new chat-completions HTTP caller.
// Timeouts are applied per attempt through the request context.
func NewHTTPCaller(cfg Config) *HTTPCaller {
	return &HTTPCaller{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Chat-completions request/response structures.
type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []domain.Message `json:"messages"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens"`
	ResponseFormat responseFormat   `json:"response_format"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call sends one chat-completions request and returns the message content.
func (c *HTTPCaller) Call(ctx context.Context, req *ModelRequest) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   req.SchemaName,
				Strict: true,
				Schema: req.Schema,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &NetworkError{Message: "request to provider failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Message: "failed to read provider response", Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if decodeErr := json.Unmarshal(body, &parsed); decodeErr != nil {
		return "", &ParseError{Message: "failed to decode provider response", Content: string(body), Err: decodeErr}
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil || *parsed.Choices[0].Message.Content == "" {
		return "", &ParseError{Message: "provider returned empty content", Content: string(body), Err: nil}
	}

	return *parsed.Choices[0].Message.Content, nil
}

// isTransportError reports failures raised below the HTTP layer.
func isTransportError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}
