package completion_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/domain"
)

// providerStub answers chat-completions requests per model.
type providerStub struct {
	mu     sync.Mutex
	bodies []map[string]any
	auth   []string
	handle func(model string) (int, string)
}

func (p *providerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	p.mu.Lock()
	p.bodies = append(p.bodies, body)
	p.auth = append(p.auth, r.Header.Get("Authorization"))
	p.mu.Unlock()

	model, _ := body["model"].(string)
	status, payload := p.handle(model)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func chatReply(content string) string {
	encoded, _ := json.Marshal(content)
	return `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"m",` +
		`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` +
		string(encoded) + `}}]}`
}

func testRequest(model string) *completion.ModelRequest {
	return &completion.ModelRequest{
		Model:       model,
		Messages:    []domain.Message{{Role: domain.RoleSystem, Content: "coach"}, {Role: domain.RoleUser, Content: "go"}},
		Temperature: 0.2,
		MaxTokens:   4000,
		SchemaName:  "answer",
		Schema:      map[string]any{"type": "object"},
	}
}

func TestHTTPCaller_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("should send a json_schema request and return the content", func(t *testing.T) {
		stub := &providerStub{handle: func(string) (int, string) {
			return http.StatusOK, chatReply(`{"title":"x"}`)
		}}
		server := httptest.NewServer(stub)
		defer server.Close()

		caller := completion.NewHTTPCaller(completion.Config{APIKey: "secret", BaseURL: server.URL + "/"})
		content, err := caller.Call(ctx, testRequest("A"))

		require.NoError(t, err)
		require.Equal(t, `{"title":"x"}`, content)
		require.Equal(t, "Bearer secret", stub.auth[0])

		body := stub.bodies[0]
		require.Equal(t, "A", body["model"])
		require.InDelta(t, 0.2, body["temperature"], 1e-9)
		require.InDelta(t, 4000, body["max_tokens"], 1e-9)
		require.Len(t, body["messages"], 2)

		format := body["response_format"].(map[string]any)
		require.Equal(t, "json_schema", format["type"])
		jsonSchema := format["json_schema"].(map[string]any)
		require.Equal(t, "answer", jsonSchema["name"])
		require.Equal(t, true, jsonSchema["strict"])
		require.Equal(t, map[string]any{"type": "object"}, jsonSchema["schema"])
	})

	t.Run("should report non-2xx responses as API errors", func(t *testing.T) {
		server := httptest.NewServer(&providerStub{handle: func(string) (int, string) {
			return http.StatusTooManyRequests, `{"error":"rate limited"}`
		}})
		defer server.Close()

		caller := completion.NewHTTPCaller(completion.Config{APIKey: "k", BaseURL: server.URL})
		_, err := caller.Call(ctx, testRequest("A"))

		var apiErr *completion.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		require.Contains(t, apiErr.Body, "rate limited")
	})

	t.Run("should report undecodable bodies as parse errors", func(t *testing.T) {
		server := httptest.NewServer(&providerStub{handle: func(string) (int, string) {
			return http.StatusOK, "<html>gateway</html>"
		}})
		defer server.Close()

		caller := completion.NewHTTPCaller(completion.Config{APIKey: "k", BaseURL: server.URL})
		_, err := caller.Call(ctx, testRequest("A"))

		var parseErr *completion.ParseError
		require.ErrorAs(t, err, &parseErr)
		require.Equal(t, "<html>gateway</html>", parseErr.Content)
	})

	t.Run("should report missing content as a parse error", func(t *testing.T) {
		server := httptest.NewServer(&providerStub{handle: func(string) (int, string) {
			return http.StatusOK, `{"choices":[{"message":{"content":null}}]}`
		}})
		defer server.Close()

		caller := completion.NewHTTPCaller(completion.Config{APIKey: "k", BaseURL: server.URL})
		_, err := caller.Call(ctx, testRequest("A"))

		require.Equal(t, completion.KindParse, completion.Kind(err))
	})

	t.Run("should report unreachable providers as network errors", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		caller := completion.NewHTTPCaller(completion.Config{APIKey: "k", BaseURL: url})
		_, err := caller.Call(ctx, testRequest("A"))

		require.Equal(t, completion.KindNetwork, completion.Kind(err))
	})
}

func TestClient_FallbackOverHTTP(t *testing.T) {
	stub := &providerStub{handle: func(model string) (int, string) {
		switch model {
		case "A":
			return http.StatusInternalServerError, "upstream exploded"
		case "B":
			return http.StatusOK, chatReply("not json at all")
		default:
			return http.StatusOK, chatReply(`{"title":"full body"}`)
		}
	}}
	server := httptest.NewServer(stub)
	defer server.Close()

	client, err := completion.New(completion.Config{
		APIKey:  "k",
		BaseURL: server.URL,
		Models:  []string{"A", "B", "C"},
	})
	require.NoError(t, err)

	result, err := completion.Generate(context.Background(), client, userMessages, answerSchema)

	require.NoError(t, err)
	require.Equal(t, "full body", result.Data.Title)
	require.Equal(t, "C", result.Model)
	require.True(t, result.FallbackUsed)
	require.Len(t, stub.bodies, 3)
}
