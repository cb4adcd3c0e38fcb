package completion_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/liftplan/internal/completion"
	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/schema"
)

type answer struct {
	Title string `json:"title"           validate:"required"`
	Note  string `json:"note,omitempty"`
}

// scriptedCaller replies per model and records every request.
type scriptedCaller struct {
	mu       sync.Mutex
	replies  map[string]func(ctx context.Context) (string, error)
	requests []*completion.ModelRequest
}

func newScriptedCaller() *scriptedCaller {
	return &scriptedCaller{
		replies: make(map[string]func(ctx context.Context) (string, error)),
	}
}

func (s *scriptedCaller) reply(model, content string, err error) *scriptedCaller {
	s.replies[model] = func(context.Context) (string, error) { return content, err }
	return s
}

func (s *scriptedCaller) Call(ctx context.Context, req *completion.ModelRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn, ok := s.replies[req.Model]
	s.mu.Unlock()

	if !ok {
		return "", &completion.APIError{StatusCode: 404, Body: "unknown model"}
	}
	return fn(ctx)
}

func (s *scriptedCaller) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.Model)
	}
	return out
}

func newClient(t *testing.T, caller completion.Caller, models ...string) *completion.Client {
	t.Helper()

	client, err := completion.New(completion.Config{
		APIKey:              "test-key",
		Models:              models,
		StrictModelPrefixes: []string{"openai/"},
	}, completion.WithCaller(caller))
	require.NoError(t, err)

	return client
}

var (
	answerSchema = schema.MustNew[answer]("answer")
	userMessages = []domain.Message{{Role: domain.RoleUser, Content: "plan please"}}
)

func TestNew(t *testing.T) {
	t.Run("should reject a missing API key", func(t *testing.T) {
		client, err := completion.New(completion.Config{APIKey: "", Models: []string{"A"}})

		var cfgErr *completion.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Nil(t, client)
	})

	t.Run("should reject a blank API key", func(t *testing.T) {
		_, err := completion.New(completion.Config{APIKey: "   ", Models: []string{"A"}})

		require.Equal(t, completion.KindConfiguration, completion.Kind(err))
	})

	t.Run("should reject an empty model list", func(t *testing.T) {
		_, err := completion.New(completion.Config{APIKey: "k", Models: []string{" ", ""}})

		require.Equal(t, completion.KindConfiguration, completion.Kind(err))
	})

	t.Run("should reject an unknown transport", func(t *testing.T) {
		_, err := completion.New(completion.Config{APIKey: "k", Models: []string{"A"}, Transport: "carrier-pigeon"})

		require.Equal(t, completion.KindConfiguration, completion.Kind(err))
	})

	t.Run("should build both transports", func(t *testing.T) {
		for _, transport := range []string{"", "http", "sdk"} {
			client, err := completion.New(completion.Config{APIKey: "k", Models: []string{"A"}, Transport: transport})
			require.NoError(t, err)
			require.Equal(t, []string{"A"}, client.Models())
		}
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("should fail without network call when messages are empty", func(t *testing.T) {
		caller := newScriptedCaller().reply("A", `{"title":"x"}`, nil)
		client := newClient(t, caller, "A", "B")

		result, err := completion.Generate(ctx, client, nil, answerSchema)

		var parseErr *completion.ParseError
		require.ErrorAs(t, err, &parseErr)
		require.Contains(t, err.Error(), "Messages array cannot be empty")
		require.Nil(t, result)
		require.Empty(t, caller.models())
	})

	t.Run("should return the primary model result", func(t *testing.T) {
		caller := newScriptedCaller().reply("A", `{"title":"push day"}`, nil)
		client := newClient(t, caller, "A", "B")

		result, err := completion.Generate(ctx, client, userMessages, answerSchema)

		require.NoError(t, err)
		require.Equal(t, "push day", result.Data.Title)
		require.Equal(t, "A", result.Model)
		require.False(t, result.FallbackUsed)
		require.Equal(t, []string{"A"}, caller.models())
	})

	t.Run("should fall back to the next model", func(t *testing.T) {
		caller := newScriptedCaller().
			reply("A", "", &completion.APIError{StatusCode: 503, Body: "overloaded"}).
			reply("B", `{"title":"pull day"}`, nil)
		client := newClient(t, caller, "A", "B")

		result, err := completion.Generate(ctx, client, userMessages, answerSchema)

		require.NoError(t, err)
		require.Equal(t, "B", result.Model)
		require.True(t, result.FallbackUsed)
		require.Equal(t, []string{"A", "B"}, caller.models())
	})

	t.Run("should fall back when content fails validation", func(t *testing.T) {
		caller := newScriptedCaller().
			reply("A", `{"title":""}`, nil).
			reply("B", `{"title":"legs"}`, nil)
		client := newClient(t, caller, "A", "B")

		result, err := completion.Generate(ctx, client, userMessages, answerSchema)

		require.NoError(t, err)
		require.Equal(t, "B", result.Model)
		require.True(t, result.FallbackUsed)
	})

	t.Run("should send default options", func(t *testing.T) {
		caller := newScriptedCaller().reply("A", `{"title":"x"}`, nil)
		client := newClient(t, caller, "A")

		_, err := completion.Generate(ctx, client, userMessages, answerSchema)
		require.NoError(t, err)

		req := caller.requests[0]
		require.InDelta(t, 0.2, req.Temperature, 1e-9)
		require.Equal(t, 4000, req.MaxTokens)
		require.Equal(t, "answer", req.SchemaName)
		require.Equal(t, userMessages, req.Messages)
	})

	t.Run("should honour call options", func(t *testing.T) {
		caller := newScriptedCaller().reply("A", `{"title":"x"}`, nil)
		client := newClient(t, caller, "A")

		_, err := completion.Generate(ctx, client, userMessages, answerSchema,
			completion.WithTemperature(0.7), completion.WithMaxTokens(128))
		require.NoError(t, err)

		require.InDelta(t, 0.7, caller.requests[0].Temperature, 1e-9)
		require.Equal(t, 128, caller.requests[0].MaxTokens)
	})

	t.Run("should send a self-contained schema", func(t *testing.T) {
		caller := newScriptedCaller().
			reply("openai/gpt-4o-mini", "", &completion.NetworkError{Message: "down"}).
			reply("llama", `{"title":"x"}`, nil)
		client := newClient(t, caller, "openai/gpt-4o-mini", "llama")

		_, err := completion.Generate(ctx, client, userMessages, answerSchema)
		require.NoError(t, err)

		strict := caller.requests[0].Schema
		require.NotContains(t, strict, "$ref")
		require.Equal(t, "object", strict["type"])
		require.Equal(t, []any{"note", "title"}, strict["required"])

		lenient := caller.requests[1].Schema
		require.NotContains(t, lenient, "$ref")
		require.Equal(t, []any{"title"}, lenient["required"])
	})
}

func TestGenerate_Exhaustion(t *testing.T) {
	ctx := context.Background()
	models := []string{"A", "B", "C"}

	tests := []struct {
		name string
		err  error
		kind string
	}{
		{name: "network", err: &completion.NetworkError{Message: "connection reset"}, kind: completion.KindNetwork},
		{name: "api", err: &completion.APIError{StatusCode: 500, Body: "boom"}, kind: completion.KindAPI},
		{name: "parse", err: &completion.ParseError{Message: "empty"}, kind: completion.KindParse},
		{name: "unexpected", err: errors.New("kaboom"), kind: completion.KindNetwork},
	}

	for _, tt := range tests {
		t.Run("should surface "+tt.name+" failures after trying every model", func(t *testing.T) {
			caller := newScriptedCaller()
			for _, m := range models {
				caller.reply(m, "", tt.err)
			}
			client := newClient(t, caller, models...)

			result, err := completion.Generate(ctx, client, userMessages, answerSchema)

			require.Nil(t, result)
			require.Equal(t, tt.kind, completion.Kind(err))
			require.Equal(t, models, caller.models())
		})
	}

	t.Run("should wrap unexpected errors as network errors", func(t *testing.T) {
		caller := newScriptedCaller().reply("A", "", errors.New("kaboom"))
		client := newClient(t, caller, "A")

		_, err := completion.Generate(ctx, client, userMessages, answerSchema)

		var netErr *completion.NetworkError
		require.ErrorAs(t, err, &netErr)
		require.Contains(t, err.Error(), "unexpected error")
	})

	t.Run("should return the last model error as-is", func(t *testing.T) {
		last := &completion.APIError{StatusCode: 429, Body: "slow down"}
		caller := newScriptedCaller().
			reply("A", "", &completion.NetworkError{Message: "down"}).
			reply("B", "", last)
		client := newClient(t, caller, "A", "B")

		_, err := completion.Generate(ctx, client, userMessages, answerSchema)

		require.Same(t, last, err)
	})

	t.Run("should keep raw content on invalid JSON", func(t *testing.T) {
		caller := newScriptedCaller().reply("A", "Sure! Here is your plan", nil)
		client := newClient(t, caller, "A")

		_, err := completion.Generate(ctx, client, userMessages, answerSchema)

		var parseErr *completion.ParseError
		require.ErrorAs(t, err, &parseErr)
		require.Equal(t, "Sure! Here is your plan", parseErr.Content)
		require.Equal(t, "response is not valid JSON", parseErr.Message)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		caller := newScriptedCaller()
		caller.replies["A"] = func(context.Context) (string, error) {
			cancel()
			return "", &completion.NetworkError{Message: "cancelled", Err: context.Canceled}
		}
		caller.reply("B", `{"title":"x"}`, nil)
		client := newClient(t, caller, "A", "B")

		_, err := completion.Generate(cancelled, client, userMessages, answerSchema)

		require.Equal(t, completion.KindNetwork, completion.Kind(err))
		require.Equal(t, []string{"A"}, caller.models())
	})
}
