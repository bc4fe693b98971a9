package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAITestConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.APIKey = "sk-test"
	return cfg
}

func writeOpenAIContent(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model": "gpt-4o-mini",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

type recordingObserver struct {
	mu     sync.Mutex
	events []LLMCallEvent
}

func (o *recordingObserver) OnCallComplete(e LLMCallEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = ""
	_, err := NewClient(cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg = DefaultConfigFor(ProviderAnthropic)
	_, err = NewClient(cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "mystery"
	_, err := NewClient(cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenAIClient_Complete_FreeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Nil(t, req.ResponseFormat)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)
		assert.Equal(t, "user prompt", req.Messages[1].Content)

		writeOpenAIContent(w, "Run a marathon by April 2027.")
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client, err := NewClient(openAITestConfig(srv.URL), obs)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Task:     TaskSmartGoal,
		Messages: Chat("system prompt", "user prompt"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Run a marathon by April 2027.", resp.Content)
	assert.GreaterOrEqual(t, resp.LatencyMs, int64(0))

	require.Len(t, obs.events, 1)
	assert.True(t, obs.events[0].Success)
	assert.Equal(t, "openai", obs.events[0].Provider)
	assert.Equal(t, TaskSmartGoal, obs.events[0].Task)
}

func TestOpenAIClient_Complete_StructuredUsesPlanModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-2024-08-06", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)
		assert.Equal(t, "goalPlan", req.ResponseFormat.JSONSchema.Name)
		assert.True(t, req.ResponseFormat.JSONSchema.Strict)
		assert.Equal(t, "object", req.ResponseFormat.JSONSchema.Schema["type"])

		writeOpenAIContent(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client, err := NewClient(openAITestConfig(srv.URL), nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Task:     TaskPlan,
		Messages: Chat("", "plan it"),
		Schema:   &ResponseSchema{Name: "goalPlan", Schema: map[string]any{"type": "object"}, Strict: true},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
}

func TestOpenAIClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4o-mini", "choices": []any{}})
	}))
	defer srv.Close()

	client, err := NewClient(openAITestConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClient_Complete_EmptyContentAndRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": nil, "refusal": "cannot help"}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(openAITestConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "cannot help")
}

func TestOpenAIClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeOpenAIContent(w, "late")
	}))
	defer srv.Close()

	cfg := openAITestConfig(srv.URL)
	cfg.Tasks[TaskSmartGoal] = TaskConfig{Model: "gpt-4o-mini", TimeoutMs: 50}

	obs := &recordingObserver{}
	client, err := NewClient(cfg, obs)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	assert.ErrorIs(t, err, ErrTimeout)
	require.Len(t, obs.events, 1)
	assert.Equal(t, "TIMEOUT", obs.events[0].ErrorCode)
}

func TestOpenAIClient_Complete_Unavailable(t *testing.T) {
	cfg := openAITestConfig("http://127.0.0.1:1") // nothing listening
	cfg.Tasks[TaskSmartGoal] = TaskConfig{TimeoutMs: 1000}

	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIClient_Complete_NoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	client, err := NewClient(openAITestConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOpenAIClient_Complete_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeOpenAIContent(w, "ok")
	}))
	defer srv.Close()

	cfg := openAITestConfig(srv.URL)
	cfg.MaxRetries = 1
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOpenAIClient_Complete_RetryAfterTimeout(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			time.Sleep(150 * time.Millisecond)
		}
		writeOpenAIContent(w, "ok")
	}))
	defer srv.Close()

	cfg := openAITestConfig(srv.URL)
	cfg.MaxRetries = 1
	cfg.Tasks[TaskSmartGoal] = TaskConfig{TimeoutMs: 50}
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOpenAIClient_Complete_CallerCancelStopsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
		writeOpenAIContent(w, "late")
	}))
	defer srv.Close()

	cfg := openAITestConfig(srv.URL)
	cfg.MaxRetries = 3
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err = client.Complete(ctx, CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOpenAIClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" && r.Header.Get("Authorization") == "Bearer sk-test" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(openAITestConfig(srv.URL), nil)
	require.NoError(t, err)
	assert.True(t, client.Available(context.Background()))

	cfg := openAITestConfig(srv.URL)
	cfg.APIKey = "sk-wrong"
	client, err = NewClient(cfg, nil)
	require.NoError(t, err)
	assert.False(t, client.Available(context.Background()))
}

func TestOllamaClient_Complete_PassesSchemaAsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "object", req.Format["type"])
		assert.Equal(t, 8192, req.Options.NumPredict)

		json.NewEncoder(w).Encode(ollamaResponse{
			Model:   "llama3.2",
			Message: Message{Role: RoleAssistant, Content: `{"goal":{}}`},
		})
	}))
	defer srv.Close()

	cfg := DefaultConfigFor(ProviderOllama)
	cfg.Endpoint = srv.URL
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Task:     TaskPlan,
		Messages: Chat("sys", "user"),
		Schema:   &ResponseSchema{Name: "goalPlan", Schema: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"goal":{}}`, resp.Content)
	assert.Equal(t, "llama3.2", resp.Model)
}

func TestOllamaClient_Complete_EmptyMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Model: "llama3.2"})
	}))
	defer srv.Close()

	cfg := DefaultConfigFor(ProviderOllama)
	cfg.Endpoint = srv.URL
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal, Messages: Chat("", "x")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicClient_Complete_AppendsSchemaToSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		system, _ := json.Marshal(body["system"])
		assert.Contains(t, string(system), "JSON Schema")
		assert.Contains(t, string(system), "be a planner")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-20250514",
			"content":       []map[string]any{{"type": "text", "text": `{"goal":{}}`}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	cfg := DefaultConfigFor(ProviderAnthropic)
	cfg.APIKey = "sk-ant-test"
	cfg.Endpoint = srv.URL + "/"
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	assert.True(t, client.Available(context.Background()))

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Task:     TaskPlan,
		Messages: Chat("be a planner", "plan it"),
		Schema:   &ResponseSchema{Name: "goalPlan", Schema: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"goal":{}}`, resp.Content)
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	MultiObserver{a, nil, b}.OnCallComplete(LLMCallEvent{Task: TaskPlan})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestNewUnconfigured_FailsEveryCall(t *testing.T) {
	_, reason := NewClient(Config{Provider: ProviderOpenAI}, nil)
	require.ErrorIs(t, reason, ErrNotConfigured)

	client := NewUnconfigured(reason)
	assert.False(t, client.Available(context.Background()))
	_, err := client.Complete(context.Background(), CompletionRequest{Task: TaskSmartGoal})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewUnconfigured(nil).Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
