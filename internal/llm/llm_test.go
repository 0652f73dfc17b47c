package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClientValidatesConfig(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var got chatPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"member\":[\"member_id\"]}"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "secret", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	out, err := client.Complete(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.6,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"member":["member_id"]}` {
		t.Fatalf("Complete() = %q", out)
	}
	if got.Model != "test-model" || got.Temperature != 0.6 || len(got.Messages) != 1 || got.Messages[0].Role != RoleUser {
		t.Fatalf("payload = %+v", got)
	}
	if got.ResponseFormat != nil || got.MaxTokens != 0 {
		t.Fatalf("payload = %+v, want no response format or token limit", got)
	}
}

func TestOpenAIClientSendsJSONModeAndTokenLimit(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), ChatRequest{
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens: 300,
		JSON:      true,
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	format, _ := raw["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("response_format = %v", raw["response_format"])
	}
	if raw["max_tokens"] != float64(300) {
		t.Fatalf("max_tokens = %v", raw["max_tokens"])
	}
}

func TestOpenAIClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "empty") {
			_, _ = w.Write([]byte(`{"choices":[]}`))
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	for _, key := range []string{"status", "empty"} {
		client, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: key})
		if _, err := client.Complete(context.Background(), ChatRequest{}); err == nil {
			t.Fatalf("Complete(%s) expected error", key)
		}
	}
}

func TestCompleteWithRetryRecovers(t *testing.T) {
	calls := 0
	model := ChatModelFunc(func(context.Context, ChatRequest) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})
	out, err := CompleteWithRetry(context.Background(), model, ChatRequest{}, RetryPolicy{Attempts: 3}, nil)
	if err != nil || out != "ok" {
		t.Fatalf("CompleteWithRetry() = %q, %v", out, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestCompleteWithRetryExhaustion(t *testing.T) {
	calls := 0
	model := ChatModelFunc(func(context.Context, ChatRequest) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})
	_, err := CompleteWithRetry(context.Background(), model, ChatRequest{}, RetryPolicy{Attempts: 2}, nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("CompleteWithRetry() error = %v, want ErrModelUnavailable", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestCompleteWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := ChatModelFunc(func(context.Context, ChatRequest) (string, error) {
		cancel()
		return "", errors.New("interrupted")
	})
	_, err := CompleteWithRetry(ctx, model, ChatRequest{}, RetryPolicy{Attempts: 3}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CompleteWithRetry() error = %v, want context.Canceled", err)
	}
}

func TestWithSchemaDoesNotMutateInput(t *testing.T) {
	in := []Message{{Role: RoleSystem, Content: "base"}, {Role: RoleUser, Content: "q"}}
	out := WithSchema(in, `{"type":"object"}`)
	if in[0].Content != "base" {
		t.Fatalf("input mutated: %q", in[0].Content)
	}
	if !strings.HasPrefix(out[0].Content, "base\n\nOutput must strictly follow") || !strings.HasSuffix(out[0].Content, `{"type":"object"}`) {
		t.Fatalf("system = %q", out[0].Content)
	}
	again := WithSchema(in, `{}`)
	if strings.Count(again[0].Content, "Output must") != 1 {
		t.Fatalf("schema instruction repeated: %q", again[0].Content)
	}

	noSystem := WithSchema([]Message{{Role: RoleUser, Content: "q"}}, `{}`)
	if len(noSystem) != 2 || noSystem[0].Role != RoleSystem || !strings.HasPrefix(noSystem[0].Content, "Output must") {
		t.Fatalf("WithSchema() = %+v", noSystem)
	}
}
