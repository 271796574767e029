package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsRAG/internal/config"
)

func TestChatGPTClientComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Model != "gpt-4o-mini" || len(body.Messages) != 2 || body.Messages[1].Content != "추천해줘" {
			t.Errorf("unexpected request: %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[]"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: server.URL + "/v1", Model: "gpt-4o-mini", APIKey: "k"})
	got, err := client.Complete(context.Background(), "추천해줘")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "[]" {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestChatGPTClientMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewChatGPTClient(config.ChatGPTConfig{Model: "gpt-4o-mini"})
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestChatGPTClientServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: server.URL, Model: "m", APIKey: "k"})
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
