package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"DailyDigest/internal/config"
)

func TestChatGPTClientComplete(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"## Highlight\nok"}}]}`))
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{
		Endpoint:    srv.URL,
		Model:       "glm-4-flash",
		APIKey:      "secret",
		Temperature: 0.7,
		MaxTokens:   4000,
	})

	out, err := client.Complete(context.Background(), "analyst", "items")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != "## Highlight\nok" {
		t.Fatalf("unexpected output %q", out)
	}
	if got.Model != "glm-4-flash" || got.MaxTokens != 4000 || got.Temperature != 0.7 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "items" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestChatGPTClientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "http error", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, wantErr: "429"},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"bad key"}}`, wantErr: "bad key"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: "no choices"},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL, Model: "m", APIKey: "k"})
			_, err := client.Complete(context.Background(), "", "x")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestChatGPTClientMisconfigured(t *testing.T) {
	t.Parallel()

	if _, err := NewChatGPTClient(config.ChatGPTConfig{}).Complete(context.Background(), "", "x"); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
