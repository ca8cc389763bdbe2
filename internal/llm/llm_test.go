package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "llama" || req.MaxTokens != 1024 {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  3. 🚨 Urgency Level: Routine  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAILLM("test-key", srv.URL+"/openai/v1/", "llama", DefaultOptions())
	if err != nil {
		t.Fatalf("NewOpenAILLM: %v", err)
	}

	got, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "3. 🚨 Urgency Level: Routine" {
		t.Errorf("unexpected completion %q", got)
	}
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"rate_limit"}}`, nil},
		{"no choices", http.StatusOK, `{"id":"1","choices":[]}`, ErrEmptyCompletion},
		{"blank content", http.StatusOK, `{"id":"1","choices":[{"message":{"role":"assistant","content":"   "}}]}`, ErrEmptyCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewOpenAILLM("k", srv.URL, "m", DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.Generate(context.Background(), "p")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewOpenAILLMValidates(t *testing.T) {
	if _, err := NewOpenAILLM("", "", "m", DefaultOptions()); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewOpenAILLM("k", "", "", DefaultOptions()); err == nil {
		t.Error("expected error without model")
	}
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model   string         `json:"model"`
			Prompt  string         `json:"prompt"`
			Options map[string]any `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "llama3.1" || req.Prompt != "hi" {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Options["num_predict"] != float64(1024) {
			t.Errorf("unexpected options %v", req.Options)
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"llama3.1","response":"Please ","done":false}` + "\n"))
		w.Write([]byte(`{"model":"llama3.1","response":"rest.","done":true}` + "\n"))
	}))
	defer srv.Close()

	o, err := NewOllamaLLM(srv.URL, "llama3.1", DefaultOptions())
	if err != nil {
		t.Fatalf("NewOllamaLLM: %v", err)
	}

	got, err := o.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Please rest." {
		t.Errorf("unexpected response %q", got)
	}
}

func TestOllamaGenerateEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"","done":true}` + "\n"))
	}))
	defer srv.Close()

	o, err := NewOllamaLLM(srv.URL, "m", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Generate(context.Background(), "hi"); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestNewOllamaLLMRejectsBadHost(t *testing.T) {
	if _, err := NewOllamaLLM("::bad", "m", DefaultOptions()); err == nil {
		t.Error("expected error for invalid host")
	}
}
