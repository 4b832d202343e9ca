package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/dockagent/config"
)

func TestNewLLMProviderSelection(t *testing.T) {
	p, err := NewLLMProvider(config.LLMConfig{Provider: "gemini"})
	if err != nil {
		t.Fatalf("gemini: %v", err)
	}
	if _, ok := p.(*GeminiProvider); !ok {
		t.Fatalf("expected GeminiProvider, got %T", p)
	}

	p, err = NewLLMProvider(config.LLMConfig{Provider: "openai"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := p.(*OpenAIProvider); !ok {
		t.Fatalf("expected OpenAIProvider, got %T", p)
	}

	// Empty provider defaults to gemini.
	p, err = NewLLMProvider(config.LLMConfig{})
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if _, ok := p.(*GeminiProvider); !ok {
		t.Fatalf("expected default GeminiProvider, got %T", p)
	}

	if _, err := NewLLMProvider(config.LLMConfig{Provider: "llama"}); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestGeminiProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "plan the docking" {
			t.Errorf("unexpected request contents: %+v", req.Contents)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "step one"}, {"text": " then two"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-1.5-pro",
		Timeout: time.Second,
	})
	got, err := p.Complete(context.Background(), "plan the docking")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "step one then two" {
		t.Fatalf("Complete = %q", got)
	}
}

func TestGeminiProviderRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	p := NewGeminiProvider(config.ProviderConfig{Timeout: time.Second})
	if _, err := p.Complete(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" || len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "docked"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o",
		Timeout: time.Second,
	})
	got, err := p.Complete(context.Background(), "dock it")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "docked" {
		t.Fatalf("Complete = %q", got)
	}
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "recovered"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second, 2, time.Millisecond)
	var out struct {
		Text string `json:"text"`
	}
	err := client.DoJSON(context.Background(), http.MethodPost, srv.URL, nil,
		map[string]string{"q": "retry me"}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Text != "recovered" {
		t.Fatalf("out = %+v", out)
	}
	if hits.Load() != 2 {
		t.Fatalf("server hit %d times, want 2", hits.Load())
	}
}

func TestHTTPClientGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "still broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second, 2, time.Millisecond)
	err := client.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if hits.Load() != 3 {
		t.Fatalf("server hit %d times, want 3", hits.Load())
	}
}
