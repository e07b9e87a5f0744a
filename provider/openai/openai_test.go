package openai_provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteReportsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":12,"completion_tokens":7}}`))
	}))
	defer srv.Close()

	client := NewClient("key", srv.URL, time.Second)
	var gotModel string
	var gotPrompt, gotCompletion int64
	client.OnUsage(func(model string, promptTokens, completionTokens int64) {
		gotModel, gotPrompt, gotCompletion = model, promptTokens, completionTokens
	})

	out, err := client.Complete(context.Background(), "gpt-5.1", "system", "user prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected completion %q", out)
	}
	if gotModel != "gpt-5.1" || gotPrompt != 12 || gotCompletion != 7 {
		t.Fatalf("usage hook saw model=%s prompt=%d completion=%d", gotModel, gotPrompt, gotCompletion)
	}
}

func TestCompleteErrorSkipsUsageHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("key", srv.URL, time.Second)
	called := false
	client.OnUsage(func(string, int64, int64) { called = true })

	if _, err := client.Complete(context.Background(), "gpt-5.1", "", "user"); err == nil {
		t.Fatalf("expected error on 500 response")
	}
	if called {
		t.Fatalf("usage hook must not fire on failed completions")
	}
}
