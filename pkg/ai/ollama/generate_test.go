package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
)

func newTestServer(t *testing.T, response string, seen *map[string]any) *GraphOllamaClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		*seen = body

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             body["model"],
			"response":          response,
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        3,
			"total_duration":    int64(2_000_000_000),
		})
	}))
	t.Cleanup(srv.Close)

	client, err := NewGraphOllamaClient(NewGraphOllamaClientParams{
		Model:   "llama3.1:8b",
		BaseURL: srv.URL,
		ApiKey:  "secret",
	})
	if err != nil {
		t.Fatalf("NewGraphOllamaClient() error = %v", err)
	}
	return client
}

func TestGenerateCompletion(t *testing.T) {
	var seen map[string]any
	client := newTestServer(t, "enemy,rival", &seen)

	got, err := client.GenerateCompletion(context.Background(), "classify", ai.WithTemperature(0.1), ai.WithMaxTokens(50))
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if got != "enemy,rival" {
		t.Fatalf("unexpected response %q", got)
	}
	if seen["model"] != "llama3.1:8b" || seen["stream"] != false {
		t.Fatalf("unexpected request %v", seen)
	}
	options, _ := seen["options"].(map[string]any)
	if options["temperature"] != 0.1 || options["num_predict"] != float64(50) {
		t.Fatalf("unexpected options %v", options)
	}
	if _, ok := options["num_ctx"]; ok {
		t.Fatalf("short prompt must not raise num_ctx")
	}

	m := client.GetMetrics()
	if m.Requests != 1 || m.TotalTokens != 15 || m.DurationMs != 2000 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	client.ResetMetrics()
	if client.GetMetrics().Requests != 0 {
		t.Fatalf("metrics not reset")
	}
}

func TestGenerateCompletionWithFormat(t *testing.T) {
	var seen map[string]any
	client := newTestServer(t, `{"type": "npc", "confidence": 0.75}`, &seen)

	var out ai.TypeJudgment
	if err := client.GenerateCompletionWithFormat(context.Background(), "entity_type", "", "classify", &out); err != nil {
		t.Fatalf("GenerateCompletionWithFormat() error = %v", err)
	}
	if out.Type != "npc" || out.Confidence != 0.75 {
		t.Fatalf("unexpected judgment %+v", out)
	}
	if _, ok := seen["format"].(map[string]any); !ok {
		t.Fatalf("expected a JSON schema format, got %v", seen["format"])
	}

	if err := client.GenerateCompletionWithFormat(context.Background(), "x", "", "p", out); err == nil {
		t.Fatalf("expected error for non-pointer out")
	}
}

func TestGenerateCompletionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client, err := NewGraphOllamaClient(NewGraphOllamaClientParams{Model: "missing", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGraphOllamaClient() error = %v", err)
	}
	if _, err := client.GenerateCompletion(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error from failing server")
	}
}
