package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	mid "github.com/OFFIS-RIT/wikigraph/internal/server/middleware"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"

	"github.com/rabbitmq/amqp091-go"
)

type recordingChannel struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
}

func (r *recordingChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.body = append(r.body, msg.Body)
	return nil
}

func (r *recordingChannel) ExchangeDeclare(string, string, bool, bool, bool, bool, amqp091.Table) error {
	return nil
}

func newTestApp(t *testing.T) (*mid.App, *recordingChannel) {
	t.Helper()
	storage := store.NewMemoryStorage()
	err := storage.SaveGraph(context.Background(), store.StoredGraph{
		Graph: &common.Graph{
			ID: "exandria",
			Entities: []common.Entity{
				{ID: "Azune_Nayar", Name: "Azune Nayar", Type: common.EntityTypeNPC},
				{ID: "Thimble", Name: "Thimble", Type: common.EntityTypePlayerCharacter},
			},
			Edges: []common.Edge{
				{Source: "Thimble", Target: "Azune_Nayar", Kind: common.KindAlly, Labels: []string{"ally"}},
			},
		},
		Seeds:   []string{"Thimble"},
		Aliases: map[string]string{"Azune": "Azune_Nayar"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch := &recordingChannel{}
	return &mid.App{Storage: storage, Queue: ch, APIKey: "secret"}, ch
}

func do(t *testing.T, app *mid.App, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	New(app).ServeHTTP(rec, req)
	return rec
}

func TestReadRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name     string
		target   string
		status   int
		contains string
	}{
		{"health", "/health", http.StatusOK, "OK"},
		{"list", "/api/graphs", http.StatusOK, `"id":"exandria"`},
		{"nodes", "/api/graphs/exandria", http.StatusOK, `"relationship": "Ally"`},
		{"entities", "/api/graphs/exandria?format=entities", http.StatusOK, `"relationships"`},
		{"gml", "/api/graphs/exandria/gml", http.StatusOK, `label "Azune Nayar"`},
		{"bad format", "/api/graphs/exandria?format=svg", http.StatusBadRequest, "unknown format"},
		{"missing", "/api/graphs/wildemount", http.StatusNotFound, "graph not found"},
		{"aliases", "/api/graphs/exandria/aliases", http.StatusOK, `"Azune":"Azune_Nayar"`},
		{"no artifact storage", "/api/graphs/exandria/artifacts", http.StatusNotFound, "not configured"},
		{"unknown crawl", "/api/crawls/exandria", http.StatusNotFound, "no crawl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, app, http.MethodGet, tt.target, "", nil)
			if rec.Code != tt.status {
				t.Fatalf("unexpected status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestCreateCrawl(t *testing.T) {
	app, ch := newTestApp(t)
	auth := map[string]string{"Authorization": "Bearer secret"}

	rec := do(t, app, http.MethodPost, "/api/crawls", `{"graph_id": "wildemount"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status without key: got %d", rec.Code)
	}

	rec = do(t, app, http.MethodPost, "/api/crawls", `{"graph_id": "wildemount", "seeds": ["Thimble"], "budget": 50}`, auth)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(ch.keys) != 1 || ch.keys[0] != queue.CrawlQueue {
		t.Fatalf("unexpected publishes: got %v", ch.keys)
	}
	var job queue.CrawlJob
	if err := json.Unmarshal(ch.body[0], &job); err != nil || job.Budget != 50 || job.Seeds[0] != "Thimble" {
		t.Fatalf("unexpected job: got %+v (%v)", job, err)
	}

	rec = do(t, app, http.MethodPost, "/api/crawls", `{"graph_id": "wildemount"}`, map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status for duplicate crawl: got %d", rec.Code)
	}

	rec = do(t, app, http.MethodGet, "/api/crawls/wildemount", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"queued"`) {
		t.Fatalf("unexpected crawl status: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, app, http.MethodPost, "/api/crawls", `{"budget": -3}`, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for invalid job: got %d", rec.Code)
	}
}

func TestDeleteGraph(t *testing.T) {
	app, _ := newTestApp(t)
	app.Queue = nil
	auth := map[string]string{"X-API-Key": "secret"}

	if rec := do(t, app, http.MethodDelete, "/api/graphs/exandria", "", auth); rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := do(t, app, http.MethodDelete, "/api/graphs/exandria", "", auth); rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status for missing graph: got %d", rec.Code)
	}
}
