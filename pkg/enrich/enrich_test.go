package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/export"
	"github.com/OFFIS-RIT/wikigraph/pkg/resolve"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

const julienHTML = `<html><head><title>Julien Davinos</title></head><body>
<h1 class="page-header__title">Julien Davinos</h1>
<aside class="portable-infobox">
<h2 class="pi-title">Julien Davinos</h2>
<figure class="pi-item pi-image"><img src="https://static.example.org/Julien_Davinos.png/revision/latest?cb=1"></figure>
<div class="pi-item"><h3 class="pi-data-label">Race</h3><div class="pi-data-value">Human</div></div>
<div class="pi-item"><h3 class="pi-data-label">First seen</h3><div class="pi-data-value">Broken Wing (4x01)</div></div>
</aside>
<div class="mw-parser-output"><p>Julien Davinos is a knight of Aramán.</p></div>
<a href="/wiki/Category:Characters">Characters</a> <a href="/wiki/Category:NPCs">NPCs</a>
</body></html>`

func newResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/Julien_Davinos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, julienHTML)
	})
	mux.HandleFunc("/api.php", func(w http.ResponseWriter, r *http.Request) {
		var results []wiki.SearchResult
		if r.URL.Query().Get("srsearch") == "Julien Davinos" {
			results = []wiki.SearchResult{{Title: "Julien Davinos", Size: 5000}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"search": results}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := wiki.NewClient(wiki.NewClientParams{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resolve.NewResolver(resolve.NewResolverParams{
		Pages:         client,
		Overrides:     map[string]string{},
		TargetContext: 4,
	})
}

const episodeDocument = `{
  "nodes": [
    {"id": "execution", "label": "Execution of Thjazi Fang", "type": "event", "location": "Guardian Wall"},
    {"id": "julien", "label": "Sir Julien Davinos", "type": "character"},
    {"id": "wake", "label": "Wake at Fang Home", "type": "event"}
  ],
  "edges": [
    {"source": "julien", "target": "execution", "relationship": "witnessed"},
    {"source": "julien", "target": "wake", "relationship": "estranged_husband"},
    {"source": "execution", "target": "wake", "relationship": "brother"}
  ]
}`

func TestEnrich(t *testing.T) {
	doc, err := export.Decode([]byte(episodeDocument))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enricher := NewEnricher(NewEnricherParams{Resolver: newResolver(t), Sequenced: true})
	stats, err := enricher.Enrich(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Nodes != 3 || stats.Matched != 1 || stats.Images != 1 {
		t.Fatalf("unexpected stats: got %+v", stats)
	}

	julien := doc.Nodes[1]
	if !strings.HasSuffix(julien.Attr("url"), "/wiki/Julien_Davinos") {
		t.Fatalf("unexpected url: got %q", julien.Attr("url"))
	}
	if julien.Attr("image") != "https://static.example.org/Julien_Davinos.png" {
		t.Fatalf("unexpected image: got %q", julien.Attr("image"))
	}
	if julien.Attr("match_confidence") == "" || julien.Attr("shape") != "circularImage" {
		t.Fatalf("unexpected node attrs: got %v", julien.Attrs)
	}
	if _, ok := julien.Attrs["level"]; ok {
		t.Fatalf("characters must not get a level")
	}

	execution := doc.Nodes[0]
	if execution.Attr("url") != "" {
		t.Fatalf("unmatched node got a url: %q", execution.Attr("url"))
	}
	if execution.Attr("location") != "Guardian Wall" {
		t.Fatalf("original attributes lost: got %v", execution.Attrs)
	}
	if execution.Attrs["level"] != 1 || doc.Nodes[2].Attrs["level"] != 2 {
		t.Fatalf("unexpected levels: got %v and %v", execution.Attrs["level"], doc.Nodes[2].Attrs["level"])
	}

	if doc.Edges[2].Attrs["color"] != "#00BFFF" || doc.Edges[2].Attrs["width"] != 3 {
		t.Fatalf("unexpected family style: got %v", doc.Edges[2].Attrs)
	}
	if doc.Edges[1].Attrs["dashes"] != true {
		t.Fatalf("expected dashed edge: got %v", doc.Edges[1].Attrs)
	}
	if doc.Edges[0].Attrs["color"] != "#999999" {
		t.Fatalf("unexpected witnessed style: got %v", doc.Edges[0].Attrs)
	}
}

func TestEnrichWithoutSequence(t *testing.T) {
	doc, err := export.Decode([]byte(episodeDocument))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewEnricher(NewEnricherParams{Resolver: newResolver(t)}).Enrich(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range doc.Nodes {
		if _, ok := n.Attrs["level"]; ok {
			t.Fatalf("unexpected level on %s", n.ID)
		}
	}
}
