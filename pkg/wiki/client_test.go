package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestWiki(t *testing.T, pages map[string]string, redirects map[string]string) (*Client, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		title := r.URL.Path[len("/wiki/"):]
		if target, ok := redirects[title]; ok {
			http.Redirect(w, r, "/wiki/"+target, http.StatusMovedPermanently)
			return
		}
		body, ok := pages[title]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/api.php", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		if q.Get("list") != "search" || q.Get("srprop") != "size" || q.Get("format") != "json" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"query":{"search":[{"title":"%s","size":5000},{"title":"Other","size":50},{"title":"Third","size":10}]}}`, q.Get("srsearch"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(NewClientParams{BaseURL: srv.URL, Delay: 0})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, &hits
}

func TestClientFetchFollowsRedirects(t *testing.T) {
	client, hits := newTestWiki(t,
		map[string]string{"Halandil_Fang": `<html><body><h1 class="page-header__title">Halandil Fang</h1></body></html>`},
		map[string]string{"Hal": "Halandil_Fang"},
	)

	page, err := client.Fetch(context.Background(), "Hal")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.Canonical != "Halandil_Fang" {
		t.Fatalf("expected canonical Halandil_Fang, got %q", page.Canonical)
	}
	for _, identity := range []string{"Hal", "Halandil_Fang", "Halandil Fang"} {
		if got, ok := client.Aliases().Lookup(identity); !ok || got != "Halandil_Fang" {
			t.Fatalf("alias for %q: got (%q, %v)", identity, got, ok)
		}
	}

	before := hits.Load()
	if _, err := client.Fetch(context.Background(), "Halandil Fang"); err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if hits.Load() != before {
		t.Fatalf("expected cached page, got %d extra requests", hits.Load()-before)
	}
	if client.Stats().CacheHits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", client.Stats().CacheHits)
	}
}

func TestClientFetchError(t *testing.T) {
	client, hits := newTestWiki(t, nil, nil)

	_, err := client.Fetch(context.Background(), "Nobody")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T (%v)", err, err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", fetchErr.Status)
	}
	if _, ok := client.Aliases().Lookup("Nobody"); ok {
		t.Fatalf("failed fetch must not record an alias")
	}

	before := hits.Load()
	_, err = client.Fetch(context.Background(), "Nobody")
	if !errors.As(err, &fetchErr) || fetchErr.Status != http.StatusNotFound {
		t.Fatalf("expected remembered 404, got %v", err)
	}
	if hits.Load() != before {
		t.Fatalf("expected failed title to be remembered, got %d extra requests", hits.Load()-before)
	}
	if client.Stats().PageRequests != 1 {
		t.Fatalf("expected 1 page request, got %d", client.Stats().PageRequests)
	}

	if _, err := client.Fetch(context.Background(), "#only-fragment"); !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError for empty title, got %v", err)
	}
}

func TestClientSearch(t *testing.T) {
	client, _ := newTestWiki(t, nil, nil)

	results, err := client.Search(context.Background(), "Julien Davinos", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results capped at 2, got %d", len(results))
	}
	if results[0].Title != "Julien Davinos" || results[0].Size != 5000 {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if client.Stats().SearchRequests != 1 {
		t.Fatalf("expected 1 search request, got %d", client.Stats().SearchRequests)
	}
}

func TestClientPageURL(t *testing.T) {
	client, err := NewClient(NewClientParams{BaseURL: "https://wiki.example/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if got := client.PageURL("Murray_Mag'Nesson"); got != "https://wiki.example/wiki/Murray_Mag%27Nesson" {
		t.Fatalf("unexpected url %q", got)
	}
}
