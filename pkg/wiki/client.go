package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/wikigraph/pkg/logger"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://criticalrole.fandom.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultDelay     = 500 * time.Millisecond
	DefaultTimeout   = 10 * time.Second

	maxPageBytes = 16 << 20
)

// SearchResult is one hit of the wiki search API.
type SearchResult struct {
	Title string `json:"title"`
	Size  int    `json:"size"`
}

type searchResponse struct {
	Query struct {
		Search []SearchResult `json:"search"`
	} `json:"query"`
}

// Stats counts network activity of a Client.
type Stats struct {
	PageRequests   int64
	SearchRequests int64
	CacheHits      int64
}

// Client fetches and parses wiki pages. Every network request waits on a
// shared limiter so consecutive requests are spaced by the configured delay.
// Parsed pages are cached by canonical id for the lifetime of the client, and
// titles the wiki answered with an error status are not requested again.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	aliases    *AliasTable

	cacheMu sync.RWMutex
	cache   map[string]*Page
	failed  map[string]*FetchError
	group   singleflight.Group

	pageRequests   atomic.Int64
	searchRequests atomic.Int64
	cacheHits      atomic.Int64
}

// NewClientParams configures a Client. Zero values fall back to the
// package defaults; Aliases defaults to a fresh table.
type NewClientParams struct {
	BaseURL    string
	UserAgent  string
	Delay      time.Duration
	Timeout    time.Duration
	Aliases    *AliasTable
	HTTPClient *http.Client
}

type userAgentTransport struct {
	userAgent string
	rt        http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	return t.rt.RoundTrip(r)
}

func NewClient(params NewClientParams) (*Client, error) {
	base := params.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid wiki base url: %w", err)
	}

	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	delay := params.Delay
	if delay < 0 {
		delay = 0
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	aliases := params.Aliases
	if aliases == nil {
		aliases = NewAliasTable()
	}

	rt := http.DefaultTransport
	if params.HTTPClient != nil && params.HTTPClient.Transport != nil {
		rt = params.HTTPClient.Transport
	}
	httpClient := &http.Client{
		Transport: &userAgentTransport{userAgent: userAgent, rt: rt},
	}

	return &Client{
		baseURL:    u,
		userAgent:  userAgent,
		timeout:    timeout,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		aliases:    aliases,
		cache:      make(map[string]*Page),
		failed:     make(map[string]*FetchError),
	}, nil
}

// Aliases returns the alias table the client records redirects into.
func (c *Client) Aliases() *AliasTable {
	return c.aliases
}

// PageURL returns the article URL for a canonical id.
func (c *Client) PageURL(canonical string) string {
	u := *c.baseURL
	u.Path = "/wiki/" + canonical
	return u.String()
}

func (c *Client) Stats() Stats {
	return Stats{
		PageRequests:   c.pageRequests.Load(),
		SearchRequests: c.searchRequests.Load(),
		CacheHits:      c.cacheHits.Load(),
	}
}

// Cached returns a previously fetched page without touching the network.
func (c *Client) Cached(title string) (*Page, bool) {
	canonical, ok := c.aliases.Lookup(title)
	if !ok {
		return nil, false
	}
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	page, ok := c.cache[canonical]
	return page, ok
}

// Fetch returns the parsed page for title. Redirects are followed and the
// canonical id is taken from the final URL; the alias table records both
// the requested title and the canonical id itself. Failures are returned
// as *FetchError.
func (c *Client) Fetch(ctx context.Context, title string) (*Page, error) {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return nil, &FetchError{Title: title, Err: fmt.Errorf("empty title")}
	}

	if page, ok := c.Cached(normalized); ok {
		c.cacheHits.Add(1)
		return page, nil
	}
	if fetchErr, ok := c.failure(normalized); ok {
		c.cacheHits.Add(1)
		return nil, fetchErr
	}

	result, err, _ := c.group.Do(normalized, func() (any, error) {
		if page, ok := c.Cached(normalized); ok {
			return page, nil
		}
		if fetchErr, ok := c.failure(normalized); ok {
			return nil, fetchErr
		}
		return c.fetch(ctx, normalized)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Page), nil
}

func (c *Client) fetch(ctx context.Context, normalized string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Title: normalized, Err: err}
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rCtx, http.MethodGet, c.PageURL(normalized), nil)
	if err != nil {
		return nil, &FetchError{Title: normalized, Err: err}
	}

	logger.Debug("[Wiki] Fetching page", "title", normalized)
	c.pageRequests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Title: normalized, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.remember(&FetchError{Title: normalized, Status: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &FetchError{Title: normalized, Err: err}
	}

	finalURL := resp.Request.URL
	page, err := ParsePage(body, finalURL)
	if err != nil {
		return nil, c.remember(&FetchError{Title: normalized, Err: fmt.Errorf("parse page: %w", err)})
	}

	canonical := canonicalFromURL(finalURL, normalized)
	if canonical == normalized && page.canonicalHint != "" {
		if hint, err := url.Parse(page.canonicalHint); err == nil && sameWiki(hint, c.baseURL) {
			canonical = canonicalFromURL(hint, normalized)
		}
	}
	if canonical != normalized {
		logger.Debug("[Wiki] Redirected", "from", normalized, "to", canonical)
	}

	page.Canonical = canonical
	page.URL = c.PageURL(canonical)

	c.aliases.Set(normalized, canonical)
	c.aliases.Set(canonical, canonical)

	c.cacheMu.Lock()
	c.cache[canonical] = page
	c.cacheMu.Unlock()

	return page, nil
}

func (c *Client) failure(normalized string) (*FetchError, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	err, ok := c.failed[normalized]
	return err, ok
}

// remember records a failure that retrying in the same session will not fix.
// Network and context errors are not recorded.
func (c *Client) remember(err *FetchError) *FetchError {
	c.cacheMu.Lock()
	c.failed[err.Title] = err
	c.cacheMu.Unlock()
	return err
}

func canonicalFromURL(u *url.URL, fallback string) string {
	path := u.Path
	i := strings.LastIndex(path, "/wiki/")
	if i < 0 {
		return fallback
	}
	canonical := NormalizeTitle(path[i+len("/wiki/"):])
	if canonical == "" {
		return fallback
	}
	return canonical
}

func sameWiki(u, base *url.URL) bool {
	return u.Host == "" || strings.EqualFold(u.Host, base.Host)
}

// Search queries the wiki search API and returns at most limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Title: query, Err: err}
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = "/api.php"
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("format", "json")
	q.Set("srprop", "size")
	q.Set("srlimit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(rCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Title: query, Err: err}
	}

	logger.Debug("[Wiki] Searching", "query", query)
	c.searchRequests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Title: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &FetchError{Title: query, Status: resp.StatusCode}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &FetchError{Title: query, Err: fmt.Errorf("decode search response: %w", err)}
	}

	results := parsed.Query.Search
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
