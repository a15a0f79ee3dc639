// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Doer issues HTTP requests (normally an *http.Client).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Cache.
type Options struct {
	// Version tags both partitions; bump it on every deploy.
	Version string
	// BaseURL is the server origin used to fetch the manifest.
	BaseURL string
	// Manifest is the fixed set of paths Install pre-fetches.
	Manifest []string
	// Inner performs actual network requests.
	Inner Doer
}

// Cache stores responses in versioned partitions and arbitrates
// cache-vs-network per request category. It satisfies api.Doer so the
// typed client picks up the policies transparently.
type Cache struct {
	db       *sql.DB
	inner    Doer
	version  string
	base     string
	manifest []string

	mu   sync.Mutex
	subs []chan struct{}
}

const schema = `
CREATE TABLE IF NOT EXISTS cached_responses (
    partition TEXT NOT NULL,
    cache_key TEXT NOT NULL,
    status INTEGER NOT NULL,
    headers TEXT NOT NULL,
    body BLOB NOT NULL,
    stored_at TEXT NOT NULL,
    PRIMARY KEY (partition, cache_key)
);
`

// Open opens (creating if needed) the cache storage at path.
func Open(path string, opts Options) (*Cache, error) {
	if opts.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	if opts.Inner == nil {
		opts.Inner = &http.Client{Timeout: 10 * time.Second}
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache storage: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{
		db:       sqlDB,
		inner:    opts.Inner,
		version:  opts.Version,
		base:     strings.TrimRight(opts.BaseURL, "/"),
		manifest: opts.Manifest,
	}, nil
}

// Close releases the underlying storage.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) staticPartition() string  { return "static-" + c.version }
func (c *Cache) runtimePartition() string { return "runtime-" + c.version }

func cacheKey(method, path, rawQuery string) string {
	if rawQuery != "" {
		return method + " " + path + "?" + rawQuery
	}
	return method + " " + path
}

// Install fetches the whole manifest into the static partition.
// All-or-nothing: any fetch failure aborts without touching previously
// activated partitions.
func (c *Cache) Install(ctx context.Context) error {
	type fetched struct {
		key     string
		status  int
		headers http.Header
		body    []byte
	}

	var assets []fetched
	for _, path := range c.manifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return fmt.Errorf("failed to build manifest request for %s: %w", path, err)
		}
		resp, err := c.inner.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch manifest asset %s: %w", path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read manifest asset %s: %w", path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("manifest asset %s returned %d", path, resp.StatusCode)
		}
		assets = append(assets, fetched{
			key:     cacheKey(http.MethodGet, path, ""),
			status:  resp.StatusCode,
			headers: resp.Header,
			body:    body,
		})
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin install transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cached_responses WHERE partition = $1`, c.staticPartition()); err != nil {
		return fmt.Errorf("failed to reset static partition: %w", err)
	}
	for _, a := range assets {
		headers, err := json.Marshal(a.headers)
		if err != nil {
			return fmt.Errorf("failed to encode headers: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO cached_responses (partition, cache_key, status, headers, body, stored_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.staticPartition(), a.key, a.status, string(headers), a.body,
			time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to store manifest asset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit install: %w", err)
	}

	slog.Info("cache installed", "version", c.version, "assets", len(assets))
	return nil
}

// Activate purges every partition whose version tag is not current and
// immediately wakes all subscribers, so no session needs a restart to
// be served from the new version.
func (c *Cache) Activate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM cached_responses WHERE partition NOT IN ($1, $2)
	`, c.staticPartition(), c.runtimePartition())
	if err != nil {
		return fmt.Errorf("failed to purge stale partitions: %w", err)
	}

	slog.Info("cache activated", "version", c.version)
	c.broadcast()
	return nil
}

// Partitions lists the distinct partition tags currently present.
func (c *Cache) Partitions(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT partition FROM cached_responses ORDER BY partition
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// Subscribe registers a wake channel. Each NotifyFlush (and Activate)
// delivers at most one pending signal per subscriber.
func (c *Cache) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

// NotifyFlush relays a flush wake-up to every subscriber. The cache
// knows nothing about queue contents; it only fans the signal out.
func (c *Cache) NotifyFlush() {
	c.broadcast()
}

func (c *Cache) broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func isShellPath(path string) bool {
	return path == "/" || path == "/present"
}

// Do applies the per-category policy:
//
//	non-GET            → straight to network, never intercepted
//	shell navigation   → network-first, cached shell fallback
//	/static/ prefix    → cache-first against the static partition
//	/poll/ reads       → network-first, runtime partition fallback
//	other GETs         → cache-first against the runtime partition
func (c *Cache) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.inner.Do(req)
	}

	path := req.URL.Path
	switch {
	case isShellPath(path):
		return c.networkFirst(req, c.staticPartition())
	case strings.HasPrefix(path, "/static/"):
		return c.cacheFirst(req, c.staticPartition())
	case strings.HasPrefix(path, "/poll/"):
		return c.networkFirst(req, c.runtimePartition())
	default:
		return c.cacheFirst(req, c.runtimePartition())
	}
}

func (c *Cache) cacheFirst(req *http.Request, partition string) (*http.Response, error) {
	if resp, ok := c.lookup(req, partition); ok {
		return resp, nil
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}
	return c.populate(req, partition, resp), nil
}

func (c *Cache) networkFirst(req *http.Request, partition string) (*http.Response, error) {
	resp, err := c.inner.Do(req)
	if err == nil {
		return c.populate(req, partition, resp), nil
	}

	if cached, ok := c.lookup(req, partition); ok {
		return cached, nil
	}
	return nil, err
}

// populate stores a successful response and hands back an equivalent
// response with a readable body. Store failures are logged, never
// surfaced; a full cache must not break a working network path.
func (c *Cache) populate(req *http.Request, partition string, resp *http.Response) *http.Response {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return resp
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp
	}

	headers, err := json.Marshal(resp.Header)
	if err != nil {
		slog.Warn("failed to encode cached headers", "error", err)
		return resp
	}

	key := cacheKey(req.Method, req.URL.Path, req.URL.RawQuery)
	_, err = c.db.Exec(`
		INSERT INTO cached_responses (partition, cache_key, status, headers, body, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (partition, cache_key) DO UPDATE SET
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body,
			stored_at = excluded.stored_at
	`, partition, key, resp.StatusCode, string(headers), body,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		slog.Warn("failed to populate cache", "key", key, "error", err)
	}

	return resp
}

func (c *Cache) lookup(req *http.Request, partition string) (*http.Response, bool) {
	key := cacheKey(req.Method, req.URL.Path, req.URL.RawQuery)

	var status int
	var headersRaw string
	var body []byte
	err := c.db.QueryRow(`
		SELECT status, headers, body FROM cached_responses
		WHERE partition = $1 AND cache_key = $2
	`, partition, key).Scan(&status, &headersRaw, &body)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}

	headers := http.Header{}
	if err := json.Unmarshal([]byte(headersRaw), &headers); err != nil {
		slog.Warn("corrupt cached headers", "key", key, "error", err)
		return nil, false
	}

	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     headers,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, true
}
