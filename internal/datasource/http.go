package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dashboard-go/internal/table"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches a CSV or XLSX export from a fixed URL, e.g. a published
// spreadsheet.

// DefaultHTTPTimeout bounds a remote fetch when none is configured.
const DefaultHTTPTimeout = 30 * time.Second

// HTTP downloads a table from URL.
type HTTP struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func newHTTP(cfg Config) (Source, error) {
	u := cfg.String("url")
	if u == "" {
		return nil, fmt.Errorf("url is required")
	}
	if _, err := url.ParseRequestURI(u); err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", u, err)
	}
	return &HTTP{URL: u, Timeout: cfg.Duration("timeout", DefaultHTTPTimeout)}, nil
}

func (h *HTTP) Name() string { return "http:" + h.URL }

func (h *HTTP) Load(ctx context.Context) (*table.Table, error) {
	client := h.Client
	if client == nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	path := h.URL
	if u, err := url.Parse(h.URL); err == nil {
		path = u.Path
	}
	return Decode(resp.Body, DetectFormat(path, resp.Header.Get("Content-Type")))
}
