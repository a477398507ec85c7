// Package follower resolves redirect chains server-side. Starting from a
// URL it walks Location headers and HTML meta-refresh directives, recording
// one Hop per fetched URL, until the chain ends, cycles, errors, or hits
// the hop ceiling.
package follower

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/afftrack/linktrack/internal/domain"
	"github.com/afftrack/linktrack/internal/logger"
)

// Transport defaults for the follower's HTTP client.
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// maxBodyBytes bounds how much of an HTML body is read when scanning for a
// meta-refresh directive.
const maxBodyBytes = 512 * 1024

// Config configures a Follower.
type Config struct {
	// MaxHops is the hop ceiling. A chain cut off by the ceiling reports
	// Completed=false, never an error.
	MaxHops int
	// HopTimeout bounds each individual hop fetch so one unresponsive
	// target cannot stall the chain.
	HopTimeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
	// RetryHops enables a single retry of a failed hop fetch.
	RetryHops bool
}

// Result is the outcome of following one chain. FinalURL is always the
// best-effort destination; Follow never returns an error.
type Result struct {
	FinalURL  string
	Hops      []domain.Hop
	Completed bool
}

// Follower walks redirect chains with redirect-following disabled on the
// underlying client so every hop is observed.
type Follower struct {
	client *http.Client
	cfg    Config
	log    logger.Logger
}

// New creates a Follower with its own HTTP client.
func New(cfg Config, log logger.Logger) *Follower {
	transport := &http.Transport{
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.HopTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse // do not follow redirects
		},
	}

	return NewWithClient(client, cfg, log)
}

// NewWithClient creates a Follower using the given HTTP client.
// The client must not follow redirects on its own.
func NewWithClient(client *http.Client, cfg Config, log logger.Logger) *Follower {
	return &Follower{client: client, cfg: cfg, log: log}
}

// Follow resolves the chain starting at startURL. Each fetched URL is
// recorded as a Hop in traversal order. Fetch failures are recorded on the
// failing hop and terminate the chain; they are never raised to the caller.
func (f *Follower) Follow(ctx context.Context, startURL string) Result {
	hops := make([]domain.Hop, 0, f.cfg.MaxHops)
	visited := make(map[string]bool, f.cfg.MaxHops)
	current := startURL

	for i := 0; ; i++ {
		if i >= f.cfg.MaxHops {
			// Ceiling reached with an unfetched target remaining.
			f.log.Debug("Hop ceiling reached",
				logger.String("start_url", startURL),
				logger.Int("max_hops", f.cfg.MaxHops),
			)
			return Result{FinalURL: current, Hops: hops, Completed: false}
		}

		visited[current] = true

		hop, next, err := f.fetchHop(ctx, i, current)
		hops = append(hops, hop)

		if err != nil {
			f.log.Warn("Hop fetch failed",
				logger.String("url", current),
				logger.Int("hop", i),
				logger.Error(err),
			)
			return Result{FinalURL: current, Hops: hops, Completed: false}
		}

		if next == "" {
			// No further redirect found: chain is complete.
			return Result{FinalURL: current, Hops: hops, Completed: true}
		}

		if next == current || visited[next] {
			// No-op redirect or cycle: treat as completion, not an error.
			return Result{FinalURL: current, Hops: hops, Completed: true}
		}

		current = next
	}
}

// fetchHop fetches rawURL and returns the recorded Hop plus the next URL in
// the chain ("" when the chain ends here). The returned error is also
// embedded in the Hop's Error field.
func (f *Follower) fetchHop(ctx context.Context, index int, rawURL string) (domain.Hop, string, error) {
	hop := domain.Hop{
		Index:     index,
		URL:       rawURL,
		BaseURL:   baseURL(rawURL),
		Params:    queryParams(rawURL),
		Timestamp: time.Now().UTC(),
	}

	start := time.Now()
	resp, err := f.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		hop.LatencyMs = time.Since(start).Milliseconds()
		hop.Error = err.Error()
		return hop, "", err
	}

	status := resp.StatusCode
	headers := headerSnapshot(resp.Header)
	location := resp.Header.Get("Location")
	_ = resp.Body.Close()

	next := ""
	if isRedirectStatus(status) && location != "" {
		next = resolveRef(rawURL, location)
	} else {
		// HEAD gave no usable redirect. Some servers only reveal the
		// Location or a meta-refresh body on GET.
		next, status, headers, err = f.fetchHopGet(ctx, rawURL, status, headers)
	}

	hop.LatencyMs = time.Since(start).Milliseconds()
	hop.Status = &status
	hop.Headers = headers
	if err != nil {
		hop.Error = err.Error()
		return hop, "", err
	}

	return hop, next, nil
}

// fetchHopGet is the GET fallback for hops whose HEAD response carried no
// redirect. It returns the next URL (possibly from a meta-refresh tag) and
// the GET status/headers, which replace the HEAD ones on the hop.
func (f *Follower) fetchHopGet(
	ctx context.Context,
	rawURL string,
	headStatus int,
	headHeaders map[string]string,
) (string, int, map[string]string, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", headStatus, headHeaders, err
	}
	defer func() { _ = resp.Body.Close() }()

	status := resp.StatusCode
	headers := headerSnapshot(resp.Header)

	if isRedirectStatus(status) {
		if location := resp.Header.Get("Location"); location != "" {
			return resolveRef(rawURL, location), status, headers, nil
		}
		return "", status, headers, nil
	}

	if status == http.StatusOK && isHTML(resp.Header.Get("Content-Type")) {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return "", status, headers, nil
		}
		if target := extractMetaRefresh(body); target != "" {
			return resolveRef(rawURL, target), status, headers, nil
		}
	}

	return "", status, headers, nil
}

// do issues a single request with the hop timeout and browser user agent.
// When RetryHops is set, a failed request is retried exactly once.
func (f *Follower) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	resp, err := f.doOnce(ctx, method, rawURL)
	if err != nil && f.cfg.RetryHops && ctx.Err() == nil {
		resp, err = f.doOnce(ctx, method, rawURL)
	}
	return resp, err
}

func (f *Follower) doOnce(ctx context.Context, method, rawURL string) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.HopTimeout)

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, http.NoBody)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	// Tie the context's lifetime to the response body.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelReadCloser cancels the request context when the body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// isRedirectStatus reports whether code is a redirect. Only [300,400) is
// treated as a redirect.
func isRedirectStatus(code int) bool {
	return code >= http.StatusMultipleChoices && code < http.StatusBadRequest
}

// isHTML reports whether a Content-Type header denotes an HTML document.
func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// resolveRef resolves ref (possibly relative) against base. An unparseable
// reference falls back to the raw ref string.
func resolveRef(base, ref string) string {
	baseU, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refU, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseU.ResolveReference(refU).String()
}

// baseURL strips query and fragment, keeping origin and path.
func baseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// queryParams extracts the query parameters of rawURL. Duplicate keys
// collapse to the first occurrence.
func queryParams(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	values := u.Query()
	if len(values) == 0 {
		return nil
	}
	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params
}

// headerSnapshot flattens response headers to single values.
func headerSnapshot(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	snap := make(map[string]string, len(h))
	for key := range h {
		snap[key] = h.Get(key)
	}
	return snap
}
