// Package fetch wraps the HTTP plumbing the resolvers share: page fetches
// with browser-like headers, streaming opens for media bytes, and the
// explicit cookie session the Facebook resolver threads through its calls.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultUserAgent is sent on every upstream request. The platforms serve
// stripped-down pages to clients that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultTimeout bounds every upstream page fetch. Media streams are opened
// without a deadline and rely on request-context cancellation instead.
const DefaultTimeout = 30 * time.Second

// Session carries cookies and a referer captured from a priming request so
// the cookie lifecycle is an explicit input rather than shared client state.
type Session struct {
	Cookie  string
	Referer string
}

// Client issues upstream requests with browser-like headers.
type Client struct {
	page   *http.Client
	stream *http.Client
	log    *zap.SugaredLogger
}

// NewClient creates a Client. A zero timeout falls back to DefaultTimeout.
func NewClient(timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	return &Client{
		page:   &http.Client{Timeout: timeout, Transport: transport},
		stream: &http.Client{Timeout: 0, Transport: transport},
		log:    log.Named("fetch"),
	}
}

func browserHeaders(req *http.Request, s *Session) {
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if s != nil {
		if s.Cookie != "" {
			req.Header.Set("Cookie", s.Cookie)
		}
		if s.Referer != "" {
			req.Header.Set("Referer", s.Referer)
		}
	}
}

// Page fetches a page and returns its full body. The optional session adds
// cookies and a referer to the request.
func (c *Client) Page(ctx context.Context, url string, s *Session) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	browserHeaders(req, s)

	resp, err := c.page.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}
	return body, nil
}

// Prime requests a platform's home page and captures its Set-Cookie headers
// into a session for reuse on the subsequent page fetch. Best-effort: callers
// treat a nil session as "no cookies".
func (c *Client) Prime(ctx context.Context, url string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	browserHeaders(req, nil)

	resp, err := c.page.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	var pairs []string
	for _, sc := range resp.Header.Values("Set-Cookie") {
		pair, _, _ := strings.Cut(sc, ";")
		pair = strings.TrimSpace(pair)
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	c.log.Debugw("primed session cookies", "url", url, "cookies", len(pairs))
	return &Session{Cookie: strings.Join(pairs, "; "), Referer: url}, nil
}

// Open starts a streaming GET for media bytes. The returned body is not
// buffered; the caller owns closing it. Cancellation of ctx aborts the
// transfer, so a disconnected client stops the upstream read.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("media fetch failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}
