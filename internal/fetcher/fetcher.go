package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/trustscan/internal/model"
)

// CapturedHeaders is the allow-list of response headers kept as evidence.
var CapturedHeaders = []string{
	"strict-transport-security",
	"content-security-policy",
	"x-frame-options",
	"server",
	"x-powered-by",
}

// Result is the outcome of a homepage fetch. HTML is empty unless
// Info.HTMLAvailable is true.
type Result struct {
	Info model.FetchInfo
	HTML string
}

// Fetcher performs manual-redirect homepage fetches.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxRedirects int
	maxBodySize  int64
	timeout      time.Duration
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client. Its redirect policy should be
// http.ErrUseLastResponse, as returned by NewHTTPClient.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRedirects sets the number of redirect hops followed.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		f.maxRedirects = n
	}
}

// WithMaxBodySize caps the HTML read from the final response.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithTimeout bounds a whole Fetch call, redirects included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher. Defaults: 5 redirects, 500 KiB of HTML, 8 second
// timeout and a direct connection.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		maxRedirects: 5,
		maxBodySize:  500 * 1024,
		timeout:      8 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		d, _ := NewDialer("", f.timeout) //nolint:errcheck // a direct dialer cannot fail
		f.client = NewHTTPClient(d)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// Unavailable returns the FetchInfo of a failed fetch: no status, content
// type or headers, and no HTML.
func Unavailable(target string, chain []string) model.FetchInfo {
	if chain == nil {
		chain = []string{}
	}
	return model.FetchInfo{
		FinalURL:      target,
		RedirectChain: chain,
	}
}

// Fetch GETs target, following up to the configured number of redirects.
// Each resolved Location is appended to the redirect chain. When the hop
// limit is reached the last redirect response is returned as final.
//
// A network failure yields Unavailable info and an error wrapping
// model.ErrUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, target string) (Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	current := target
	chain := make([]string, 0, f.maxRedirects)

	for hop := 0; ; hop++ {
		resp, err := f.get(ctx, current)
		if err != nil {
			return Result{Info: Unavailable(current, chain)},
				fmt.Errorf("%w: fetch %s: %s", model.ErrUnavailable, current, err.Error())
		}

		if next, ok := f.nextHop(resp, current, hop); ok {
			discard(resp)
			chain = append(chain, next)
			f.logger.Debug("following redirect", "from", current, "to", next, "status", resp.StatusCode)
			current = next
			continue
		}

		return f.finish(resp, current, chain), nil
	}
}

// nextHop returns the resolved redirect target when resp is a redirect that
// should be followed.
func (f *Fetcher) nextHop(resp *http.Response, current string, hop int) (string, bool) {
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", false
	}
	loc := resp.Header.Get("Location")
	if loc == "" || hop >= f.maxRedirects {
		return "", false
	}

	base, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	next := base.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		return "", false
	}
	next.Fragment = ""
	return next.String(), true
}

func (f *Fetcher) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	return f.client.Do(req)
}

// finish turns the final response into a Result and closes its body.
func (f *Fetcher) finish(resp *http.Response, finalURL string, chain []string) Result {
	defer resp.Body.Close()

	status := resp.StatusCode
	contentType := resp.Header.Get("Content-Type")

	headers := make(map[string]string, len(CapturedHeaders))
	for _, name := range CapturedHeaders {
		if v := resp.Header.Get(name); v != "" {
			headers[name] = v
		}
	}

	res := Result{
		Info: model.FetchInfo{
			FinalURL:      finalURL,
			Status:        &status,
			ContentType:   &contentType,
			RedirectChain: chain,
			Headers:       headers,
		},
	}

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return res
	}

	body, err := readHTML(io.LimitReader(resp.Body, f.maxBodySize), contentType)
	if err != nil {
		f.logger.Debug("failed to read html body", "url", finalURL, "error", err)
		return res
	}

	res.HTML = body
	res.Info.HTMLAvailable = true
	return res
}

// readHTML decodes r to UTF-8 using the declared or sniffed charset.
func readHTML(r io.Reader, contentType string) (string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		decoded = r
	}
	b, err := io.ReadAll(decoded)
	if err != nil && len(b) == 0 {
		return "", err
	}
	return string(b), nil
}

// discard drains a little of the body so the connection can be reused, then
// closes it.
func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
	_ = resp.Body.Close()
}
