package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/trustscan/internal/fetcher"
	"github.com/nao1215/trustscan/internal/model"
)

// TrustKeywords are the path keywords that mark a trust page, in ranking
// order.
var TrustKeywords = []string{
	"about",
	"contact",
	"privacy",
	"terms",
	"refund",
	"return",
	"shipping",
	"support",
	"faq",
	"help",
	"company",
	"legal",
	"imprint",
	"review",
}

// defaultIgnorePatterns skips links that never lead to an HTML page.
var defaultIgnorePatterns = []string{
	"*.pdf", "*.jpg", "*.jpeg", "*.png", "*.gif", "*.svg", "*.zip", "*.mp4",
}

// PageFetcher fetches a single page. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, target string) (fetcher.Result, error)
}

// Result is the outcome of a crawl.
type Result struct {
	// Summary is the crawl summary exposed in the evidence bundle.
	Summary model.CrawlSummary

	// HTML holds the bodies of the fetched pages that returned HTML.
	HTML []string
}

// Spider crawls the trust pages linked from a homepage.
type Spider struct {
	fetcher        PageFetcher
	maxPages       int
	concurrency    int
	ignorePatterns []string
	logger         *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages caps the number of trust pages fetched.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithConcurrency sets how many pages are fetched at once.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = n
	}
}

// WithIgnorePatterns replaces the path glob patterns that are never fetched.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = l
	}
}

// NewSpider creates a Spider that fetches pages with f.
func NewSpider(f PageFetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:        f,
		maxPages:       6,
		concurrency:    3,
		ignorePatterns: defaultIgnorePatterns,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Crawl selects trust pages from homepage, which was served at baseURL, and
// fetches them. Per-page failures are recorded, not returned. The only error
// is an unparsable base URL or homepage.
func (s *Spider) Crawl(ctx context.Context, baseURL, homepage string) (Result, error) {
	parser, err := NewParser(baseURL)
	if err != nil {
		return Result{}, err
	}
	parsed, err := parser.Parse(strings.NewReader(homepage))
	if err != nil {
		return Result{}, err
	}

	targets := s.SelectTrustLinks(baseURL, parsed.InternalLinks)
	res := Result{
		Summary: model.CrawlSummary{
			Requested: len(targets),
			Pages:     make([]model.CrawlPage, len(targets)),
		},
	}
	if len(targets) == 0 {
		return res, nil
	}

	// Each goroutine writes only its own index.
	bodies := make([]string, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			fr, err := s.fetcher.Fetch(gctx, target)
			page := model.CrawlPage{URL: target}
			if err != nil {
				s.logger.Debug("trust page fetch failed", "url", target, "error", err)
			} else if fr.Info.Status != nil {
				page.Status = *fr.Info.Status
				page.OK = page.Status >= 200 && page.Status < 300
			}

			res.Summary.Pages[i] = page
			if page.OK && fr.Info.HTMLAvailable {
				bodies[i] = fr.HTML
			}
			// Page failures never cancel sibling fetches.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	for i, page := range res.Summary.Pages {
		if page.OK {
			res.Summary.Fetched++
		}
		if bodies[i] != "" {
			res.HTML = append(res.HTML, bodies[i])
		}
	}

	s.logger.Debug("crawl finished", "requested", res.Summary.Requested, "fetched", res.Summary.Fetched)
	return res, nil
}

// SelectTrustLinks returns up to maxPages same-site links whose path
// contains a trust keyword, ranked by the first keyword matched and then by
// document order. The base page itself and ignored paths are excluded.
func (s *Spider) SelectTrustLinks(baseURL string, links []string) []string {
	type candidate struct {
		url   string
		rank  int
		order int
	}

	seen := map[string]bool{canonical(baseURL): true}
	candidates := make([]candidate, 0)
	for i, link := range links {
		key := canonical(link)
		if seen[key] {
			continue
		}
		seen[key] = true

		u, err := url.Parse(link)
		if err != nil || !s.shouldCrawl(u.Path) {
			continue
		}
		rank := keywordRank(u.Path)
		if rank < 0 {
			continue
		}
		candidates = append(candidates, candidate{url: link, rank: rank, order: i})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].rank != candidates[b].rank {
			return candidates[a].rank < candidates[b].rank
		}
		return candidates[a].order < candidates[b].order
	})

	limit := min(len(candidates), max(s.maxPages, 0))
	out := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.url)
	}
	return out
}

// keywordRank returns the index of the first trust keyword in p, or -1.
func keywordRank(p string) int {
	lower := strings.ToLower(p)
	for i, kw := range TrustKeywords {
		if strings.Contains(lower, kw) {
			return i
		}
	}
	return -1
}

// canonical normalizes a URL for deduplication: no fragment, no trailing
// slash, lowercase host and no www. prefix.
func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// shouldCrawl reports whether a path passes the ignore patterns.
func (s *Spider) shouldCrawl(p string) bool {
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}
	return true
}

// matchPattern matches a path against a glob. "*.ext" patterns match by
// extension, "/dir/*" patterns match the whole subtree.
func matchPattern(pattern, p string) bool {
	lower := strings.ToLower(p)
	if ext, ok := strings.CutPrefix(pattern, "*."); ok {
		return strings.HasSuffix(lower, "."+ext)
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return lower == prefix || strings.HasPrefix(lower, prefix+"/")
	}
	matched, err := path.Match(pattern, lower)
	return err == nil && matched
}
