package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/trustscan/internal/fetcher"
)

func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title and description", func(t *testing.T) {
		t.Parallel()

		page := `<html><head><title> Acme Store </title>
			<meta name="Description" content="Quality goods since 1999"></head><body></body></html>`
		parser, err := NewParser("https://acme.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(page))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Acme Store" {
			t.Errorf("expected title 'Acme Store', got %q", result.Title)
		}
		if result.Description != "Quality goods since 1999" {
			t.Errorf("unexpected description %q", result.Description)
		}
	})

	t.Run("classifies links", func(t *testing.T) {
		t.Parallel()

		page := `<html><body>
			<a href="/about">About</a>
			<a href="https://www.acme.example/contact#form">Contact</a>
			<a href="https://other.example/x">Other</a>
			<a href="/about">About again</a>
			<a href="javascript:void(0)">JS</a>
			<a href="tel:123">Call</a>
			<a href="#top">Top</a>
		</body></html>`
		parser, err := NewParser("https://acme.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(page))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		wantInternal := []string{"https://acme.example/about", "https://www.acme.example/contact"}
		if !slices.Equal(result.InternalLinks, wantInternal) {
			t.Errorf("internal = %v, want %v", result.InternalLinks, wantInternal)
		}
		if !slices.Equal(result.ExternalLinks, []string{"https://other.example/x"}) {
			t.Errorf("external = %v", result.ExternalLinks)
		}
	})

	t.Run("extracts emails and skips scripts", func(t *testing.T) {
		t.Parallel()

		page := `<html><body>
			<p>Write to Support@Acme.example or sales@acme.example.</p>
			<a href="mailto:help@acme.example?subject=hi">Mail</a>
			<script>var x = "hidden@tracker.example";</script>
		</body></html>`
		parser, err := NewParser("https://acme.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(page))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		want := []string{"support@acme.example", "sales@acme.example", "help@acme.example"}
		if !slices.Equal(result.Emails, want) {
			t.Errorf("emails = %v, want %v", result.Emails, want)
		}
	})
}

func TestSpider_SelectTrustLinks(t *testing.T) {
	t.Parallel()

	links := []string{
		"https://acme.example/",
		"https://acme.example/products",
		"https://acme.example/help-center",
		"https://acme.example/terms.pdf",
		"https://acme.example/contact-us",
		"https://acme.example/about",
		"https://acme.example/about/",
		"https://acme.example/privacy-policy",
		"https://acme.example/shipping",
	}

	tests := []struct {
		name     string
		maxPages int
		want     []string
	}{
		{
			name:     "ranks by keyword and deduplicates",
			maxPages: 10,
			want: []string{
				"https://acme.example/about",
				"https://acme.example/contact-us",
				"https://acme.example/privacy-policy",
				"https://acme.example/shipping",
				"https://acme.example/help-center",
			},
		},
		{
			name:     "honors the page cap",
			maxPages: 2,
			want: []string{
				"https://acme.example/about",
				"https://acme.example/contact-us",
			},
		},
		{
			name:     "zero pages",
			maxPages: 0,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewSpider(nil, WithMaxPages(tt.maxPages))
			got := s.SelectTrustLinks("https://acme.example/", links)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpider_Crawl(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>Our company was founded in 2001.</body></html>")
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>Phone: 555-0100</body></html>")
	})
	mux.HandleFunc("/refund", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/blog", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	homepage := `<html><body>
		<a href="/blog">Blog</a>
		<a href="/about">About</a>
		<a href="/contact">Contact</a>
		<a href="/refund">Refunds</a>
	</body></html>`

	spider := NewSpider(fetcher.New(), WithMaxPages(5), WithConcurrency(2))
	res, err := spider.Crawl(context.Background(), srv.URL+"/", homepage)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if res.Summary.Requested != 3 {
		t.Errorf("requested = %d, want 3", res.Summary.Requested)
	}
	if res.Summary.Fetched != 2 {
		t.Errorf("fetched = %d, want 2", res.Summary.Fetched)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
	if len(res.Summary.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(res.Summary.Pages))
	}
	last := res.Summary.Pages[2]
	if last.URL != srv.URL+"/refund" || last.OK || last.Status != http.StatusNotFound {
		t.Errorf("unexpected refund page %+v", last)
	}
	if len(res.HTML) != 2 || !strings.Contains(res.HTML[0], "founded") {
		t.Errorf("unexpected html bodies %v", res.HTML)
	}
}

func TestSpider_CrawlUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/"
	srv.Close()

	spider := NewSpider(fetcher.New())
	res, err := spider.Crawl(context.Background(), base, `<a href="/about">About</a>`)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Summary.Requested != 1 || res.Summary.Fetched != 0 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
	if res.Summary.Pages[0].OK || res.Summary.Pages[0].Status != 0 {
		t.Errorf("unexpected page %+v", res.Summary.Pages[0])
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.pdf", "/docs/Terms.PDF", true},
		{"*.pdf", "/terms", false},
		{"/account/*", "/account/login", true},
		{"/account/*", "/account", true},
		{"/account/*", "/accounts", false},
		{"/cart?", "/cart1", true},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
