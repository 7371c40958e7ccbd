package crawler

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts links and page metadata from HTML.
type Parser struct {
	// baseURL resolves relative links.
	baseURL *url.URL
}

// ParseResult holds everything extracted from one page.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Description is the content of <meta name="description">.
	Description string

	// InternalLinks are absolute links on the same host as the base URL.
	InternalLinks []string

	// ExternalLinks are absolute links to other hosts.
	ExternalLinks []string

	// Emails are the distinct addresses found in text and mailto links.
	Emails []string
}

// NewParser creates a parser that resolves links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the document once and collects links, title, description and
// email addresses. Links are deduplicated and keep document order.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
	}
	seen := make(map[string]bool)
	var text strings.Builder
	var mailto []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if strings.EqualFold(getAttr(n, "name"), "description") && result.Description == "" {
					result.Description = strings.TrimSpace(getAttr(n, "content"))
				}
			case "a":
				href := strings.TrimSpace(getAttr(n, "href"))
				if addr, ok := strings.CutPrefix(strings.ToLower(href), "mailto:"); ok {
					if i := strings.IndexByte(addr, '?'); i >= 0 {
						addr = addr[:i]
					}
					mailto = append(mailto, addr)
					break
				}
				if link := p.resolveURL(href); link != "" && !seen[link] {
					seen[link] = true
					p.classifyLink(link, result)
				}
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Emails = extractEmails(text.String(), mailto)
	return result, nil
}

// resolveURL resolves href against the base URL and drops the fragment.
// Non-navigational schemes resolve to "".
func (p *Parser) resolveURL(href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// classifyLink sorts a link into internal or external by host. A www.
// prefix on either side is ignored.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	if sameSite(u.Hostname(), p.baseURL.Hostname()) {
		result.InternalLinks = append(result.InternalLinks, link)
		return
	}
	result.ExternalLinks = append(result.ExternalLinks, link)
}

func sameSite(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a != "" && a == b
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// extractEmails returns the distinct lowercase addresses in text followed by
// any mailto addresses not already seen.
func extractEmails(text string, extra []string) []string {
	seen := make(map[string]bool)
	unique := make([]string, 0)
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] || !emailRegex.MatchString(addr) {
			return
		}
		seen[addr] = true
		unique = append(unique, addr)
	}
	for _, m := range emailRegex.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range extra {
		add(m)
	}
	return unique
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
