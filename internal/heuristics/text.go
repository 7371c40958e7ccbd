package heuristics

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
)

// VisibleText returns the text of an HTML document with script, style and
// noscript blocks removed and whitespace collapsed. Unparsable input yields
// the empty string.
func VisibleText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// matchTerms returns the terms of list contained in folded, in list order.
func matchTerms(folded string, list []string) []string {
	found := make([]string, 0)
	for _, term := range list {
		if strings.Contains(folded, term) {
			found = append(found, term)
		}
	}
	return found
}

// fold normalizes text for case-insensitive matching.
func fold(s string) string {
	return cases.Fold().String(s)
}
