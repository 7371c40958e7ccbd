package ai

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Evidence is everything the AI judge is shown about a site.
type Evidence struct {
	URL           string            `json:"url"`
	Hostname      string            `json:"hostname"`
	Title         string            `json:"title,omitempty"`
	Description   string            `json:"description,omitempty"`
	Text          string            `json:"-"`
	HTMLAvailable bool              `json:"htmlAvailable"`
	DomainAgeDays *int              `json:"domainAgeDays"`
	WellKnown     bool              `json:"wellKnown"`
	TLSSupported  *bool             `json:"tlsSupported"`
	HTTPStatus    *int              `json:"httpStatus"`
	ContentType   *string           `json:"contentType"`
	RedirectChain []string          `json:"redirectChain"`
	Headers       map[string]string `json:"headers"`
	PagesFetched  *int              `json:"pagesFetched,omitempty"`
	ContactEmails []string          `json:"contactEmails,omitempty"`
}

const promptTemplate = `You are a careful consumer-protection analyst estimating how trustworthy a website is.

Respond ONLY with a single JSON object using exactly this schema:
{
  "assessment": string,
  "legitimacy_score": number from 0 to 100,
  "confidence": "high" | "medium" | "low",
  "verdict": "legitimate" | "caution" | "suspicious" | "likely_deceptive",
  "category": string,
  "detected_issues": [string],
  "trust_signals": {"positive": [string], "negative": [string]},
  "platform": string,
  "product_legitimacy": string,
  "business_identity": string,
  "summary": string,
  "recommendation": string
}

Language rules:
- Use neutral, non-accusatory wording. Never use the words "scam", "fraud" or "fake".
- Describe observable evidence, not intent.

Scoring rules:
- Base the score only on the evidence below. Do not assume facts that are not shown.
- A domain younger than 90 days must not score above 60.
- If the page text is unavailable, confidence must not be "high" and the score must not exceed 65.
- If the domain age is unknown and the site is not a well-known brand, confidence must not be "high".
- Unsupported medical or health claims are a negative signal.
- Clear company identity, contact details and policies are positive signals.

Protocol: %s
Evidence:
%s

Page text (may be truncated):
%s
`

// BuildPrompt renders ev into the judge prompt. The page text is cut to
// maxChars runes; a non-positive maxChars keeps it whole.
func BuildPrompt(ev Evidence, maxChars int) string {
	protocol := "unknown"
	if u, err := url.Parse(ev.URL); err == nil && u.Scheme != "" {
		protocol = u.Scheme
	}

	evidence, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		evidence = []byte("{}")
	}

	text := strings.TrimSpace(ev.Text)
	switch {
	case !ev.HTMLAvailable || text == "":
		text = "(unavailable)"
	case maxChars > 0:
		text = truncateRunes(text, maxChars)
	}

	return fmt.Sprintf(promptTemplate, protocol, evidence, text)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
