package heuristics

import (
	"fmt"
	"strings"

	"github.com/nao1215/trustscan/internal/domainage"
	"github.com/nao1215/trustscan/internal/model"
)

// Explainability item keys produced by Evaluate.
const (
	KeyHTTPS           = "https"
	KeyDomainAge       = "domain_age"
	KeyBusinessInfo    = "business_info"
	KeyMedicalClaims   = "medical_claims"
	KeySupportSignals  = "support_signals"
	KeyWellKnown       = "well_known"
	KeySecurityHeaders = "security_headers"
)

// Domain age thresholds in days.
const (
	EstablishedDomainDays = 365
	NewDomainDays         = 90
)

// businessGoodCount is the number of distinct business terms for a good verdict.
const businessGoodCount = 3

// Input is the evidence the heuristics are computed from.
type Input struct {
	// URL is the normalized URL that was analyzed.
	URL string

	// HTML is the homepage body. It is ignored unless Fetch.HTMLAvailable.
	HTML string

	// ExtraHTML are bodies of crawled trust pages.
	ExtraHTML []string

	DomainAgeDays *int
	TLS           model.TLSInfo
	Fetch         model.FetchInfo
}

// Signals is the outcome of Evaluate.
type Signals struct {
	// Items holds one explainability item per check, in a stable order.
	Items []model.ExplainabilityItem

	// WellKnown reports whether the registrable domain is on the allow-list.
	WellKnown bool

	// SecurityHeaders lists the scored security headers that were present.
	SecurityHeaders []string

	// Text is the visible text the keyword checks ran on.
	Text string
}

// Verdict returns the verdict of the item with key, or unknown.
func (s Signals) Verdict(key string) model.Verdict {
	for _, item := range s.Items {
		if item.Key == key {
			return item.Verdict
		}
	}
	return model.VerdictUnknown
}

// HasHeader reports whether the named security header was present.
func (s Signals) HasHeader(name string) bool {
	for _, h := range s.SecurityHeaders {
		if h == name {
			return true
		}
	}
	return false
}

// IsWellKnown reports whether host belongs to a well-known registrable domain.
func IsWellKnown(host string) bool {
	_, ok := WellKnownDomains[domainage.RegistrableDomain(host)]
	return ok
}

// Evaluate computes every heuristic check. It performs no I/O.
func Evaluate(in Input) Signals {
	host := model.Hostname(in.URL)
	sig := Signals{
		WellKnown:       IsWellKnown(host),
		SecurityHeaders: presentHeaders(in.Fetch),
	}

	htmlAvailable := in.Fetch.HTMLAvailable && in.HTML != ""
	if htmlAvailable {
		parts := []string{VisibleText(in.HTML)}
		for _, extra := range in.ExtraHTML {
			parts = append(parts, VisibleText(extra))
		}
		sig.Text = strings.TrimSpace(strings.Join(parts, " "))
	}
	folded := fold(sig.Text)

	sig.Items = append(sig.Items,
		httpsItem(in),
		domainAgeItem(in.DomainAgeDays),
		businessItem(folded, htmlAvailable),
		medicalItem(folded, htmlAvailable),
		supportItem(folded, htmlAvailable),
	)
	if sig.WellKnown {
		sig.Items = append(sig.Items, model.ExplainabilityItem{
			Key:     KeyWellKnown,
			Label:   "Well-known domain",
			Verdict: model.VerdictGood,
			Detail:  fmt.Sprintf("%s is an established, widely recognized domain.", domainage.RegistrableDomain(host)),
		})
	}
	sig.Items = append(sig.Items, securityHeadersItem(in.Fetch, sig.SecurityHeaders))

	return sig
}

func httpsItem(in Input) model.ExplainabilityItem {
	item := model.ExplainabilityItem{Key: KeyHTTPS, Label: "HTTPS"}

	if model.IsHTTPS(in.URL) {
		switch {
		case in.TLS.OK():
			item.Verdict = model.VerdictGood
			item.Detail = "The site serves a valid TLS certificate."
			if in.TLS.Issuer != "" {
				item.Detail = fmt.Sprintf("The site serves a valid TLS certificate issued by %s.", in.TLS.Issuer)
			}
		case in.TLS.Checked():
			item.Verdict = model.VerdictBad
			item.Detail = "The TLS handshake failed or the certificate is not trusted."
		case in.Fetch.Available() && model.IsHTTPS(in.Fetch.FinalURL):
			item.Verdict = model.VerdictGood
			item.Detail = "The homepage was retrieved over HTTPS."
		default:
			item.Verdict = model.VerdictUnknown
			item.Detail = "The TLS configuration could not be checked."
		}
		return item
	}

	if in.Fetch.Available() && model.IsHTTPS(in.Fetch.FinalURL) {
		item.Verdict = model.VerdictGood
		item.Detail = "The site redirects plain HTTP to HTTPS."
		return item
	}
	item.Verdict = model.VerdictWarn
	item.Detail = "The site is served over unencrypted HTTP."
	return item
}

func domainAgeItem(days *int) model.ExplainabilityItem {
	item := model.ExplainabilityItem{Key: KeyDomainAge, Label: "Domain age"}
	switch {
	case days == nil:
		item.Verdict = model.VerdictUnknown
		item.Detail = "The registration date could not be determined."
	case *days >= EstablishedDomainDays:
		item.Verdict = model.VerdictGood
		item.Detail = fmt.Sprintf("Registered %d days ago (about %d years).", *days, *days/365)
	case *days >= NewDomainDays:
		item.Verdict = model.VerdictWarn
		item.Detail = fmt.Sprintf("Registered %d days ago, less than a year.", *days)
	default:
		item.Verdict = model.VerdictBad
		item.Detail = fmt.Sprintf("Registered only %d days ago.", *days)
	}
	return item
}

func businessItem(folded string, htmlAvailable bool) model.ExplainabilityItem {
	item := model.ExplainabilityItem{Key: KeyBusinessInfo, Label: "Business information"}
	if !htmlAvailable {
		item.Verdict = model.VerdictUnknown
		item.Detail = "Page content was unavailable."
		return item
	}

	found := matchTerms(folded, BusinessTerms)
	switch {
	case len(found) >= businessGoodCount:
		item.Verdict = model.VerdictGood
	case len(found) > 0:
		item.Verdict = model.VerdictWarn
	default:
		item.Verdict = model.VerdictBad
		item.Detail = "No company, contact or policy information was found."
		return item
	}
	item.Detail = fmt.Sprintf("Found %d business information terms: %s.", len(found), strings.Join(found, ", "))
	return item
}

func medicalItem(folded string, htmlAvailable bool) model.ExplainabilityItem {
	item := model.ExplainabilityItem{Key: KeyMedicalClaims, Label: "Medical claims"}
	if !htmlAvailable {
		item.Verdict = model.VerdictUnknown
		item.Detail = "Page content was unavailable."
		return item
	}

	found := matchTerms(folded, MedicalTerms)
	if len(found) > 0 {
		item.Verdict = model.VerdictWarn
		item.Detail = fmt.Sprintf("Health claim wording found: %s.", strings.Join(found, ", "))
		return item
	}
	item.Verdict = model.VerdictGood
	item.Detail = "No health claim wording was found."
	return item
}

func supportItem(folded string, htmlAvailable bool) model.ExplainabilityItem {
	item := model.ExplainabilityItem{Key: KeySupportSignals, Label: "Customer support"}
	if !htmlAvailable {
		item.Verdict = model.VerdictUnknown
		item.Detail = "Page content was unavailable."
		return item
	}

	found := matchTerms(folded, SupportTerms)
	if len(found) > 0 {
		item.Verdict = model.VerdictGood
		item.Detail = fmt.Sprintf("Support channels mentioned: %s.", strings.Join(found, ", "))
		return item
	}
	item.Verdict = model.VerdictWarn
	item.Detail = "No customer support channel was mentioned."
	return item
}

func presentHeaders(fetch model.FetchInfo) []string {
	present := make([]string, 0, len(SecurityHeaders))
	for _, name := range SecurityHeaders {
		if v, ok := fetch.Header(name); ok && strings.TrimSpace(v) != "" {
			present = append(present, name)
		}
	}
	return present
}

func securityHeadersItem(fetch model.FetchInfo, present []string) model.ExplainabilityItem {
	item := model.ExplainabilityItem{Key: KeySecurityHeaders, Label: "Security headers"}
	switch {
	case !fetch.Available():
		item.Verdict = model.VerdictUnknown
		item.Detail = "Response headers were unavailable."
	case len(present) == len(SecurityHeaders):
		item.Verdict = model.VerdictGood
		item.Detail = "HSTS, CSP and X-Frame-Options are all set."
	case len(present) > 0:
		item.Verdict = model.VerdictWarn
		item.Detail = fmt.Sprintf("Only %s set.", strings.Join(present, ", "))
	default:
		item.Verdict = model.VerdictBad
		item.Detail = "None of HSTS, CSP or X-Frame-Options is set."
	}
	return item
}
