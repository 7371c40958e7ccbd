package heuristics

// BusinessTerms signal that a site publishes information about who runs it.
var BusinessTerms = []string{
	"about",
	"contact",
	"company",
	"who we are",
	"privacy",
	"terms",
	"refund",
	"returns",
	"shipping",
	"support",
}

// MedicalTerms imply health claims.
var MedicalTerms = []string{
	"cure",
	"treat",
	"diagnose",
	"remedy",
	"miracle",
	"fda",
	"clinical",
	"disease",
	"weight loss",
	"supplement",
}

// SupportTerms signal that customers can reach the seller.
var SupportTerms = []string{
	"support",
	"help",
	"contact",
	"returns",
	"refund",
	"shipping",
	"email",
	"phone",
}

// SecurityHeaders are the response headers scored by the security headers
// check, lowercase.
var SecurityHeaders = []string{
	"strict-transport-security",
	"content-security-policy",
	"x-frame-options",
}

// WellKnownDomains is the closed allow-list of established registrable
// domains.
var WellKnownDomains = map[string]struct{}{
	// technology
	"google.com":     {},
	"youtube.com":    {},
	"microsoft.com":  {},
	"apple.com":      {},
	"github.com":     {},
	"mozilla.org":    {},
	"wikipedia.org":  {},
	"cloudflare.com": {},
	"adobe.com":      {},
	"dropbox.com":    {},
	"zoom.us":        {},

	// social
	"facebook.com":  {},
	"instagram.com": {},
	"whatsapp.com":  {},
	"x.com":         {},
	"twitter.com":   {},
	"linkedin.com":  {},
	"reddit.com":    {},

	// finance
	"paypal.com":          {},
	"stripe.com":          {},
	"visa.com":            {},
	"mastercard.com":      {},
	"americanexpress.com": {},
	"chase.com":           {},
	"bankofamerica.com":   {},
	"wellsfargo.com":      {},

	// retail
	"amazon.com":   {},
	"amazon.co.uk": {},
	"amazon.de":    {},
	"ebay.com":     {},
	"walmart.com":  {},
	"target.com":   {},
	"bestbuy.com":  {},
	"ikea.com":     {},
	"etsy.com":     {},
	"shopify.com":  {},
	"alibaba.com":  {},

	// media
	"netflix.com":     {},
	"spotify.com":     {},
	"bbc.co.uk":       {},
	"bbc.com":         {},
	"cnn.com":         {},
	"nytimes.com":     {},
	"reuters.com":     {},
	"theguardian.com": {},
}
