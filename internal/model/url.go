package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// schemePrefix matches an RFC 3986 scheme followed by a colon.
	schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

	// hostPortPrefix matches "host:port" input, which looks like a scheme but is not.
	hostPortPrefix = regexp.MustCompile(`^[^/:?#]+:\d+(?:[/?#]|$)`)
)

// NormalizeURL validates raw input and returns a canonical absolute URL.
//
// Input without a scheme gets "https://". The result always has an http or
// https scheme, a lowercase hostname containing at least one dot, a non-empty
// path and no fragment. NormalizeURL(NormalizeURL(x)) == NormalizeURL(x).
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	if !schemePrefix.MatchString(s) || hostPortPrefix.MatchString(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, err.Error())
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if !strings.Contains(strings.Trim(host, "."), ".") {
		return "", fmt.Errorf("%w: hostname %q has no dot", ErrInvalidURL, host)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// Hostname returns the lowercase hostname of an already normalized URL.
// It returns an empty string when the URL cannot be parsed.
func Hostname(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsHTTPS reports whether the URL uses the https scheme.
func IsHTTPS(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https")
}

// CacheKey derives the cache key for a hostname and schema version.
func CacheKey(hostname, version string) string {
	return strings.ToLower(hostname) + "::" + version
}
