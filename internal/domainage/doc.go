// Package domainage resolves how long ago a domain was registered.
//
// The primary source is RDAP: the registration event of the registrable
// domain is located and converted to whole days. An optional WHOIS lookup
// is tried when RDAP yields nothing. Every failure is reported as
// model.ErrUnavailable; domain age is best-effort evidence.
package domainage
