// Package fetcher retrieves a website's homepage and probes its TLS
// endpoint.
//
// Redirects are followed manually so that every hop is recorded. Only a
// fixed allow-list of security relevant headers is captured, and HTML is
// returned only for text/html responses, capped in size. Network failures
// never escape as panics or partial state: they are reported as
// model.ErrUnavailable together with an "unavailable" FetchInfo.
//
// Outbound connections can be routed through a SOCKS5 proxy.
package fetcher
