// Package ratelimit throttles expensive operations per scope and client.
//
// Each (scope, client) pair owns a token bucket backed by golang.org/x/time/rate.
// A scope defines the bucket capacity and refill rate. Clients are identified
// by IP address taken from proxy headers in a fixed priority order, falling
// back to the connection's remote address and finally to a shared "unknown"
// bucket.
//
// Buckets are pruned once the table grows large so that memory stays bounded
// under a stream of distinct clients.
package ratelimit
