// Package cache stores analysis results by hostname and schema version.
//
// Lookups check an in-process map first and then an optional durable Store.
// The durable tier is advisory: its errors are logged and never fail a
// request, and without one the cache works from memory alone. Records are
// immutable once stored; callers always receive copies.
package cache
