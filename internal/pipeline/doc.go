// Package pipeline runs the evidence-collection stages of one analysis.
//
// A Pipeline executes Steps in order against a shared *Evidence. Parallel
// groups independent steps (domain age, homepage fetch, TLS probe) so they
// run concurrently. Every step is timed and the durations are recorded in
// Evidence.Timings.
//
// Enrichment steps follow one error convention: a failure that only means
// "this evidence is unavailable" wraps model.ErrUnavailable. The pipeline
// records such failures as warnings and moves on. Any other error is fatal
// unless WithContinueOnError is set.
//
// BatchProcessor analyzes many URLs with bounded concurrency using errgroup.
package pipeline
