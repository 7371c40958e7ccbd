// Package analyzer wires every stage of a trust analysis under one deadline.
//
// Engine.Analyze normalizes the URL, serves a live cache entry unless a
// refresh is forced, and otherwise collects evidence. Evidence comes from
// the remote agent when one is configured and answers in time, or from the
// local pipeline: domain age, homepage fetch and TLS probe in parallel, an
// optional trust-page crawl, heuristics, then the AI judge when enough of
// the deadline remains. The heuristic and AI scores are fused into the
// final result, which is cached and offered to the flagged-site aggregator.
//
// Only an invalid URL is reported as an error. Every enrichment failure is
// recorded as a warning and surfaces as an unknown verdict.
package analyzer
