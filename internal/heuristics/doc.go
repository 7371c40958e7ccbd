// Package heuristics derives the rule-based explainability items of an
// analysis.
//
// Every check is a plain keyword membership test or a threshold so that a
// reader can reproduce each verdict by hand. The keyword lists in terms.go
// are part of what users see and are matched as case-insensitive substrings,
// without stemming.
package heuristics
