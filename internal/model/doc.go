// Package model defines the data structures shared by every stage of a
// trust analysis.
//
// This package contains the following main types:
//   - AnalysisResult: the public response of one analysis
//   - AgentSignals: the raw evidence bundle gathered for a website
//   - AIJudgment: the validated verdict returned by the AI judge
//   - ExplainabilityItem: one verdict-tagged reason shown to users
//   - FlaggedSiteRecord: the aggregated record of a flagged hostname
//
// It also owns URL normalization and the score to status mapping, since
// both are pure functions that every other package relies on.
package model
