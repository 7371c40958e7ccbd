// Package agent delegates a whole analysis to a remote analyzer.
//
// The remote agent collects the same evidence as the local pipeline and
// answers with a snake_case document. Client validates that document and
// maps it into model.AgentSignals and model.AIJudgment. Delegation is an
// optimization: every failure wraps model.ErrUnavailable so the caller can
// fall back to the local pipeline.
package agent
