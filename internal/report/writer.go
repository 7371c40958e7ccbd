package report

import (
	"io"
	"strings"

	"github.com/nao1215/trustscan/internal/model"
)

// Writer renders reports to its configured destination.
type Writer interface {
	// Write outputs one analysis result and returns the bytes written.
	Write(result *model.AnalysisResult) (int, error)

	// WriteFlagged outputs one page of flagged sites.
	WriteFlagged(page model.FlaggedPage) (int, error)
}

// MultiWriter writes to several Writers in order and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to all configured Writers.
func (m *MultiWriter) Write(result *model.AnalysisResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteFlagged outputs the page to all configured Writers.
func (m *MultiWriter) WriteFlagged(page model.FlaggedPage) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteFlagged(page)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// verdictCounts tallies explainability verdicts in display order.
type verdictCounts struct {
	Good, Warn, Bad, Unknown int
}

func countVerdicts(items []model.ExplainabilityItem) verdictCounts {
	var c verdictCounts
	for _, item := range items {
		switch item.Verdict {
		case model.VerdictGood:
			c.Good++
		case model.VerdictWarn:
			c.Warn++
		case model.VerdictBad:
			c.Bad++
		default:
			c.Unknown++
		}
	}
	return c
}

func (c verdictCounts) total() int {
	return c.Good + c.Warn + c.Bad + c.Unknown
}

// sourceOf describes where the evidence came from.
func sourceOf(r *model.AnalysisResult) string {
	source := model.SourceLocal
	if r.AgentSignals != nil && r.AgentSignals.Source != "" {
		source = r.AgentSignals.Source
	}
	if r.Cached {
		source += " (cached)"
	}
	return source
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// orDash returns s, or "-" when s is blank.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
