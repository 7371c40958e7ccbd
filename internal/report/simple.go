package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds evidence details and step timings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables evidence details and step timings.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one result in human-readable format.
func (w *SimpleWriter) Write(result *model.AnalysisResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writeSignals(&sb, result)
	w.writeAI(&sb, result.AIAnalysis)
	w.writeEvidence(&sb, result.AgentSignals)
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

// WriteFlagged outputs one page of flagged sites as a table.
func (w *SimpleWriter) WriteFlagged(page model.FlaggedPage) (int, error) {
	var sb strings.Builder

	section(&sb, fmt.Sprintf("FLAGGED SITES (%d of %d)", len(page.Items), page.Total))
	if len(page.Items) == 0 {
		sb.WriteString("  No flagged sites\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "  %-32s %5s  %-8s %5s  %s\n", "HOSTNAME", "SCORE", "AI", "SEEN", "LAST OBSERVED")
	for _, rec := range page.Items {
		fmt.Fprintf(&sb, "  %-32s %5d  %-8s %5d  %s\n",
			truncateString(rec.Hostname, 32),
			rec.Score,
			truncateString(orDash(string(rec.AIVerdict)), 8),
			rec.TimesObserved,
			time.UnixMilli(rec.LastObservedAtMs).UTC().Format(time.DateTime),
		)
		if w.verbose {
			for _, issue := range rec.Issues {
				fmt.Fprintf(&sb, "      - %s\n", issue)
			}
		}
	}
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *model.AnalysisResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                          TRUSTSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "URL:       %s\n", r.NormalizedURL)
	fmt.Fprintf(sb, "Score:     %d/100\n", r.Score)
	fmt.Fprintf(sb, "Status:    %s\n", r.Status)
	fmt.Fprintf(sb, "Analyzed:  %s\n", r.AnalyzedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Source:    %s\n", sourceOf(r))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSignals(sb *strings.Builder, r *model.AnalysisResult) {
	section(sb, "SIGNALS")
	if len(r.Explainability) == 0 {
		sb.WriteString("  No signals\n\n")
		return
	}
	for _, item := range r.Explainability {
		fmt.Fprintf(sb, "  [%s] %s: %s\n", verdictIndicator(item.Verdict), item.Label, item.Detail)
	}

	c := countVerdicts(r.Explainability)
	fmt.Fprintf(sb, "\n  good %d, warn %d, bad %d, unknown %d\n\n", c.Good, c.Warn, c.Bad, c.Unknown)
}

func (w *SimpleWriter) writeAI(sb *strings.Builder, j *model.AIJudgment) {
	if j == nil {
		return
	}
	section(sb, "AI ASSESSMENT")
	fmt.Fprintf(sb, "  Score:      %d/100 (%s confidence)\n", j.LegitimacyScore, j.Confidence)
	fmt.Fprintf(sb, "  Verdict:    %s\n", j.Verdict)
	if j.Category != "" {
		fmt.Fprintf(sb, "  Category:   %s\n", j.Category)
	}
	if j.Summary != "" {
		fmt.Fprintf(sb, "  Summary:    %s\n", j.Summary)
	}
	if j.Recommendation != "" {
		fmt.Fprintf(sb, "  Advice:     %s\n", j.Recommendation)
	}
	for _, issue := range j.DetectedIssues {
		fmt.Fprintf(sb, "  [x] %s\n", issue)
	}
	for _, signal := range j.PositiveSignals {
		fmt.Fprintf(sb, "  [+] %s\n", signal)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEvidence(sb *strings.Builder, s *model.AgentSignals) {
	if s == nil {
		return
	}
	if len(s.Warnings) > 0 {
		section(sb, "WARNINGS")
		for _, warning := range s.Warnings {
			fmt.Fprintf(sb, "  ! %s\n", warning)
		}
		sb.WriteString("\n")
	}
	if !w.verbose {
		return
	}

	section(sb, "EVIDENCE")
	if s.DomainAgeDays != nil {
		fmt.Fprintf(sb, "  Domain age:   %d days\n", *s.DomainAgeDays)
	} else {
		sb.WriteString("  Domain age:   unknown\n")
	}
	switch {
	case s.TLS.OK():
		fmt.Fprintf(sb, "  TLS:          valid, issuer %s\n", orDash(s.TLS.Issuer))
	case s.TLS.Checked():
		sb.WriteString("  TLS:          handshake failed\n")
	default:
		sb.WriteString("  TLS:          not checked\n")
	}
	if s.Fetch.Status != nil {
		fmt.Fprintf(sb, "  HTTP status:  %d\n", *s.Fetch.Status)
	}
	fmt.Fprintf(sb, "  Final URL:    %s\n", s.Fetch.FinalURL)
	for i, hop := range s.Fetch.RedirectChain {
		fmt.Fprintf(sb, "  Redirect %d:   %s\n", i+1, hop)
	}
	if s.Crawl != nil {
		fmt.Fprintf(sb, "  Crawled:      %d of %d pages\n", s.Crawl.Fetched, s.Crawl.Requested)
	}

	if len(s.TimingsMs) > 0 {
		names := make([]string, 0, len(s.TimingsMs))
		for name := range s.TimingsMs {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("\n  Timings:\n")
		for _, name := range names {
			fmt.Fprintf(sb, "    %-12s %6d ms\n", name, s.TimingsMs[name])
		}
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func verdictIndicator(v model.Verdict) string {
	switch v {
	case model.VerdictGood:
		return "+"
	case model.VerdictWarn:
		return "!"
	case model.VerdictBad:
		return "x"
	default:
		return "?"
	}
}
