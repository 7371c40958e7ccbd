package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/trustscan/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one result in Markdown format.
func (w *MarkdownWriter) Write(result *model.AnalysisResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSignals(md, result)
	w.writeAI(md, result.AIAnalysis)
	w.writeEvidence(md, result.AgentSignals)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteFlagged outputs one page of flagged sites in Markdown format.
func (w *MarkdownWriter) WriteFlagged(page model.FlaggedPage) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Flagged Sites")
	md.PlainText("")
	md.PlainTextf("Showing %d of %d flagged sites.", len(page.Items), page.Total)
	md.PlainText("")

	if len(page.Items) > 0 {
		rows := make([][]string, len(page.Items))
		for i, rec := range page.Items {
			rows[i] = []string{
				"`" + rec.Hostname + "`",
				strconv.Itoa(rec.Score),
				string(rec.Status),
				orDash(string(rec.AIVerdict)),
				strconv.Itoa(rec.TimesObserved),
				time.UnixMilli(rec.LastObservedAtMs).UTC().Format(time.DateTime),
				cell(truncateString(strings.Join(rec.Issues, "; "), 80)),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Hostname", "Score", "Status", "AI verdict", "Seen", "Last observed", "Issues"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *model.AnalysisResult) {
	md.H1("Trust Report: " + r.Hostname())
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + r.NormalizedURL + "`"},
			{"Score", strconv.Itoa(r.Score) + "/100"},
			{"Status", statusText(r.Status)},
			{"Analyzed", r.AnalyzedAt.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Source", sourceOf(r)},
		},
	})
	md.PlainText("")

	switch r.Status {
	case model.StatusHighRisk:
		md.Cautionf("High risk indicators detected. Score %d/100.", r.Score)
	case model.StatusCaution:
		md.Warningf("Proceed with caution. Score %d/100.", r.Score)
	default:
		md.Tip("No significant risk indicators detected.")
	}
	md.PlainText("")
}

func statusText(s model.Status) string {
	switch s {
	case model.StatusLowRisk:
		return "🟢 " + string(s)
	case model.StatusCaution:
		return "🟡 " + string(s)
	case model.StatusHighRisk:
		return "🔴 " + string(s)
	default:
		return string(s)
	}
}

func (w *MarkdownWriter) writeSignals(md *markdown.Markdown, r *model.AnalysisResult) {
	md.H2("Signals")
	md.PlainText("")

	if len(r.Explainability) == 0 {
		md.PlainText("No signals were collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(r.Explainability))
	for i, item := range r.Explainability {
		rows[i] = []string{item.Label, verdictText(item.Verdict), cell(item.Detail)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Check", "Verdict", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, countVerdicts(r.Explainability))
}

// writePieChart writes a mermaid pie chart of the verdict distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, c verdictCounts) {
	if c.total() == 0 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Signal Verdicts"),
		piechart.WithShowData(true),
	)
	for _, slice := range []struct {
		label string
		n     int
	}{
		{"Good", c.Good},
		{"Warn", c.Warn},
		{"Bad", c.Bad},
		{"Unknown", c.Unknown},
	} {
		if slice.n > 0 {
			chart.LabelAndIntValue(slice.label, uint64(slice.n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func verdictText(v model.Verdict) string {
	switch v {
	case model.VerdictGood:
		return "✅ good"
	case model.VerdictWarn:
		return "⚠️ warn"
	case model.VerdictBad:
		return "❌ bad"
	default:
		return "❔ unknown"
	}
}

func (w *MarkdownWriter) writeAI(md *markdown.Markdown, j *model.AIJudgment) {
	if j == nil {
		return
	}
	md.H2("AI Assessment")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Score", strconv.Itoa(j.LegitimacyScore) + "/100"},
			{"Confidence", string(j.Confidence)},
			{"Verdict", string(j.Verdict)},
			{"Category", orDash(j.Category)},
		},
	})
	md.PlainText("")

	if j.Summary != "" {
		md.PlainText(j.Summary)
		md.PlainText("")
	}
	if len(j.DetectedIssues) > 0 {
		md.H3("Detected issues")
		md.PlainText("")
		md.BulletList(j.DetectedIssues...)
		md.PlainText("")
	}
	if len(j.PositiveSignals) > 0 {
		md.H3("Positive signals")
		md.PlainText("")
		md.BulletList(j.PositiveSignals...)
		md.PlainText("")
	}
	if j.Recommendation != "" {
		md.Note(j.Recommendation)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeEvidence(md *markdown.Markdown, s *model.AgentSignals) {
	if s == nil {
		return
	}
	md.H2("Evidence")
	md.PlainText("")

	age := "unknown"
	if s.DomainAgeDays != nil {
		age = fmt.Sprintf("%d days", *s.DomainAgeDays)
	}
	tls := "not checked"
	switch {
	case s.TLS.OK():
		tls = "valid (" + orDash(s.TLS.Issuer) + ")"
	case s.TLS.Checked():
		tls = "handshake failed"
	}
	status := "-"
	if s.Fetch.Status != nil {
		status = strconv.Itoa(*s.Fetch.Status)
	}
	rows := [][]string{
		{"Domain age", age},
		{"TLS", tls},
		{"HTTP status", status},
		{"Final URL", "`" + s.Fetch.FinalURL + "`"},
		{"Redirects", strconv.Itoa(len(s.Fetch.RedirectChain))},
	}
	if s.Crawl != nil {
		rows = append(rows, []string{"Pages crawled", fmt.Sprintf("%d of %d", s.Crawl.Fetched, s.Crawl.Requested)})
	}
	md.Table(markdown.TableSet{Header: []string{"Evidence", "Value"}, Rows: rows})
	md.PlainText("")

	if len(s.Warnings) > 0 {
		md.Details("Warnings", strings.Join(s.Warnings, "\n"))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [trustscan](https://github.com/nao1215/trustscan)*")
}

// cell makes s safe for a single table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
