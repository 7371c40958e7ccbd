package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nao1215/trustscan/internal/model"
)

// flaggedColumns is the column list shared by every flagged_sites query.
const flaggedColumns = `hostname, normalized_url, first_observed_at_ms, last_observed_at_ms,
	last_analysis_at_ms, score, status, ai_verdict, ai_confidence, summary,
	issues_json, findings_json, evidence_json, times_observed`

// flaggedRow is a FlaggedSiteRecord with its list fields encoded as JSON.
type flaggedRow struct {
	Hostname          string
	NormalizedURL     string
	FirstObservedAtMs int64
	LastObservedAtMs  int64
	LastAnalysisAtMs  int64
	Score             int
	Status            string
	AIVerdict         string
	AIConfidence      string
	Summary           string
	Issues            []byte
	Findings          []byte
	Evidence          []byte
	TimesObserved     int
}

func newFlaggedRow(rec model.FlaggedSiteRecord) (flaggedRow, error) {
	issues := rec.Issues
	if issues == nil {
		issues = []string{}
	}
	findings := rec.Findings
	if findings == nil {
		findings = []model.Finding{}
	}

	row := flaggedRow{
		Hostname:          strings.ToLower(rec.Hostname),
		NormalizedURL:     rec.NormalizedURL,
		FirstObservedAtMs: rec.FirstObservedAtMs,
		LastObservedAtMs:  rec.LastObservedAtMs,
		LastAnalysisAtMs:  rec.LastAnalysisAtMs,
		Score:             rec.Score,
		Status:            string(rec.Status),
		AIVerdict:         string(rec.AIVerdict),
		AIConfidence:      string(rec.AIConfidence),
		Summary:           rec.Summary,
		TimesObserved:     rec.TimesObserved,
	}
	var err error
	if row.Issues, err = marshalJSON(issues); err != nil {
		return flaggedRow{}, fmt.Errorf("failed to serialize issues: %w", err)
	}
	if row.Findings, err = marshalJSON(findings); err != nil {
		return flaggedRow{}, fmt.Errorf("failed to serialize findings: %w", err)
	}
	if row.Evidence, err = marshalJSON(rec.Evidence); err != nil {
		return flaggedRow{}, fmt.Errorf("failed to serialize evidence: %w", err)
	}
	return row, nil
}

// dest returns the scan destinations in flaggedColumns order.
func (r *flaggedRow) dest() []any {
	return []any{
		&r.Hostname, &r.NormalizedURL, &r.FirstObservedAtMs, &r.LastObservedAtMs,
		&r.LastAnalysisAtMs, &r.Score, &r.Status, &r.AIVerdict, &r.AIConfidence, &r.Summary,
		&r.Issues, &r.Findings, &r.Evidence, &r.TimesObserved,
	}
}

// args returns the insert arguments in flaggedColumns order. JSON columns
// are passed as text.
func (r *flaggedRow) args() []any {
	return []any{
		r.Hostname, r.NormalizedURL, r.FirstObservedAtMs, r.LastObservedAtMs,
		r.LastAnalysisAtMs, r.Score, r.Status, r.AIVerdict, r.AIConfidence, r.Summary,
		string(r.Issues), string(r.Findings), string(r.Evidence), r.TimesObserved,
	}
}

func (r *flaggedRow) record() (model.FlaggedSiteRecord, error) {
	rec := model.FlaggedSiteRecord{
		Hostname:          r.Hostname,
		NormalizedURL:     r.NormalizedURL,
		FirstObservedAtMs: r.FirstObservedAtMs,
		LastObservedAtMs:  r.LastObservedAtMs,
		LastAnalysisAtMs:  r.LastAnalysisAtMs,
		Score:             r.Score,
		Status:            model.Status(r.Status),
		AIVerdict:         model.AIVerdict(r.AIVerdict),
		AIConfidence:      model.Confidence(r.AIConfidence),
		Summary:           r.Summary,
		Issues:            []string{},
		Findings:          []model.Finding{},
		TimesObserved:     r.TimesObserved,
	}
	if err := json.Unmarshal(r.Issues, &rec.Issues); err != nil {
		return rec, fmt.Errorf("failed to deserialize issues: %w", err)
	}
	if err := json.Unmarshal(r.Findings, &rec.Findings); err != nil {
		return rec, fmt.Errorf("failed to deserialize findings: %w", err)
	}
	if err := json.Unmarshal(r.Evidence, &rec.Evidence); err != nil {
		return rec, fmt.Errorf("failed to deserialize evidence: %w", err)
	}
	return rec, nil
}

// marshalJSON encodes v without HTML escaping so that substring search over
// the stored text matches what users typed.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// likePattern builds a case-insensitive LIKE pattern for a substring match
// with '\' as the escape character.
func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(text)) + "%"
}
