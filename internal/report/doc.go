// Package report renders analysis results and flagged-site listings.
//
// Writers share one interface so the CLI can pick an output format at
// runtime:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: the public JSON shape, one document per result
//   - MarkdownWriter: tables and a mermaid chart for sharing
//
// WriteFlaggedXLSX exports flagged records as a spreadsheet.
package report
