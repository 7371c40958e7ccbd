package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/trustscan/internal/model"
)

// JSONWriter outputs results in the public JSON shape. Compact output
// writes one document per line.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one result.
func (w *JSONWriter) Write(result *model.AnalysisResult) (int, error) {
	return w.writeJSON(result)
}

// WriteFlagged outputs one page of flagged sites.
func (w *JSONWriter) WriteFlagged(page model.FlaggedPage) (int, error) {
	if page.Items == nil {
		page.Items = []model.FlaggedSiteRecord{}
	}
	return w.writeJSON(page)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
