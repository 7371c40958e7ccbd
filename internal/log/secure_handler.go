package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-goog-api-key":      true,
	"x-auth-token":        true,

	// Credentials
	"password":       true,
	"secret":         true,
	"token":          true,
	"api_key":        true,
	"apikey":         true,
	"api-key":        true,
	"gemini_api_key": true,
	"access_token":   true,
	"refresh_token":  true,
	"credential":     true,
	"credentials":    true,
	"database_url":   true,
	"dsn":            true,
}

// sensitiveKeywords mark a key as sensitive when contained in it.
// The bare word "key" is excluded: it would mask cache keys and hostnames.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "apikey", "api_key",
}

// sensitiveQueryParams are URL query parameters whose values are masked.
var sensitiveQueryParams = []string{"key", "api_key", "apikey", "token", "access_token"}

// sensitivePatterns match values that are secrets regardless of key name.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	// Bearer and basic credentials
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// Google API keys
	regexp.MustCompile(`^AIza[0-9A-Za-z_\-]{35}$`),
	// Long opaque alphanumeric strings
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	// Connection strings with an embedded password
	regexp.MustCompile(`^[a-z][a-z0-9+.\-]*://[^/\s:@]+:[^/\s@]+@`),
}

// MaskValue replaces sensitive values.
const MaskValue = "***REDACTED***"

// maskQueryValue replaces sensitive query parameter values. It contains no
// characters that query encoding would escape.
const maskQueryValue = "REDACTED"

// SecureHandler wraps an slog.Handler and sanitizes every attribute before
// handing the record to it.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with sanitized attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		if isSensitiveValue(v) {
			return slog.String(a.Key, MaskValue)
		}
		if masked, ok := maskURLQuery(v); ok {
			return slog.String(a.Key, masked)
		}
	}

	return a
}

func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// maskURLQuery masks credential query parameters of an absolute URL.
// It reports false when value is not a URL or carries no such parameter.
func maskURLQuery(value string) (string, bool) {
	if !strings.Contains(value, "://") || !strings.Contains(value, "?") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.RawQuery == "" {
		return "", false
	}

	q := u.Query()
	changed := false
	for name := range q {
		for _, p := range sensitiveQueryParams {
			if strings.EqualFold(name, p) {
				q.Set(name, maskQueryValue)
				changed = true
			}
		}
	}
	if !changed {
		return "", false
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewSecureLogger returns a text logger that sanitizes output.
// verbose selects Debug, otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewSecureLoggerWithLevel(w, levelFor(verbose), false)
}

// NewSecureJSONLogger returns a JSON logger that sanitizes output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewSecureLoggerWithLevel(w, levelFor(verbose), true)
}

// NewSecureLoggerWithLevel returns a sanitizing logger at an explicit level.
// Long-running servers use it to log at Info.
func NewSecureLoggerWithLevel(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(handler))
}

// Discard returns a logger that drops everything. Tests and library
// defaults use it.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
