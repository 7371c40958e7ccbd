// Package log provides slog loggers that redact secrets before they reach
// any output.
//
// The SecureHandler masks:
//   - attributes whose key names a credential (authorization, cookie,
//     api_key, x-goog-api-key, token, password and similar)
//   - string values that look like bearer tokens, JWTs or long API keys
//   - the value of credential query parameters (key, api_key, token)
//     inside logged URLs, keeping the rest of the URL readable
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("calling model", "url", endpoint) // ?key=... is masked
package log
