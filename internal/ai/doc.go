// Package ai obtains a structured legitimacy verdict from a language model.
//
// The Judge renders the collected evidence into a prompt, asks the Gemini
// generateContent API for JSON output and validates the answer against a
// fixed schema. Any deviation from the schema discards the whole answer;
// fields are never partially trusted. A guardrail then caps the score of
// under-evidenced sites that are not well known.
package ai
