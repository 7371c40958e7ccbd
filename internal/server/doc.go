// Package server exposes the analysis engine over HTTP.
//
// Routes:
//
//	POST /analyze              analyze one URL (rate limited)
//	GET  /flagged              search flagged sites (?q=&page=&pageSize=)
//	GET  /flagged/{hostname}   one flagged site
//	GET  /healthz              liveness
//
// Every error response has the shape {"error": "..."}.
package server
