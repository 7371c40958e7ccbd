package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nao1215/trustscan/internal/analyzer"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/flagged"
	"github.com/nao1215/trustscan/internal/model"
)

// maxPage bounds the page parameter so the offset cannot overflow.
const maxPage = 1_000_000

// analyzeRequest is the POST /analyze body.
type analyzeRequest struct {
	URL                  string `json:"url"`
	Force                bool   `json:"force"`
	TimeoutMs            *int   `json:"timeoutMs"`
	CheckExternalReviews bool   `json:"checkExternalReviews"`
}

// flaggedResponse is one page of GET /flagged.
type flaggedResponse struct {
	Items    []model.FlaggedSiteRecord `json:"items"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	req := analyzer.Request{
		URL:   body.URL,
		Force: body.Force,
		Deep:  body.CheckExternalReviews,
	}
	if body.TimeoutMs != nil {
		req.Timeout = clampTimeoutMs(*body.TimeoutMs)
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	switch {
	case errors.Is(err, model.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("analysis failed", "request_id", RequestID(r.Context()), "url", body.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// clampTimeoutMs bounds a requested timeout to [MinTimeout, MaxTimeout].
func clampTimeoutMs(ms int) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if d < config.MinTimeout {
		return config.MinTimeout
	}
	if d > config.MaxTimeout {
		return config.MaxTimeout
	}
	return d
}

func (s *Server) handleSearchFlagged(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := min(positiveInt(q.Get("page"), 1), maxPage)
	pageSize := positiveInt(q.Get("pageSize"), flagged.DefaultPageSize)
	if pageSize > flagged.MaxPageSize {
		pageSize = flagged.MaxPageSize
	}

	res, err := s.flagged.Search(r.Context(), model.FlaggedQuery{
		Text:   q.Get("q"),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		s.logger.Error("flagged search failed", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "flagged search failed")
		return
	}
	if res.Items == nil {
		res.Items = []model.FlaggedSiteRecord{}
	}
	writeJSON(w, http.StatusOK, flaggedResponse{
		Items:    res.Items,
		Total:    res.Total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Server) handleGetFlagged(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "hostname")
	rec, err := s.flagged.Get(r.Context(), host)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "hostname not flagged")
		return
	case err != nil:
		s.logger.Error("flagged lookup failed", "request_id", RequestID(r.Context()), "hostname", host, "error", err)
		writeError(w, http.StatusInternalServerError, "flagged lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// positiveInt parses v, returning def when v is missing, malformed or
// not positive.
func positiveInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
