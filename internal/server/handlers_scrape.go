package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/newsroom-scraper/api/schemas"
)

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req schemas.ScrapeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.ScrapeResponse{URL: req.URL, Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		err := badRequest("url is required")
		writeError(w, err, schemas.ScrapeResponse{Error: err.Error()})
		return
	}

	res, err := s.deps.Scraper.Scrape(r.Context(), req.URL, req.WaitFor, time.Duration(req.Timeout)*time.Millisecond)
	if err != nil {
		writeError(w, err, schemas.ScrapeResponse{URL: req.URL, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	var req schemas.ArticlesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.ArticlesResponse{Articles: []schemas.Article{}, Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		err := badRequest("url is required")
		writeError(w, err, schemas.ArticlesResponse{Articles: []schemas.Article{}, Error: err.Error()})
		return
	}

	res, err := s.deps.Scraper.Articles(r.Context(), req.URL, req.MaxArticles)
	if err != nil {
		writeError(w, err, schemas.ArticlesResponse{SourceURL: req.URL, Articles: []schemas.Article{}, Error: err.Error()})
		return
	}
	s.recordFetch(r.Context(), req.URL, len(res.Articles))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFetchLogList(w http.ResponseWriter, r *http.Request) {
	if s.deps.FetchLog == nil {
		writeJSON(w, http.StatusServiceUnavailable, schemas.FetchLogResponse{Error: "fetch log is not configured"})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			err := badRequest("limit must be a non-negative integer")
			writeError(w, err, schemas.FetchLogResponse{Error: err.Error()})
			return
		}
		limit = n
	}
	entries, err := s.deps.FetchLog.List(r.Context(), limit)
	if err != nil {
		writeError(w, err, schemas.FetchLogResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.FetchLogResponse{Success: true, Entries: entries})
}

func (s *Server) handleFetchLogRecord(w http.ResponseWriter, r *http.Request) {
	if s.deps.FetchLog == nil {
		writeJSON(w, http.StatusServiceUnavailable, schemas.FetchLogResponse{Error: "fetch log is not configured"})
		return
	}
	var req schemas.FetchLogRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err, schemas.FetchLogResponse{Error: err.Error()})
		return
	}
	entry, err := s.deps.FetchLog.Record(r.Context(), req.Source, req.ArticlesCount)
	if err != nil {
		writeError(w, err, schemas.FetchLogResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.FetchLogResponse{Success: true, Entries: []schemas.FetchLogEntry{entry}})
}
