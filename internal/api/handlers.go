package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nanoqc/nanoqc/internal/jobs"
	"github.com/nanoqc/nanoqc/internal/store"
	"github.com/nanoqc/nanoqc/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeServiceUnavailable(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeServiceUnavailable(w, errors.New("no report store configured"))
		return
	}
	rep, err := s.db.Latest(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeServiceUnavailable(w, errors.New("no report store configured"))
		return
	}
	rep, err := s.db.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeServiceUnavailable(w, errors.New("no report store configured"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := s.db.History(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refreshFn == nil {
		writeServiceUnavailable(w, errors.New("refresh is not configured"))
		return
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict,
			map[string]string{"error": "refresh already in progress"})
		return
	}
	defer s.refreshing.Store(false)

	rep, err := s.refreshFn(r.Context())
	st := jobs.StatusOf(rep, err)
	s.setStatus(st)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
