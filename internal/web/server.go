// Package web implements the thin /v1/* JSON HTTP surface (spec §6).
// Grounded on the teacher's internal/web/server.go: a net/http ServeMux with
// Go 1.22+ method-pattern routes, http.Server field configuration, and
// graceful Shutdown.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/arashi-labs/solveorch/internal/executor"
	"github.com/arashi-labs/solveorch/internal/reports"
	"github.com/arashi-labs/solveorch/internal/statuscache"
	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
)

// Server is the HTTP server for the orchestrator's JSON API.
type Server struct {
	exec     *executor.Executor
	store    *store.Store
	pool     *upstream.Pool
	statuses *statuscache.Cache
	reports  *reports.Reporter
	mux      *http.ServeMux
	server   *http.Server
}

// Config wires a Server to its collaborators.
type Config struct {
	Addr     string
	Executor *executor.Executor
	Store    *store.Store
	Pool     *upstream.Pool
	Statuses *statuscache.Cache
	Reports  *reports.Reporter
}

// New builds a Server ready to Start.
func New(cfg Config) *Server {
	s := &Server{
		exec:     cfg.Executor,
		store:    cfg.Store,
		pool:     cfg.Pool,
		statuses: cfg.Statuses,
		reports:  cfg.Reports,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests. It blocks until the server is shut down.
func (s *Server) Start() error {
	log.Printf("solveorch listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/solve", s.handleSolve)
	s.mux.HandleFunc("GET /v1/status", s.handleStatusOne)
	s.mux.HandleFunc("GET /v1/status/all", s.handleStatusAll)
	s.mux.HandleFunc("POST /v1/chat/lock", s.handleChatLock)
	s.mux.HandleFunc("POST /v1/chats/lock", s.handleChatLock)
	s.mux.HandleFunc("POST /v1/chat/unlock", s.handleChatUnlock)
	s.mux.HandleFunc("POST /v1/chats/unlock", s.handleChatUnlock)
	s.mux.HandleFunc("GET /v1/profiles/blocked", s.handleProfilesBlocked)
	s.mux.HandleFunc("POST /v1/profiles/{id}/guest/clear", s.handleProfileGuestClear)
	s.mux.HandleFunc("POST /v1/profiles/{id}/chats/archive", s.handleProfileChatsArchive)
	s.mux.HandleFunc("GET /v1/reports/containers", s.handleReportContainers)
	s.mux.HandleFunc("GET /v1/reports/profiles", s.handleReportProfiles)
	s.mux.HandleFunc("GET /v1/reports/prompts", s.handleReportPrompts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

func (s *Server) handleChatLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PageURL    string `json:"page_url"`
		LockedBy   string `json:"locked_by"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PageURL == "" || body.LockedBy == "" {
		writeError(w, http.StatusBadRequest, "page_url and locked_by are required")
		return
	}
	ttl := body.TTLSeconds
	if ttl <= 0 {
		ttl = 60
	}
	lockedUntil := time.Now().UTC().Add(time.Duration(ttl) * time.Second).Format(time.RFC3339)
	if err := s.store.LockChatByURL(body.PageURL, body.LockedBy, lockedUntil); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "chat session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "locked_until": lockedUntil})
}

func (s *Server) handleChatUnlock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PageURL  string `json:"page_url"`
		LockedBy string `json:"locked_by"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PageURL == "" || body.LockedBy == "" {
		writeError(w, http.StatusBadRequest, "page_url and locked_by are required")
		return
	}
	if err := s.store.UnlockChatByURL(body.PageURL, body.LockedBy); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "chat session not found or not owned by locked_by")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleProfilesBlocked(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListGuestBlockedProfileIDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profiles": ids})
}

func (s *Server) handleProfileGuestClear(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")
	n, err := s.store.DeleteGuestChatsForProfile(profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cleared": n})
}

func (s *Server) handleProfileChatsArchive(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")
	n, err := s.store.ArchiveChatsForProfile(profileID, nowISO())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "archived": n})
}

func (s *Server) handleStatusOne(w http.ResponseWriter, r *http.Request) {
	containerID := r.URL.Query().Get("container_id")
	if containerID == "" {
		writeError(w, http.StatusBadRequest, "container_id is required")
		return
	}
	transport, ok := s.pool.Get(containerID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown container %q", containerID))
		return
	}
	st, err := transport.Status(r.Context(), r.Header.Get("X-Request-Id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"container_id": containerID, "status": st.Status, "busy": st.IsBusy(), "page_url": st.PageURL,
	})
}

func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	if s.statuses == nil {
		writeError(w, http.StatusServiceUnavailable, "status cache not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.statuses.Snapshot())
}

func parseRange(r *http.Request) (reports.Range, error) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		return reports.Range{}, fmt.Errorf("from and to are required")
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return reports.Range{}, fmt.Errorf("limit must be an integer in [1,500]")
		}
		limit = n
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return reports.Range{}, fmt.Errorf("offset must be a non-negative integer")
		}
		offset = n
	}
	return reports.Range{From: from, To: to, Limit: limit, Offset: offset}, nil
}

func (s *Server) handleReportContainers(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.reports.ContainersUsage(rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reportEnvelope(items, rng))
}

func (s *Server) handleReportProfiles(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.reports.ProfilesUsage(rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reportEnvelope(items, rng))
}

func (s *Server) handleReportPrompts(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.reports.PromptsUsage(rng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reportEnvelope(items, rng))
}

func reportEnvelope(items any, rng reports.Range) map[string]any {
	return map[string]any{
		"ok":    true,
		"items": items,
		"meta":  map[string]any{"from": rng.From, "to": rng.To, "limit": rng.Limit, "offset": rng.Offset},
	}
}
