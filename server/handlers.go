// Package server exposes the HTTP API handlers.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okralab/optionbot/game"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db      *sql.DB
	games   game.Store
	started time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// db may be nil when the audit database is disabled.
func NewHandlers(db *sql.DB, games game.Store) *Handlers {
	return &Handlers{db: db, games: games, started: time.Now().UTC()}
}

// HandleHealthz responds to liveness probe requests. When the audit database
// is configured, its connectivity is part of liveness.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"game_store", func() error {
			if h.games == nil {
				return errors.New("game store not initialized")
			}
			return nil
		}},
		{"database", func() error {
			if h.db == nil {
				return nil // audit db disabled
			}
			return h.db.PingContext(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports a small operational summary.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	type status struct {
		UptimeSeconds float64 `json:"uptime_seconds"`
		ActiveGames   int     `json:"active_games"`
		TotalGames    int     `json:"total_games"`
		AuditDB       bool    `json:"audit_db"`
	}
	s := status{
		UptimeSeconds: time.Since(h.started).Seconds(),
		AuditDB:       h.db != nil,
	}
	if h.games != nil {
		s.ActiveGames = h.games.ActiveCount()
		s.TotalGames = len(h.games.List())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s)
}

// HandleGamesList returns all games, newest first. ?state=active filters to
// unsettled games.
func (h *Handlers) HandleGamesList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	games := h.games.List()
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := games[:0]
		for _, g := range games {
			if string(g.State) == state {
				filtered = append(filtered, g)
			}
		}
		games = filtered
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(games)
}

// HandleGameByID returns a single game by id.
func (h *Handlers) HandleGameByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/games/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	g, err := h.games.Get(id)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g)
}
