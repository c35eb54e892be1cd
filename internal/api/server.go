// Package api serves the simulation over HTTP. GET endpoints are public
// read-only observation; POST endpoints (player actions, day advancement)
// require a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/persistence"
	"github.com/talgya/meme-market/internal/scheduler"
	"github.com/talgya/meme-market/internal/settle"
)

// Server exposes the engine and day-log history over HTTP.
type Server struct {
	Engine   *settle.Engine
	DB       *persistence.DB      // nil in memory-only mode
	Sched    *scheduler.Scheduler // nil when auto-advance is disabled
	Metrics  *Metrics
	Port     int
	AdminKey string // bearer token for POST endpoints; empty disables them
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/ledger", s.handleLedger)
	r.Get("/api/v1/agents", s.handleAgents)
	r.Get("/api/v1/player", s.handlePlayer)
	r.Get("/api/v1/daylogs", s.handleDayLogs)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/api/v1/player/craft", s.countAction(s.Engine.Craft))
		r.Post("/api/v1/player/salvage", s.countAction(s.Engine.Salvage))
		r.Post("/api/v1/player/chests", s.countAction(s.Engine.OpenChests))
		r.Post("/api/v1/player/invest", s.simpleAction(s.Engine.InvestMedals))
		r.Post("/api/v1/player/stake", s.amountAction(s.Engine.Stake))
		r.Post("/api/v1/player/unstake", s.amountAction(s.Engine.Unstake))
		r.Post("/api/v1/player/sell", s.ratioAction(s.Engine.Sell))
		r.Post("/api/v1/player/claim/pool", s.simpleAction(s.Engine.ClaimPoolReward))
		r.Post("/api/v1/player/claim/redistribution", s.simpleAction(s.Engine.ClaimRedistribution))
		r.Post("/api/v1/player/claim/staking", s.simpleAction(s.Engine.ClaimStakingReward))
		r.Post("/api/v1/advance", s.handleAdvance)
		r.Post("/api/v1/schedule", s.handleSchedule)
	})

	return r
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")
	go func() {
		if err := http.ListenAndServe(addr, s.Router()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "mutations disabled: no admin key configured")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	l, pool, log := s.Engine.Snapshot()
	resp := map[string]any{
		"run_id":   s.Engine.RunID.String(),
		"day":      l.Day,
		"price":    pool.Price(),
		"treasury": l.Treasury,
		"agents":   len(l.Agents),
	}
	if log != nil {
		resp["last_day"] = log
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	l, pool, _ := s.Engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"day":              l.Day,
		"treasury":         l.Treasury,
		"total_wealth":     l.TotalWealth,
		"daily_new_wealth": l.DailyNewWealth,
		"medals_in_pool":   l.MedalsInPool,
		"total_staked":     l.TotalStaked,
		"amm":              pool,
		"price":            pool.Price(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	l, _, _ := s.Engine.Snapshot()
	writeJSON(w, http.StatusOK, l.Agents)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	l, _, _ := s.Engine.Snapshot()
	player := l.Player()
	if player == nil {
		writeError(w, http.StatusNotFound, "no human agent")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (s *Server) handleDayLogs(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}
	if s.DB == nil {
		_, _, log := s.Engine.Snapshot()
		if log == nil {
			writeJSON(w, http.StatusOK, []*settle.DayLog{})
			return
		}
		writeJSON(w, http.StatusOK, []*settle.DayLog{log})
		return
	}
	logs, err := s.DB.RecentDayLogs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// handleAdvance runs one day-step synchronously with a fresh seed.
// Returns 409 while a step is already in flight; safe to retry.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	log, err := s.Engine.AdvanceDay(r.Context(), time.Now().UnixNano()^rand.Int63())
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// handleSchedule swaps the auto-advance cron expression at runtime.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if s.Sched == nil {
		writeError(w, http.StatusConflict, "auto-advance scheduler is not running")
		return
	}
	var req struct {
		Cron string `json:"cron"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if err := s.Sched.Reschedule(req.Cron); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cron": s.Sched.Expr()})
}

type countRequest struct {
	N int `json:"n"`
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

type ratioRequest struct {
	Ratio float64 `json:"ratio"`
}

// countAction adapts an integer-count player action into a handler.
func (s *Server) countAction(fn func(int) (*ledger.Agent, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req countRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		s.respondAction(w, func() (*ledger.Agent, error) { return fn(req.N) })
	}
}

// amountAction adapts a float-amount player action into a handler.
func (s *Server) amountAction(fn func(float64) (*ledger.Agent, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		s.respondAction(w, func() (*ledger.Agent, error) { return fn(req.Amount) })
	}
}

// ratioAction adapts a [0,1]-ratio player action into a handler.
func (s *Server) ratioAction(fn func(float64) (*ledger.Agent, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ratioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
		s.respondAction(w, func() (*ledger.Agent, error) { return fn(req.Ratio) })
	}
}

// simpleAction adapts a no-argument player action into a handler.
func (s *Server) simpleAction(fn func() (*ledger.Agent, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondAction(w, fn)
	}
}

func (s *Server) respondAction(w http.ResponseWriter, fn func() (*ledger.Agent, error)) {
	agent, err := fn()
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// writeActionError maps the error taxonomy onto HTTP statuses with a named
// reason the presentation layer can show.
func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	s.Metrics.RecordRejection()
	switch {
	case errors.Is(err, settle.ErrBusy):
		writeError(w, http.StatusConflict, "busy: day-step in flight, retry shortly")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, ledger.ErrInsufficientInventory):
		writeError(w, http.StatusUnprocessableEntity, "insufficient inventory")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
