// Package scheduler drives automatic day advancement on a cron expression.
// Each firing settles one day with a fresh seed; if a step is already in
// flight the firing is skipped, never queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/talgya/meme-market/internal/settle"
)

// Scheduler owns the cron instance.
type Scheduler struct {
	Cron   *cron.Cron
	Engine *settle.Engine

	mu    sync.Mutex
	entry cron.EntryID
	expr  string
}

// New creates a scheduler over the engine.
func New(engine *settle.Engine) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds()),
		Engine: engine,
	}
}

// Register wires the advance-day job at the given cron expression.
func (s *Scheduler) Register(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.Cron.AddFunc(expr, s.advance)
	if err != nil {
		return fmt.Errorf("register advance task: %w", err)
	}
	s.entry = id
	s.expr = expr
	return nil
}

// Reschedule swaps the advance-day job onto a new cron expression. An
// invalid expression leaves the current schedule running.
func (s *Scheduler) Reschedule(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.Cron.AddFunc(expr, s.advance)
	if err != nil {
		return fmt.Errorf("reschedule advance task: %w", err)
	}
	if s.entry != 0 {
		s.Cron.Remove(s.entry)
	}
	s.entry = id
	s.expr = expr
	slog.Info("auto-advance rescheduled", "cron", expr)
	return nil
}

// Expr returns the active cron expression.
func (s *Scheduler) Expr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

func (s *Scheduler) advance() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seed := time.Now().UnixNano()
	log, err := s.Engine.AdvanceDay(ctx, seed)
	if errors.Is(err, settle.ErrBusy) {
		slog.Warn("scheduled day-step skipped, previous step still in flight")
		return
	}
	if err != nil {
		slog.Error("scheduled day-step failed", "error", err)
		return
	}
	slog.Info("scheduled day settled", "day", log.Day, "seed", seed)
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	slog.Info("scheduler stopped")
}
