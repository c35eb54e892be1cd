// Package settle runs the per-day settlement pipeline: collect intents,
// settle yesterday's rewards, replay agent actions in a seeded order against
// the shared ledger and AMM, buy back MEME from the treasury, distribute the
// staking dividend, and commit one immutable day log.
//
// Exactly one day-step may be in flight at a time. The step mutates staged
// clones of the ledger and pool; readers only ever see the last committed
// state, and a failure mid-step leaves nothing half-applied.
package settle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/talgya/meme-market/internal/amm"
	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/provider"
	"github.com/talgya/meme-market/internal/reward"
)

// ErrBusy is returned when a day-step is already in flight. Safe to retry
// once the current step commits.
var ErrBusy = errors.New("day-step already in flight")

// Engine owns the committed ledger/pool pair and executes day-steps.
type Engine struct {
	RunID uuid.UUID

	params ledger.Params
	curve  amm.BuybackCurve
	prov   provider.Provider
	sink   DayLogSink

	busy atomic.Bool

	mu       sync.Mutex // guards everything below
	ledger   *ledger.Ledger
	pool     *amm.Pool
	lastLog  *DayLog
	upStreak int
	rng      *rand.Rand // player chest rolls only; day-steps seed their own

	// OnCommit, if set, observes every committed day log with the
	// post-commit ledger. Used to feed metrics.
	OnCommit func(*DayLog, *ledger.Ledger)
}

// New creates an engine over an initial ledger and pool. The seed feeds only
// the player's chest rolls; each day-step takes its own seed.
func New(l *ledger.Ledger, pool *amm.Pool, params ledger.Params, curve amm.BuybackCurve, prov provider.Provider, sink DayLogSink, seed int64) *Engine {
	return &Engine{
		RunID:  uuid.New(),
		params: params,
		curve:  curve,
		prov:   prov,
		sink:   sink,
		ledger: l,
		pool:   pool,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Snapshot returns independent copies of the committed ledger, pool, and
// most recent day log (nil before the first commit).
func (e *Engine) Snapshot() (*ledger.Ledger, *amm.Pool, *DayLog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var log *DayLog
	if e.lastLog != nil {
		cp := *e.lastLog
		log = &cp
	}
	return e.ledger.Clone(), e.pool.Clone(), log
}

// RestoreLog seeds the previous-day context after a restart, before any
// day-step runs.
func (e *Engine) RestoreLog(log *DayLog, upStreak int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastLog = log
	e.upStreak = upStreak
}

// UpStreak returns the current run of consecutive up days.
func (e *Engine) UpStreak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upStreak
}

// AdvanceDay executes one full day-step and returns its log. The seed fixes
// the execution permutation and the medal rolls; production passes a fresh
// seed per day, tests fix it for reproducibility. Returns ErrBusy if a step
// is already in flight; it never queues.
func (e *Engine) AdvanceDay(ctx context.Context, seed int64) (*DayLog, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	// Stage: everything below mutates clones.
	e.mu.Lock()
	staged := e.ledger.Clone()
	pool := e.pool.Clone()
	prev := e.lastLog
	upStreak := e.upStreak
	e.mu.Unlock()

	// CollectingIntents is the only suspension point. Any provider failure
	// degrades to an empty batch; the day always settles.
	mc := buildContext(staged, pool, prev, upStreak)
	snaps := botSnapshots(staged)
	intents, narrative, status := e.prov.GetIntents(ctx, mc, snaps)
	if status != provider.StatusSuccess {
		slog.Warn("decision provider unavailable, settling with empty batch",
			"day", staged.Day, "status", status.String())
		intents = nil
	}

	// SettlingRewards: yesterday's pool pays out before any of today's
	// actions touch the ledger.
	ps := reward.SettlePool(staged, e.params)

	// ExecutingActions: one seeded permutation, strictly sequential.
	// Swaps are not commutative, so every agent sees the price impact of
	// everyone drawn before it.
	rng := rand.New(rand.NewSource(seed))
	notes, executed := e.executeBatch(staged, pool, intents, rng)

	// ApplyingBuyback: a sigmoid fraction of the treasury, capped at the
	// balance, spent in one base-to-token swap.
	rate := e.curve.Fraction(staged.DailyNewWealth)
	spend := rate * staged.Treasury
	if spend > staged.Treasury {
		spend = staged.Treasury
	}
	bought := pool.ApplySwap(spend, false)
	if bought > 0 {
		staged.Treasury -= spend
	} else {
		spend = 0
	}

	// DistributingDividends.
	div := reward.DistributeDividend(staged, bought, e.params)

	// Committing: rollup and atomic swap-in. MedalsInPool already holds
	// only today's investments (the pool was drained at reward settlement).
	newWealth := staged.DailyNewWealth
	staged.DailyNewWealth = 0
	day := staged.Day
	staged.Day++

	activity := 0.0
	if len(staged.Agents) > 0 {
		activity = float64(executed) / float64(len(staged.Agents))
	}

	log := &DayLog{
		Day:             day,
		Price:           pool.Price(),
		Treasury:        staged.Treasury,
		BuybackRate:     rate,
		BuybackSpend:    spend,
		BuybackBought:   bought,
		TotalWealth:     staged.TotalWealth,
		NewWealth:       newWealth,
		StakingDividend: div.Dividend,
		ImpliedAPY:      div.ImpliedAPY,
		MedalsInPool:    staged.MedalsInPool,
		PoolPayout:      ps.TotalPayout,
		TaxCollected:    ps.TaxCollected,
		Activity:        activity,
		ProviderStatus:  status.String(),
		Narrative:       narrative,
		Notes:           notes,
	}

	e.mu.Lock()
	streak := 0
	if prev != nil && log.Price > prev.Price {
		streak = upStreak + 1
	}
	e.ledger = staged
	e.pool = pool
	e.lastLog = log
	e.upStreak = streak
	e.mu.Unlock()

	if e.sink != nil {
		if err := e.sink.Append(log); err != nil {
			slog.Error("day log sink failed", "day", log.Day, "error", err)
		}
	}
	if e.OnCommit != nil {
		e.OnCommit(log, staged)
	}

	slog.Info("day settled",
		"day", log.Day,
		"price", log.Price,
		"treasury", log.Treasury,
		"buyback", log.BuybackSpend,
		"new_wealth", log.NewWealth,
		"apy", log.ImpliedAPY,
		"provider", log.ProviderStatus,
	)
	return log, nil
}

// executeBatch replays the intent batch in a seeded random order. Returns
// per-agent notes and the number of actions that actually executed.
func (e *Engine) executeBatch(l *ledger.Ledger, pool *amm.Pool, intents []provider.Intent, rng *rand.Rand) ([]string, int) {
	var notes []string
	executed := 0

	perm := rng.Perm(len(intents))
	for _, idx := range perm {
		in := intents[idx]
		a := l.Agent(ledger.AgentID(in.AgentID))
		if a == nil {
			notes = append(notes, fmt.Sprintf("agent %d: unknown id, intent dropped", in.AgentID))
			continue
		}
		if a.Human {
			// The player acts through the API between days, never via the
			// bot batch.
			notes = append(notes, fmt.Sprintf("agent %d: human intent ignored", in.AgentID))
			continue
		}

		in = clampIntent(in, &notes)

		// Fixed sub-order: craft, open chests, invest, unstake, sell,
		// stake. Unstake-then-sell lets freshly unstaked MEME hit the
		// market same-day; staking last consumes only what survives the
		// sell.
		if in.Craft > 0 {
			if err := l.Craft(a, in.Craft, e.params); err != nil {
				notes = append(notes, fmt.Sprintf("agent %d: craft %d: %v", in.AgentID, in.Craft, err))
			} else {
				executed++
			}
		}
		if in.OpenChests > 0 {
			if _, err := l.OpenChests(a, in.OpenChests, e.params, rng); err != nil {
				notes = append(notes, fmt.Sprintf("agent %d: open %d chests: %v", in.AgentID, in.OpenChests, err))
			} else {
				executed++
			}
		}
		if in.InvestMedals {
			if l.InvestMedals(a) > 0 {
				executed++
			}
		}
		if in.UnstakeRatio > 0 {
			if err := l.Unstake(a, in.UnstakeRatio*a.StakedToken); err == nil {
				executed++
			}
		}
		if in.SellRatio > 0 {
			if _, err := l.Sell(a, in.SellRatio*a.Token, pool); err == nil {
				executed++
			}
		}
		if in.StakeRatio > 0 {
			if err := l.Stake(a, in.StakeRatio*a.Token); err == nil {
				executed++
			}
		}
	}
	return notes, executed
}

// clampIntent forces every ratio into [0,1] and negative counts to zero.
// Out-of-range values are provider bugs: clamped and noted, never fatal.
func clampIntent(in provider.Intent, notes *[]string) provider.Intent {
	clamped := false
	clamp01 := func(v float64) float64 {
		if math.IsNaN(v) || v < 0 {
			clamped = true
			return 0
		}
		if v > 1 {
			clamped = true
			return 1
		}
		return v
	}
	in.StakeRatio = clamp01(in.StakeRatio)
	in.UnstakeRatio = clamp01(in.UnstakeRatio)
	in.SellRatio = clamp01(in.SellRatio)
	if in.Craft < 0 {
		in.Craft = 0
		clamped = true
	}
	if in.OpenChests < 0 {
		in.OpenChests = 0
		clamped = true
	}
	if clamped {
		*notes = append(*notes, fmt.Sprintf("agent %d: intent out of range, clamped", in.AgentID))
	}
	return in
}

// botSnapshots builds the provider's view of every autonomous agent.
func botSnapshots(l *ledger.Ledger) []provider.AgentSnapshot {
	snaps := make([]provider.AgentSnapshot, 0, len(l.Agents))
	for _, a := range l.Agents {
		if a.Human {
			continue
		}
		snaps = append(snaps, provider.AgentSnapshot{
			ID:          int(a.ID),
			Name:        a.Name,
			Personality: a.Personality,
			Base:        a.BaseCurrency,
			Token:       a.Token,
			Staked:      a.StakedToken,
			Wealth:      a.Wealth,
			Chests:      a.Chests,
			Medals:      a.Medals,
		})
	}
	return snaps
}

// buildContext derives the market-trend context from the current pool and
// the previous committed day log. Day 1 has no history: stable trend, the
// current price stands in for yesterday's.
func buildContext(l *ledger.Ledger, pool *amm.Pool, prev *DayLog, upStreak int) provider.MarketContext {
	mc := provider.MarketContext{
		Day:            l.Day,
		Price:          pool.Price(),
		PrevPrice:      pool.Price(),
		Trend:          provider.TrendStable,
		LiquidityRatio: pool.LiquidityRatio(),
		Treasury:       l.Treasury,
	}
	if prev != nil {
		mc.PrevPrice = prev.Price
		mc.PrevAPY = prev.ImpliedAPY
		mc.UpStreak = upStreak
		switch {
		case mc.Price > prev.Price:
			mc.Trend = provider.TrendUp
		case mc.Price < prev.Price:
			mc.Trend = provider.TrendDown
		}
	}
	return mc
}
