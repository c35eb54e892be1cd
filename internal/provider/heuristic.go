package provider

import (
	"context"
	"fmt"
	"math"

	"github.com/talgya/meme-market/internal/ledger"
)

// Heuristic is the scripted decision backend: deterministic,
// personality-driven rules with a rough ROI awareness (it reads the trend
// and liquidity, nothing else). It is the default when no LLM is configured
// and the semantic model for what a remote provider is expected to return.
type Heuristic struct {
	Params ledger.Params
}

// NewHeuristic creates the scripted provider.
func NewHeuristic(p ledger.Params) *Heuristic {
	return &Heuristic{Params: p}
}

// GetIntents always succeeds.
func (h *Heuristic) GetIntents(_ context.Context, mc MarketContext, agents []AgentSnapshot) ([]Intent, string, Status) {
	intents := make([]Intent, 0, len(agents))
	for _, a := range agents {
		intents = append(intents, h.decide(mc, a))
	}
	narrative := fmt.Sprintf("Day %d: MEME at %.4f LvMON, trend %s. The bots grind on.",
		mc.Day, mc.Price, mc.Trend)
	return intents, narrative, StatusSuccess
}

// decide maps one personality onto an intent. Overspending is harmless;
// the engine no-ops anything the agent cannot afford by execution time.
func (h *Heuristic) decide(mc MarketContext, a AgentSnapshot) Intent {
	affordable := 0
	if h.Params.CraftCost > 0 {
		affordable = int(math.Floor(a.Base / h.Params.CraftCost))
	}

	in := Intent{
		AgentID:      a.ID,
		OpenChests:   a.Chests,
		InvestMedals: true,
	}

	switch a.Personality {
	case PersonalityDegen:
		// Spends everything, dumps on any pump.
		in.Craft = affordable
		if mc.Trend == TrendUp {
			in.SellRatio = 0.6
		} else {
			in.SellRatio = 0.2
		}
		in.Rationale = "all in, always"

	case PersonalityHodler:
		// Crafts modestly, stakes everything liquid, never sells.
		in.Craft = min(affordable, 2)
		in.StakeRatio = 1.0
		in.Rationale = "stack and stake"

	case PersonalityFlipper:
		// Rides streaks: liquidates the stake and sells into strength,
		// re-stakes on red days.
		in.Craft = min(affordable, 3)
		if mc.Trend == TrendUp && mc.UpStreak >= 2 {
			in.UnstakeRatio = 1.0
			in.SellRatio = 0.7
			in.Rationale = fmt.Sprintf("%d green days, taking profit", mc.UpStreak)
		} else if mc.Trend == TrendDown {
			in.StakeRatio = 0.5
			in.Rationale = "red day, park it in the staking pool"
		} else {
			in.SellRatio = 0.1
			in.Rationale = "chop, trimming a little"
		}

	case PersonalityRotator:
		// Alternates accumulation and distribution days.
		in.Craft = min(affordable, 2)
		if mc.Day%2 == 0 {
			in.SellRatio = 0.3
			in.Rationale = "distribution day"
		} else {
			in.StakeRatio = 0.5
			in.Rationale = "accumulation day"
		}

	default:
		in.Craft = min(affordable, 1)
		in.SellRatio = 0.1
		in.Rationale = "keeping the lights on"
	}
	return in
}

// Personality tags produced by the spawner. Opaque to settlement; only the
// decision backends interpret them.
const (
	PersonalityDegen   = "degen"
	PersonalityHodler  = "hodler"
	PersonalityFlipper = "flipper"
	PersonalityRotator = "rotator"
)
