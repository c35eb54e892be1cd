// Package provider defines the decision source the settlement engine
// consumes. A provider turns a market context plus agent snapshots into one
// intent per agent; the engine treats every non-Success status as an empty
// batch and settles the day anyway.
package provider

import "context"

// Status reports how intent collection went.
type Status int

const (
	StatusSuccess Status = iota
	StatusRateLimited
	StatusQuotaExceeded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRateLimited:
		return "rate_limited"
	case StatusQuotaExceeded:
		return "quota_exceeded"
	default:
		return "error"
	}
}

// Trend labels the price movement since the previous day.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// MarketContext is the read-only market summary handed to a provider. Built
// by the settlement engine from the last committed day log; the engine never
// interprets how a provider uses it.
type MarketContext struct {
	Day            int     `json:"day"`
	Price          float64 `json:"price"`
	PrevPrice      float64 `json:"prev_price"`
	Trend          Trend   `json:"trend"`
	UpStreak       int     `json:"up_streak"` // consecutive up days incl. today
	LiquidityRatio float64 `json:"liquidity_ratio"`
	PrevAPY        float64 `json:"prev_apy"`
	Treasury       float64 `json:"treasury"`
}

// AgentSnapshot is the per-agent view a provider decides from.
type AgentSnapshot struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Personality string  `json:"personality"`
	Base        float64 `json:"lvmon"`
	Token       float64 `json:"meme"`
	Staked      float64 `json:"staked"`
	Wealth      float64 `json:"wealth"`
	Chests      int     `json:"chests"`
	Medals      int     `json:"medals"`
}

// Intent is one agent's plan for the day. Ratios are clamped to [0,1] by
// the engine before application; a provider is never trusted to pre-clamp.
type Intent struct {
	AgentID      int     `json:"agent_id"`
	Craft        int     `json:"craft"`
	OpenChests   int     `json:"open_chests"`
	InvestMedals bool    `json:"invest_medals"`
	StakeRatio   float64 `json:"stake_ratio"`
	UnstakeRatio float64 `json:"unstake_ratio"`
	SellRatio    float64 `json:"sell_ratio"`
	Rationale    string  `json:"rationale,omitempty"`
}

// Provider supplies the day's intent batch plus a market narrative.
// Implementations own their retry/backoff policy; by the time GetIntents
// returns a non-Success status the engine proceeds with an empty batch.
type Provider interface {
	GetIntents(ctx context.Context, mc MarketContext, agents []AgentSnapshot) ([]Intent, string, Status)
}
