package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/meme-market/internal/llm"
)

// Oracle is the LLM-backed decision provider: one call per day produces the
// whole bot batch plus a market narrative. Any failure maps to a status the
// engine downgrades to an empty batch; the oracle never retries inline.
type Oracle struct {
	Client *llm.Client
}

// NewOracle creates an LLM-backed provider. The client may be nil-disabled;
// GetIntents then reports StatusError and the engine falls back.
func NewOracle(client *llm.Client) *Oracle {
	return &Oracle{Client: client}
}

// oracleReply is the JSON shape the model is asked to produce.
type oracleReply struct {
	Narrative string   `json:"narrative"`
	Intents   []Intent `json:"intents"`
}

// GetIntents asks the model for every bot's plan for the day.
func (o *Oracle) GetIntents(ctx context.Context, mc MarketContext, agents []AgentSnapshot) ([]Intent, string, Status) {
	if !o.Client.Enabled() {
		return nil, "", StatusError
	}

	system := oracleSystemPrompt()
	user := oracleUserPrompt(mc, agents)

	text, err := o.Client.Complete(ctx, system, user, 2000)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrRateLimited):
			slog.Warn("oracle rate limited", "error", err)
			return nil, "", StatusRateLimited
		case errors.Is(err, llm.ErrQuotaExceeded):
			slog.Warn("oracle quota exceeded", "error", err)
			return nil, "", StatusQuotaExceeded
		default:
			slog.Warn("oracle call failed", "error", err)
			return nil, "", StatusError
		}
	}

	reply, err := parseOracleReply(text)
	if err != nil {
		slog.Warn("oracle reply unparseable", "error", err)
		return nil, "", StatusError
	}
	return reply.Intents, reply.Narrative, StatusSuccess
}

func oracleSystemPrompt() string {
	return `You are the hive mind of a crowd of crypto-game bots. Each bot lives in a closed economy: it crafts items for Wealth (spending LvMON), opens chests for medals, invests medals into a daily MEME reward pool, and trades/stakes MEME on a constant-product AMM.

Respond ONLY with a single JSON object:
- "narrative": 1-2 sentences of market color for the day, written like a degenerate trading-floor recap
- "intents": an array with exactly one entry per bot, each:
  {"agent_id": <id>, "craft": <int>, "open_chests": <int>, "invest_medals": <bool>, "stake_ratio": <0..1>, "unstake_ratio": <0..1>, "sell_ratio": <0..1>, "rationale": "<one sentence in the bot's voice>"}

Ratios apply to current balances (sell_ratio to liquid MEME after unstaking, stake_ratio to what remains after selling). Decide in character for each bot's personality. Do not invent agent ids.`
}

func oracleUserPrompt(mc MarketContext, agents []AgentSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Day %d. MEME price %.6f LvMON (prev %.6f, trend %s, %d consecutive up days).\n",
		mc.Day, mc.Price, mc.PrevPrice, mc.Trend, mc.UpStreak)
	fmt.Fprintf(&b, "Pool liquidity ratio %.3f. Yesterday's staking APY %.1f%%. Treasury %.1f LvMON.\n\n",
		mc.LiquidityRatio, mc.PrevAPY*100, mc.Treasury)

	b.WriteString("The bots:\n")
	for _, a := range agents {
		fmt.Fprintf(&b, "- id %d (%s, %s): %.1f LvMON, %.2f MEME liquid, %.2f staked, wealth %.0f, %d chests, %d medals\n",
			a.ID, a.Name, a.Personality, a.Base, a.Token, a.Staked, a.Wealth, a.Chests, a.Medals)
	}

	b.WriteString("\nWhat does each bot do today? Respond with the single JSON object.")
	return b.String()
}

// parseOracleReply extracts the JSON object from the model's text, which may
// wrap it in prose or a code fence.
func parseOracleReply(text string) (*oracleReply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in reply")
	}

	var reply oracleReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("parse oracle reply: %w", err)
	}
	if len(reply.Intents) == 0 {
		return nil, fmt.Errorf("oracle reply has no intents")
	}
	return &reply, nil
}
