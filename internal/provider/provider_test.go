package provider

import (
	"context"
	"testing"

	"github.com/talgya/meme-market/internal/ledger"
)

func snapshotFor(personality string) AgentSnapshot {
	return AgentSnapshot{
		ID:          1,
		Name:        "bot",
		Personality: personality,
		Base:        1000,
		Token:       500,
		Staked:      200,
		Chests:      3,
	}
}

func TestHeuristic_OneIntentPerAgent(t *testing.T) {
	h := NewHeuristic(ledger.DefaultParams())
	agents := []AgentSnapshot{
		snapshotFor(PersonalityDegen),
		snapshotFor(PersonalityHodler),
		snapshotFor(PersonalityFlipper),
	}
	mc := MarketContext{Day: 3, Price: 1.2, Trend: TrendUp, UpStreak: 2}

	intents, narrative, status := h.GetIntents(context.Background(), mc, agents)
	if status != StatusSuccess {
		t.Fatalf("status = %v", status)
	}
	if len(intents) != len(agents) {
		t.Fatalf("got %d intents for %d agents", len(intents), len(agents))
	}
	if narrative == "" {
		t.Error("expected a narrative")
	}
}

func TestHeuristic_PersonalitiesDiffer(t *testing.T) {
	h := NewHeuristic(ledger.DefaultParams())
	mc := MarketContext{Day: 3, Price: 1.2, Trend: TrendUp, UpStreak: 3}

	degen := h.decide(mc, snapshotFor(PersonalityDegen))
	hodler := h.decide(mc, snapshotFor(PersonalityHodler))
	flipper := h.decide(mc, snapshotFor(PersonalityFlipper))

	if degen.SellRatio <= hodler.SellRatio {
		t.Errorf("degen should sell more than hodler: %v vs %v", degen.SellRatio, hodler.SellRatio)
	}
	if hodler.StakeRatio != 1.0 {
		t.Errorf("hodler should stake everything, got %v", hodler.StakeRatio)
	}
	// Three green days: the flipper liquidates.
	if flipper.UnstakeRatio != 1.0 || flipper.SellRatio <= 0 {
		t.Errorf("flipper should take profit on a streak: %+v", flipper)
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	h := NewHeuristic(ledger.DefaultParams())
	agents := []AgentSnapshot{snapshotFor(PersonalityRotator)}
	mc := MarketContext{Day: 4, Price: 0.9, Trend: TrendDown}

	a, _, _ := h.GetIntents(context.Background(), mc, agents)
	b, _, _ := h.GetIntents(context.Background(), mc, agents)
	if len(a) != 1 || len(b) != 1 || a[0] != b[0] {
		t.Fatalf("heuristic not deterministic: %+v vs %+v", a, b)
	}
}

func TestParseOracleReply(t *testing.T) {
	text := "Here is the plan:\n```json\n" +
		`{"narrative": "MEME rips, bots ape in.", "intents": [` +
		`{"agent_id": 1, "craft": 2, "open_chests": 1, "invest_medals": true, "sell_ratio": 0.4, "rationale": "taking some off"}]}` +
		"\n```"
	reply, err := parseOracleReply(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reply.Narrative == "" {
		t.Error("narrative lost")
	}
	if len(reply.Intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(reply.Intents))
	}
	in := reply.Intents[0]
	if in.AgentID != 1 || in.Craft != 2 || !in.InvestMedals || in.SellRatio != 0.4 {
		t.Errorf("intent mangled: %+v", in)
	}
}

func TestParseOracleReply_Garbage(t *testing.T) {
	for _, text := range []string{
		"",
		"no json here",
		`{"narrative": "empty", "intents": []}`,
		`{"broken": `,
	} {
		if _, err := parseOracleReply(text); err == nil {
			t.Errorf("parse(%q) should fail", text)
		}
	}
}

func TestOracle_DisabledClient(t *testing.T) {
	o := NewOracle(nil)
	_, _, status := o.GetIntents(context.Background(), MarketContext{}, nil)
	if status != StatusError {
		t.Fatalf("disabled oracle status = %v, want error", status)
	}
}
