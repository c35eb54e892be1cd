package settle

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/talgya/meme-market/internal/amm"
	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/provider"
	"github.com/talgya/meme-market/internal/spawner"
)

func testPopulation(bots int) []*ledger.Agent {
	return spawner.Spawn(spawner.Config{
		Bots:        bots,
		Seed:        42,
		PlayerBase:  1000,
		PlayerToken: 100,
		BotBase:     800,
		BotToken:    500,
	})
}

func newTestEngine(prov provider.Provider) *Engine {
	l := ledger.New(testPopulation(6))
	pool := amm.NewPool(1_000_000, 1_000_000)
	return New(l, pool, ledger.DefaultParams(), amm.DefaultBuybackCurve(), prov, nil, 1)
}

// fixedProvider returns a canned batch.
type fixedProvider struct {
	intents   []provider.Intent
	narrative string
	status    provider.Status
}

func (p *fixedProvider) GetIntents(context.Context, provider.MarketContext, []provider.AgentSnapshot) ([]provider.Intent, string, provider.Status) {
	return p.intents, p.narrative, p.status
}

// blockingProvider parks until released, signalling entry first.
type blockingProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingProvider) GetIntents(context.Context, provider.MarketContext, []provider.AgentSnapshot) ([]provider.Intent, string, provider.Status) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.release
	return nil, "", provider.StatusSuccess
}

func TestAdvanceDay_Deterministic(t *testing.T) {
	// Two engines over identical populations, same day seed, same
	// provider rules: the committed day logs must be byte-identical.
	run := func() []byte {
		e := newTestEngine(provider.NewHeuristic(ledger.DefaultParams()))
		var out []byte
		for day := 0; day < 3; day++ {
			log, err := e.AdvanceDay(context.Background(), 12345+int64(day))
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			b, err := json.Marshal(log)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			out = append(out, b...)
		}
		return out
	}

	a, b := run(), run()
	if string(a) != string(b) {
		t.Fatalf("day logs diverged under identical seeds:\n%s\n---\n%s", a, b)
	}
}

func TestAdvanceDay_SeedChangesOutcome(t *testing.T) {
	// Chest-heavy intents so the seed drives both the medal rolls and the
	// execution permutation.
	mkEngine := func() *Engine {
		agents := []*ledger.Agent{
			{ID: 0, Human: true},
			{ID: 1, BaseCurrency: 2000, Chests: 10, Token: 10_000},
			{ID: 2, BaseCurrency: 2000, Chests: 10, Token: 20_000},
			{ID: 3, BaseCurrency: 2000, Chests: 10, Token: 30_000},
		}
		prov := &fixedProvider{
			intents: []provider.Intent{
				{AgentID: 1, OpenChests: 10, InvestMedals: true, SellRatio: 1.0},
				{AgentID: 2, OpenChests: 10, InvestMedals: true, SellRatio: 1.0},
				{AgentID: 3, OpenChests: 10, InvestMedals: true, SellRatio: 1.0},
			},
			status: provider.StatusSuccess,
		}
		return New(ledger.New(agents), amm.NewPool(1_000_000, 1_000_000),
			ledger.DefaultParams(), amm.DefaultBuybackCurve(), prov, nil, 1)
	}

	e1, e2 := mkEngine(), mkEngine()
	log1, err := e1.AdvanceDay(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	log2, err := e2.AdvanceDay(context.Background(), 99999)
	if err != nil {
		t.Fatal(err)
	}

	l1, _, _ := e1.Snapshot()
	l2, _, _ := e2.Snapshot()
	differs := log1.MedalsInPool != log2.MedalsInPool
	for _, a := range l1.Agents {
		if a.BaseCurrency != l2.Agent(a.ID).BaseCurrency {
			differs = true
		}
	}
	if !differs {
		t.Fatalf("different seeds produced identical days: %+v", log1)
	}
}

func TestAdvanceDay_TokenConservation(t *testing.T) {
	// A batch of pure trading/staking intents: no chests, no medals, so
	// nothing is minted. Token held by agents plus the AMM reserve may
	// change only by the buyback's net burn (bought minus dividend).
	intents := []provider.Intent{
		{AgentID: 1, SellRatio: 0.5},
		{AgentID: 2, StakeRatio: 0.8},
		{AgentID: 3, UnstakeRatio: 1.0, SellRatio: 0.3},
		{AgentID: 4, SellRatio: 1.0},
	}
	agents := []*ledger.Agent{
		{ID: 0, Human: true, Token: 100},
		{ID: 1, Token: 5000},
		{ID: 2, Token: 3000},
		{ID: 3, Token: 1000, StakedToken: 2000},
		{ID: 4, Token: 8000},
	}
	l := ledger.New(agents)
	l.Treasury = 50_000
	e := New(l, amm.NewPool(1_000_000, 1_000_000), ledger.DefaultParams(),
		amm.DefaultBuybackCurve(), &fixedProvider{intents: intents, status: provider.StatusSuccess}, nil, 1)

	sum := func(l *ledger.Ledger, pool *amm.Pool) float64 {
		total := pool.ReserveToken
		for _, a := range l.Agents {
			total += a.Token + a.StakedToken +
				a.UnclaimedPoolReward + a.UnclaimedRedistribution + a.UnclaimedStakingReward
		}
		return total
	}

	l0, p0, _ := e.Snapshot()
	before := sum(l0, p0)

	log, err := e.AdvanceDay(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}

	l1, p1, _ := e.Snapshot()
	after := sum(l1, p1)

	burned := log.BuybackBought - log.StakingDividend
	if math.Abs((before-burned)-after) > 1e-6 {
		t.Fatalf("token not conserved: before %v, after %v, burned %v", before, after, burned)
	}
	if log.BuybackBought <= 0 {
		t.Fatalf("expected a buyback, got %v", log.BuybackBought)
	}
}

func TestAdvanceDay_ProviderFailureSettlesEmpty(t *testing.T) {
	// Even with intents attached, a non-success status means the batch
	// is discarded and the day settles as a no-op batch.
	prov := &fixedProvider{
		intents: []provider.Intent{{AgentID: 1, SellRatio: 1.0}},
		status:  provider.StatusRateLimited,
	}
	e := newTestEngine(prov)

	l0, _, _ := e.Snapshot()
	bot := l0.Agent(1)
	tokenBefore := bot.Token

	log, err := e.AdvanceDay(context.Background(), 3)
	if err != nil {
		t.Fatalf("provider failure aborted the day: %v", err)
	}
	if log.ProviderStatus != "rate_limited" {
		t.Errorf("provider status = %q, want rate_limited", log.ProviderStatus)
	}

	l1, _, _ := e.Snapshot()
	if l1.Agent(1).Token != tokenBefore {
		t.Errorf("discarded intent still executed")
	}
	if l1.Day != l0.Day+1 {
		t.Errorf("day did not advance: %d -> %d", l0.Day, l1.Day)
	}
}

func TestAdvanceDay_BusyRejected(t *testing.T) {
	prov := &blockingProvider{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	e := newTestEngine(prov)

	done := make(chan error, 1)
	go func() {
		_, err := e.AdvanceDay(context.Background(), 1)
		done <- err
	}()
	<-prov.entered

	// Overlapping day-step is rejected, not queued.
	if _, err := e.AdvanceDay(context.Background(), 2); !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent advance err = %v, want ErrBusy", err)
	}
	// Player mutations are rejected while the step is in flight.
	if _, err := e.Craft(1); !errors.Is(err, ErrBusy) {
		t.Fatalf("player action during step err = %v, want ErrBusy", err)
	}

	close(prov.release)
	if err := <-done; err != nil {
		t.Fatalf("first advance failed: %v", err)
	}

	// Busy is retryable once the step commits.
	if _, err := e.AdvanceDay(context.Background(), 3); err != nil {
		t.Fatalf("retry after commit failed: %v", err)
	}
}

func TestAdvanceDay_PriceImpactCascade(t *testing.T) {
	// Two identical sells: whoever the permutation draws second sells
	// into a pool the first sell already pushed down, so proceeds differ.
	agents := []*ledger.Agent{
		{ID: 0, Human: true},
		{ID: 1, Token: 50_000},
		{ID: 2, Token: 50_000},
	}
	l := ledger.New(agents)
	pool := amm.NewPool(1_000_000, 1_000_000)
	prov := &fixedProvider{
		intents: []provider.Intent{
			{AgentID: 1, SellRatio: 1.0},
			{AgentID: 2, SellRatio: 1.0},
		},
		status: provider.StatusSuccess,
	}
	e := New(l, pool, ledger.DefaultParams(), amm.DefaultBuybackCurve(), prov, nil, 1)

	if _, err := e.AdvanceDay(context.Background(), 11); err != nil {
		t.Fatal(err)
	}

	l1, _, _ := e.Snapshot()
	p1 := l1.Agent(1).BaseCurrency
	p2 := l1.Agent(2).BaseCurrency
	if p1 == p2 {
		t.Fatalf("identical proceeds %v, the price-impact cascade is gone", p1)
	}
}

func TestAdvanceDay_ClampsOutOfRangeIntent(t *testing.T) {
	prov := &fixedProvider{
		intents: []provider.Intent{
			{AgentID: 1, SellRatio: 3.5, StakeRatio: -2, Craft: -4},
		},
		status: provider.StatusSuccess,
	}
	e := newTestEngine(prov)

	log, err := e.AdvanceDay(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}

	clamped := false
	for _, n := range log.Notes {
		if n == "agent 1: intent out of range, clamped" {
			clamped = true
		}
	}
	if !clamped {
		t.Errorf("clamp note missing: %v", log.Notes)
	}

	l1, _, _ := e.Snapshot()
	bot := l1.Agent(1)
	if bot.Token != 0 {
		t.Errorf("sell ratio 3.5 should clamp to 1.0 and empty the balance, got %v", bot.Token)
	}
	if bot.Token < 0 || bot.BaseCurrency < 0 || bot.StakedToken < 0 {
		t.Errorf("clamped intent corrupted balances: %+v", bot)
	}
}

func TestAdvanceDay_FirstDayNoPool(t *testing.T) {
	// Single agent, nothing invested: day 1 settles with zero pool
	// payout and zero redistribution for everyone.
	agents := []*ledger.Agent{{ID: 0, Human: true, BaseCurrency: 100}}
	l := ledger.New(agents)
	pool := amm.NewPool(1_000_000, 1_000_000)
	e := New(l, pool, ledger.DefaultParams(), amm.DefaultBuybackCurve(),
		&fixedProvider{status: provider.StatusSuccess}, nil, 1)

	log, err := e.AdvanceDay(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if log.PoolPayout != 0 || log.TaxCollected != 0 {
		t.Fatalf("empty pool paid out: %+v", log)
	}
	l1, _, _ := e.Snapshot()
	p := l1.Player()
	if p.UnclaimedPoolReward != 0 || p.UnclaimedRedistribution != 0 {
		t.Fatalf("player buckets credited from empty pool: %+v", p)
	}
}

func TestAdvanceDay_BuybackCappedAtTreasury(t *testing.T) {
	agents := []*ledger.Agent{{ID: 0, Human: true}}
	l := ledger.New(agents)
	l.Treasury = 10
	pool := amm.NewPool(1_000_000, 1_000_000)
	e := New(l, pool, ledger.DefaultParams(), amm.DefaultBuybackCurve(),
		&fixedProvider{status: provider.StatusSuccess}, nil, 1)

	log, err := e.AdvanceDay(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if log.BuybackSpend > 10 {
		t.Fatalf("spend %v exceeds treasury", log.BuybackSpend)
	}
	if log.Treasury < 0 {
		t.Fatalf("treasury went negative: %v", log.Treasury)
	}
}

func TestAdvanceDay_PoolPaysOutNextDay(t *testing.T) {
	// Medals invested during day N pay out at the start of day N+1.
	p := ledger.DefaultParams()
	agents := []*ledger.Agent{
		{ID: 0, Human: true},
		{ID: 1, BaseCurrency: 1000, Chests: 5},
	}
	l := ledger.New(agents)
	pool := amm.NewPool(1_000_000, 1_000_000)
	prov := &fixedProvider{
		intents: []provider.Intent{{AgentID: 1, OpenChests: 5, InvestMedals: true}},
		status:  provider.StatusSuccess,
	}
	e := New(l, pool, p, amm.DefaultBuybackCurve(), prov, nil, 1)

	log1, err := e.AdvanceDay(context.Background(), 21)
	if err != nil {
		t.Fatal(err)
	}
	if log1.MedalsInPool <= 0 {
		t.Fatalf("no medals committed on day 1: %+v", log1)
	}
	if log1.PoolPayout != 0 {
		t.Fatalf("same-day payout: %v", log1.PoolPayout)
	}

	// Day 2: the pool settles before any action.
	prov.intents = nil
	log2, err := e.AdvanceDay(context.Background(), 22)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(log2.PoolPayout-p.DailyTokenReward) > 1e-9 {
		t.Fatalf("pool payout = %v, want full daily reward %v", log2.PoolPayout, p.DailyTokenReward)
	}
	l2, _, _ := e.Snapshot()
	bot := l2.Agent(1)
	want := p.DailyTokenReward * (1 - p.RedistributionTax)
	if math.Abs(bot.UnclaimedPoolReward-want) > 1e-9 {
		t.Fatalf("bot bucket = %v, want %v after tax", bot.UnclaimedPoolReward, want)
	}
	if log2.MedalsInPool != 0 {
		t.Fatalf("pool should be empty after settling with no new invests: %v", log2.MedalsInPool)
	}
}
