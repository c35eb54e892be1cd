package persistence

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/settle"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetRun("test-run")
	return db
}

func TestDayLogRoundTrip(t *testing.T) {
	db := openTestDB(t)

	in := &settle.DayLog{
		Day:             3,
		Price:           1.0203,
		Treasury:        1234.5,
		BuybackRate:     0.031,
		BuybackSpend:    40,
		BuybackBought:   39.2,
		TotalWealth:     9000,
		NewWealth:       450,
		StakingDividend: 3.92,
		ImpliedAPY:      1.43,
		MedalsInPool:    27,
		PoolPayout:      1000,
		TaxCollected:    55,
		Activity:        2.5,
		ProviderStatus:  "success",
		Narrative:       "MEME chopped sideways all day.",
		Notes:           []string{"agent 4: craft 9: insufficient funds"},
	}
	if err := db.Append(in); err != nil {
		t.Fatalf("append: %v", err)
	}

	logs, err := db.RecentDayLogs(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	out := logs[0]
	if out.Day != in.Day || out.Narrative != in.Narrative || out.ProviderStatus != in.ProviderStatus {
		t.Errorf("log mangled: %+v", out)
	}
	if math.Abs(out.Price-in.Price) > 1e-12 || math.Abs(out.BuybackBought-in.BuybackBought) > 1e-12 {
		t.Errorf("numeric fields mangled: %+v", out)
	}
	if len(out.Notes) != 1 || out.Notes[0] != in.Notes[0] {
		t.Errorf("notes mangled: %v", out.Notes)
	}

	last, err := db.LastDayLog()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || last.Day != 3 {
		t.Fatalf("last log = %+v", last)
	}
}

func TestLastDayLog_Empty(t *testing.T) {
	db := openTestDB(t)
	last, err := db.LastDayLog()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil on empty table, got %+v", last)
	}
}

func TestStateRoundTrip(t *testing.T) {
	db := openTestDB(t)

	agents := []*ledger.Agent{
		{ID: 0, Name: "player", Human: true, BaseCurrency: 900, Token: 50, Wealth: 150, EquipmentCount: 3, Chests: 1},
		{ID: 1, Name: "wagmi_1", Personality: "degen", BaseCurrency: 20, StakedToken: 300, Medals: 4, InvestedMedals: 2, UnclaimedPoolReward: 12.5},
	}
	in := ledger.New(agents)
	in.Day = 9
	in.Treasury = 777
	in.DailyNewWealth = 42
	in.MedalsInPool = 2

	if err := db.SaveState(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := db.LoadState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out == nil {
		t.Fatal("load returned nil after save")
	}
	if out.Day != 9 || out.Treasury != 777 || out.DailyNewWealth != 42 || out.MedalsInPool != 2 {
		t.Errorf("globals mangled: %+v", out)
	}
	if len(out.Agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(out.Agents))
	}
	p := out.Player()
	if p == nil || p.BaseCurrency != 900 || p.EquipmentCount != 3 {
		t.Errorf("player mangled: %+v", p)
	}
	bot := out.Agent(1)
	if bot.Personality != "degen" || bot.StakedToken != 300 || bot.UnclaimedPoolReward != 12.5 {
		t.Errorf("bot mangled: %+v", bot)
	}
	// Save is replace, not append.
	if err := db.SaveState(out); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	again, err := db.LoadState()
	if err != nil || len(again.Agents) != 2 {
		t.Fatalf("re-load: %v, agents %d", err, len(again.Agents))
	}
}

func TestRunIDSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	run, err := db.EnsureRun("run-a")
	if err != nil {
		t.Fatalf("ensure run: %v", err)
	}
	if run != "run-a" {
		t.Fatalf("fresh db run = %q, want the candidate", run)
	}
	if err := db.Append(&settle.DayLog{Day: 1, ProviderStatus: "success"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	db.Close()

	// A restarted process mints a fresh candidate id; it must resume the
	// stored run, not orphan the existing day-log history.
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { db2.Close() })
	run2, err := db2.EnsureRun("run-b")
	if err != nil {
		t.Fatalf("ensure run after restart: %v", err)
	}
	if run2 != "run-a" {
		t.Fatalf("run after restart = %q, want run-a", run2)
	}
	logs, err := db2.RecentDayLogs(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(logs) != 1 || logs[0].Day != 1 {
		t.Fatalf("day-log history unreachable after restart: %d logs", len(logs))
	}
}

func TestPoolRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if _, _, ok, err := db.LoadPool(); err != nil || ok {
		t.Fatalf("expected no saved pool, ok=%v err=%v", ok, err)
	}
	if err := db.SavePool(999_000, 1_001_002.5); err != nil {
		t.Fatalf("save pool: %v", err)
	}
	rt, rb, ok, err := db.LoadPool()
	if err != nil || !ok {
		t.Fatalf("load pool: ok=%v err=%v", ok, err)
	}
	if rt != 999_000 || rb != 1_001_002.5 {
		t.Fatalf("reserves mangled: %v %v", rt, rb)
	}
}
