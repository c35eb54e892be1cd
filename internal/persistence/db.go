// Package persistence provides SQLite-backed storage for day logs and
// ledger snapshots. Writers are the daemon only; dashboards and exporters
// read the same file through WAL mode.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/settle"
)

// DB wraps a SQLite connection.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// SetRun stamps all subsequent day-log rows with the simulation run id.
func (db *DB) SetRun(runID string) {
	db.runID = runID
}

// EnsureRun restores the persisted simulation run id, adopting candidate on
// a fresh database. Day-log history is keyed on the run id, so a restart
// must resume the stored run or the API loses all prior days.
func (db *DB) EnsureRun(candidate string) (string, error) {
	v, err := db.GetMeta("run_id")
	if err != nil {
		return "", err
	}
	if v == "" {
		if err := db.SetMeta("run_id", candidate); err != nil {
			return "", err
		}
		v = candidate
	}
	db.runID = v
	return v, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS day_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		price REAL NOT NULL,
		treasury REAL NOT NULL,
		buyback_rate REAL NOT NULL,
		buyback_spend REAL NOT NULL,
		buyback_bought REAL NOT NULL,
		total_wealth REAL NOT NULL,
		new_wealth REAL NOT NULL,
		staking_dividend REAL NOT NULL,
		implied_apy REAL NOT NULL,
		medals_in_pool REAL NOT NULL,
		pool_payout REAL NOT NULL,
		tax_collected REAL NOT NULL,
		activity REAL NOT NULL,
		provider_status TEXT NOT NULL,
		narrative TEXT NOT NULL,
		notes_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		personality TEXT,
		human INTEGER NOT NULL,
		base_currency REAL NOT NULL,
		token REAL NOT NULL,
		staked_token REAL NOT NULL,
		wealth REAL NOT NULL,
		chests INTEGER NOT NULL,
		equipment_count INTEGER NOT NULL,
		medals INTEGER NOT NULL,
		invested_medals REAL NOT NULL,
		unclaimed_pool REAL NOT NULL,
		unclaimed_redist REAL NOT NULL,
		unclaimed_staking REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_day_logs_day ON day_logs(run_id, day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Append persists a committed day log. Implements settle.DayLogSink.
func (db *DB) Append(log *settle.DayLog) error {
	notes, err := json.Marshal(log.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO day_logs (
			run_id, day, created_at, price, treasury,
			buyback_rate, buyback_spend, buyback_bought,
			total_wealth, new_wealth, staking_dividend, implied_apy,
			medals_in_pool, pool_payout, tax_collected, activity,
			provider_status, narrative, notes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, log.Day, time.Now().Unix(), log.Price, log.Treasury,
		log.BuybackRate, log.BuybackSpend, log.BuybackBought,
		log.TotalWealth, log.NewWealth, log.StakingDividend, log.ImpliedAPY,
		log.MedalsInPool, log.PoolPayout, log.TaxCollected, log.Activity,
		log.ProviderStatus, log.Narrative, string(notes),
	)
	if err != nil {
		return fmt.Errorf("insert day log: %w", err)
	}
	return nil
}

type dayLogRow struct {
	Day             int     `db:"day"`
	Price           float64 `db:"price"`
	Treasury        float64 `db:"treasury"`
	BuybackRate     float64 `db:"buyback_rate"`
	BuybackSpend    float64 `db:"buyback_spend"`
	BuybackBought   float64 `db:"buyback_bought"`
	TotalWealth     float64 `db:"total_wealth"`
	NewWealth       float64 `db:"new_wealth"`
	StakingDividend float64 `db:"staking_dividend"`
	ImpliedAPY      float64 `db:"implied_apy"`
	MedalsInPool    float64 `db:"medals_in_pool"`
	PoolPayout      float64 `db:"pool_payout"`
	TaxCollected    float64 `db:"tax_collected"`
	Activity        float64 `db:"activity"`
	ProviderStatus  string  `db:"provider_status"`
	Narrative       string  `db:"narrative"`
	NotesJSON       string  `db:"notes_json"`
}

func (r dayLogRow) toLog() (*settle.DayLog, error) {
	log := &settle.DayLog{
		Day:             r.Day,
		Price:           r.Price,
		Treasury:        r.Treasury,
		BuybackRate:     r.BuybackRate,
		BuybackSpend:    r.BuybackSpend,
		BuybackBought:   r.BuybackBought,
		TotalWealth:     r.TotalWealth,
		NewWealth:       r.NewWealth,
		StakingDividend: r.StakingDividend,
		ImpliedAPY:      r.ImpliedAPY,
		MedalsInPool:    r.MedalsInPool,
		PoolPayout:      r.PoolPayout,
		TaxCollected:    r.TaxCollected,
		Activity:        r.Activity,
		ProviderStatus:  r.ProviderStatus,
		Narrative:       r.Narrative,
	}
	if r.NotesJSON != "" {
		if err := json.Unmarshal([]byte(r.NotesJSON), &log.Notes); err != nil {
			return nil, fmt.Errorf("unmarshal notes: %w", err)
		}
	}
	return log, nil
}

// RecentDayLogs returns up to limit day logs for the current run, newest
// first.
func (db *DB) RecentDayLogs(limit int) ([]*settle.DayLog, error) {
	var rows []dayLogRow
	err := db.conn.Select(&rows, `
		SELECT day, price, treasury, buyback_rate, buyback_spend,
		       buyback_bought, total_wealth, new_wealth, staking_dividend,
		       implied_apy, medals_in_pool, pool_payout, tax_collected,
		       activity, provider_status, narrative, notes_json
		FROM day_logs WHERE run_id = ? ORDER BY day DESC LIMIT ?`,
		db.runID, limit)
	if err != nil {
		return nil, fmt.Errorf("select day logs: %w", err)
	}
	logs := make([]*settle.DayLog, 0, len(rows))
	for _, r := range rows {
		log, err := r.toLog()
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// LastDayLog returns the newest persisted day log across runs, or nil.
func (db *DB) LastDayLog() (*settle.DayLog, error) {
	var r dayLogRow
	err := db.conn.Get(&r, `
		SELECT day, price, treasury, buyback_rate, buyback_spend,
		       buyback_bought, total_wealth, new_wealth, staking_dividend,
		       implied_apy, medals_in_pool, pool_payout, tax_collected,
		       activity, provider_status, narrative, notes_json
		FROM day_logs ORDER BY id DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select last day log: %w", err)
	}
	return r.toLog()
}

// SaveState replaces the persisted ledger snapshot with the given one.
func (db *DB) SaveState(l *ledger.Ledger) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM agents`); err != nil {
		return fmt.Errorf("clear agents: %w", err)
	}
	for _, a := range l.Agents {
		_, err := tx.Exec(`
			INSERT INTO agents (
				id, name, personality, human, base_currency, token,
				staked_token, wealth, chests, equipment_count, medals,
				invested_medals, unclaimed_pool, unclaimed_redist,
				unclaimed_staking
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Personality, a.Human, a.BaseCurrency, a.Token,
			a.StakedToken, a.Wealth, a.Chests, a.EquipmentCount, a.Medals,
			a.InvestedMedals, a.UnclaimedPoolReward, a.UnclaimedRedistribution,
			a.UnclaimedStakingReward,
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	globals, err := json.Marshal(map[string]float64{
		"day":              float64(l.Day),
		"treasury":         l.Treasury,
		"total_wealth":     l.TotalWealth,
		"daily_new_wealth": l.DailyNewWealth,
		"medals_in_pool":   l.MedalsInPool,
		"total_staked":     l.TotalStaked,
	})
	if err != nil {
		return fmt.Errorf("marshal globals: %w", err)
	}
	if err := setMetaTx(tx, "ledger_globals", string(globals)); err != nil {
		return err
	}
	return tx.Commit()
}

type agentRow struct {
	ID              int     `db:"id"`
	Name            string  `db:"name"`
	Personality     string  `db:"personality"`
	Human           bool    `db:"human"`
	BaseCurrency    float64 `db:"base_currency"`
	Token           float64 `db:"token"`
	StakedToken     float64 `db:"staked_token"`
	Wealth          float64 `db:"wealth"`
	Chests          int     `db:"chests"`
	EquipmentCount  int     `db:"equipment_count"`
	Medals          int     `db:"medals"`
	InvestedMedals  float64 `db:"invested_medals"`
	UnclaimedPool   float64 `db:"unclaimed_pool"`
	UnclaimedRedist float64 `db:"unclaimed_redist"`
	UnclaimedStake  float64 `db:"unclaimed_staking"`
}

// LoadState restores a previously saved ledger, or returns nil if none was
// ever saved.
func (db *DB) LoadState() (*ledger.Ledger, error) {
	globals, err := db.GetMeta("ledger_globals")
	if err != nil {
		return nil, err
	}
	if globals == "" {
		return nil, nil
	}

	var rows []agentRow
	if err := db.conn.Select(&rows, `SELECT * FROM agents ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}
	agents := make([]*ledger.Agent, 0, len(rows))
	for _, r := range rows {
		agents = append(agents, &ledger.Agent{
			ID:                      ledger.AgentID(r.ID),
			Name:                    r.Name,
			Personality:             r.Personality,
			Human:                   r.Human,
			BaseCurrency:            r.BaseCurrency,
			Token:                   r.Token,
			StakedToken:             r.StakedToken,
			Wealth:                  r.Wealth,
			Chests:                  r.Chests,
			EquipmentCount:          r.EquipmentCount,
			Medals:                  r.Medals,
			InvestedMedals:          r.InvestedMedals,
			UnclaimedPoolReward:     r.UnclaimedPool,
			UnclaimedRedistribution: r.UnclaimedRedist,
			UnclaimedStakingReward:  r.UnclaimedStake,
		})
	}

	var g map[string]float64
	if err := json.Unmarshal([]byte(globals), &g); err != nil {
		return nil, fmt.Errorf("unmarshal globals: %w", err)
	}
	l := ledger.New(agents)
	l.Day = int(g["day"])
	l.Treasury = g["treasury"]
	l.TotalWealth = g["total_wealth"]
	l.DailyNewWealth = g["daily_new_wealth"]
	l.MedalsInPool = g["medals_in_pool"]
	l.TotalStaked = g["total_staked"]

	slog.Info("ledger restored", "day", l.Day, "agents", len(agents))
	return l, nil
}

// SavePool persists the AMM reserves.
func (db *DB) SavePool(reserveToken, reserveBase float64) error {
	v, _ := json.Marshal([2]float64{reserveToken, reserveBase})
	return db.SetMeta("amm_reserves", string(v))
}

// LoadPool restores the AMM reserves; ok is false if none were saved.
func (db *DB) LoadPool() (reserveToken, reserveBase float64, ok bool, err error) {
	v, err := db.GetMeta("amm_reserves")
	if err != nil || v == "" {
		return 0, 0, false, err
	}
	var r [2]float64
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return 0, 0, false, fmt.Errorf("unmarshal reserves: %w", err)
	}
	return r[0], r[1], true, nil
}

// GetMeta reads a world_meta value; empty string if absent.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, `SELECT value FROM world_meta WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta writes a world_meta value.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO world_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func setMetaTx(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO world_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}
