package settle

import (
	"github.com/talgya/meme-market/internal/ledger"
)

// Player actions mutate the committed ledger directly. They happen between
// day-steps, through the same guarded primitives the engine replays for
// bots. While a day-step is in flight every mutation is rejected with
// ErrBusy: the step is working on a staged clone, and a write to the
// committed state would be silently overwritten at commit.

// playerDo runs fn against the committed state under the engine lock.
func (e *Engine) playerDo(fn func(l *ledger.Ledger, p *ledger.Agent) error) (*ledger.Agent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy.Load() {
		return nil, ErrBusy
	}
	player := e.ledger.Player()
	if player == nil {
		return nil, ledger.ErrUnknownAgent
	}
	if err := fn(e.ledger, player); err != nil {
		return nil, err
	}
	cp := *player
	return &cp, nil
}

// Craft crafts n items for the player.
func (e *Engine) Craft(n int) (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		return l.Craft(p, n, e.params)
	})
}

// Salvage destroys n of the player's crafted items.
func (e *Engine) Salvage(n int) (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		return l.Salvage(p, n, e.params)
	})
}

// OpenChests opens n of the player's chests.
func (e *Engine) OpenChests(n int) (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		_, err := l.OpenChests(p, n, e.params, e.rng)
		return err
	})
}

// InvestMedals commits all of the player's medals to today's pool.
func (e *Engine) InvestMedals() (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		l.InvestMedals(p)
		return nil
	})
}

// Stake stakes the given amount of the player's liquid MEME.
func (e *Engine) Stake(amount float64) (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		return l.Stake(p, amount)
	})
}

// Unstake returns the given amount of staked MEME to the liquid balance.
func (e *Engine) Unstake(amount float64) (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		return l.Unstake(p, amount)
	})
}

// Sell swaps the given fraction of the player's liquid MEME for LvMON at
// the current pool state. The ratio is clamped to [0,1].
func (e *Engine) Sell(ratio float64) (*ledger.Agent, error) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		_, err := l.Sell(p, ratio*p.Token, e.pool)
		return err
	})
}

// ClaimPoolReward pays out the player's pool-reward bucket (taxed at the
// configured payout fraction). Claiming twice in a row is a zero no-op.
func (e *Engine) ClaimPoolReward() (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		l.ClaimPoolReward(p, e.params)
		return nil
	})
}

// ClaimRedistribution pays out the player's redistribution bucket in full.
func (e *Engine) ClaimRedistribution() (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		l.ClaimRedistribution(p)
		return nil
	})
}

// ClaimStakingReward pays out the player's staking bucket in full.
func (e *Engine) ClaimStakingReward() (*ledger.Agent, error) {
	return e.playerDo(func(l *ledger.Ledger, p *ledger.Agent) error {
		l.ClaimStakingReward(p)
		return nil
	})
}
