package ledger

import (
	"math"
	"math/rand"

	"github.com/talgya/meme-market/internal/amm"
)

// Primitive actions. Each one is a single-agent state transition guarded by
// an affordability check: on insufficient resources it mutates nothing and
// returns a sentinel error. The settlement engine replays bot intents
// through the same functions the player API calls.

// Craft converts base currency into wealth. Half of the spend (configurable)
// routes to the treasury, and every WealthPerBonusChest of wealth gained
// yields a bonus chest.
func (l *Ledger) Craft(a *Agent, n int, p Params) error {
	if n <= 0 {
		return nil
	}
	cost := p.CraftCost * float64(n)
	if a.BaseCurrency < cost {
		return ErrInsufficientFunds
	}
	gain := p.WealthPerItem * float64(n)

	a.BaseCurrency -= cost
	a.Wealth += gain
	a.EquipmentCount += n
	if p.WealthPerBonusChest > 0 {
		a.Chests += int(math.Floor(gain / p.WealthPerBonusChest))
	}

	l.Treasury += cost * p.CraftTreasuryShare
	l.TotalWealth += gain
	l.DailyNewWealth += gain
	return nil
}

// Salvage destroys n crafted items, removing their wealth and refunding
// currency at the salvage rate. A leak, not a tax event: the treasury is
// untouched and DailyNewWealth is not reduced.
func (l *Ledger) Salvage(a *Agent, n int, p Params) error {
	if n <= 0 {
		return nil
	}
	if a.EquipmentCount < n {
		return ErrInsufficientInventory
	}
	destroyed := p.WealthPerItem * float64(n)

	a.EquipmentCount -= n
	a.Wealth = math.Max(0, a.Wealth-destroyed)
	a.BaseCurrency += destroyed * p.SalvageRate
	l.TotalWealth = math.Max(0, l.TotalWealth-destroyed)
	return nil
}

// OpenChests opens n chests at a fixed per-chest cost (all of it routed to
// the treasury) and rolls a uniform medal drop per chest. Returns the
// number of medals gained.
func (l *Ledger) OpenChests(a *Agent, n int, p Params, rng *rand.Rand) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	if a.Chests < n {
		return 0, ErrInsufficientInventory
	}
	cost := p.ChestCost * float64(n)
	if a.BaseCurrency < cost {
		return 0, ErrInsufficientFunds
	}

	a.Chests -= n
	a.BaseCurrency -= cost
	l.Treasury += cost

	span := p.MedalMax - p.MedalMin + 1
	if span < 1 {
		span = 1
	}
	medals := 0
	for i := 0; i < n; i++ {
		medals += p.MedalMin + rng.Intn(span)
	}
	a.Medals += medals
	return medals, nil
}

// InvestMedals commits all of the agent's held medals into today's reward
// pool. Returns the number committed; investing zero medals is a no-op.
func (l *Ledger) InvestMedals(a *Agent) int {
	moved := a.Medals
	if moved <= 0 {
		return 0
	}
	a.Medals = 0
	a.InvestedMedals += float64(moved)
	l.MedalsInPool += float64(moved)
	return moved
}

// Stake moves liquid MEME into the agent's staked balance.
func (l *Ledger) Stake(a *Agent, amount float64) error {
	if amount <= 0 {
		return nil
	}
	if a.Token < amount {
		return ErrInsufficientFunds
	}
	a.Token -= amount
	a.StakedToken += amount
	l.TotalStaked += amount
	return nil
}

// Unstake moves staked MEME back to the liquid balance. TotalStaked is
// floored at zero against accumulated float drift.
func (l *Ledger) Unstake(a *Agent, amount float64) error {
	if amount <= 0 {
		return nil
	}
	if a.StakedToken < amount {
		return ErrInsufficientFunds
	}
	a.StakedToken -= amount
	a.Token += amount
	l.TotalStaked = math.Max(0, l.TotalStaked-amount)
	return nil
}

// Sell swaps MEME for LvMON against the pool at the current reserves.
// Returns the proceeds. The caller sees the price impact of every earlier
// sell in the same day-step.
func (l *Ledger) Sell(a *Agent, amount float64, pool *amm.Pool) (float64, error) {
	if amount <= 0 {
		return 0, nil
	}
	if a.Token < amount {
		return 0, ErrInsufficientFunds
	}
	out := pool.ApplySwap(amount, true)
	a.Token -= amount
	a.BaseCurrency += out
	return out, nil
}

// ClaimPoolReward pays out the pool-reward bucket at the configured payout
// fraction; the remainder is simply not paid. Claiming an empty bucket
// returns 0 with no effect.
func (l *Ledger) ClaimPoolReward(a *Agent, p Params) float64 {
	if a.UnclaimedPoolReward <= 0 {
		return 0
	}
	paid := a.UnclaimedPoolReward * p.PoolClaimPayout
	a.UnclaimedPoolReward = 0
	a.Token += paid
	return paid
}

// ClaimRedistribution moves the full redistribution bucket into MEME.
func (l *Ledger) ClaimRedistribution(a *Agent) float64 {
	paid := a.UnclaimedRedistribution
	if paid <= 0 {
		return 0
	}
	a.UnclaimedRedistribution = 0
	a.Token += paid
	return paid
}

// ClaimStakingReward moves the full staking-dividend bucket into MEME.
func (l *Ledger) ClaimStakingReward(a *Agent) float64 {
	paid := a.UnclaimedStakingReward
	if paid <= 0 {
		return 0
	}
	a.UnclaimedStakingReward = 0
	a.Token += paid
	return paid
}
