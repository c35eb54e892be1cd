// Package reward computes the daily medal-pool payout, the redistribution
// tax on bot winnings, and the staking dividend. All functions operate on a
// ledger the settlement engine has already staged; none of them touch the
// AMM.
package reward

import "github.com/talgya/meme-market/internal/ledger"

// PoolSettlement summarizes one day's medal-pool payout.
type PoolSettlement struct {
	MedalsInPool  float64
	TotalPayout   float64 // MEME credited across all pool-reward buckets
	BotPayout     float64 // portion that went to non-human agents, pre-tax
	TaxCollected  float64 // redistribution tax withheld from bot payouts
	Redistributed float64 // taxed MEME routed to the player's bucket
}

// SettlePool pays out the current medal pool and applies the redistribution
// tax, then drains the pool: invested medals and the pool counter are zeroed
// so the day's fresh investments start from nothing.
//
// Each investor receives dailyReward * invested/medalsInPool. Bot payouts
// are taxed at the configured rate before they reach the bot's bucket; the
// withheld amount flows to the human player scaled by the player's share of
// total wealth (the remainder of the withheld pool is not paid to anyone).
func SettlePool(l *ledger.Ledger, p ledger.Params) PoolSettlement {
	s := PoolSettlement{MedalsInPool: l.MedalsInPool}
	if l.MedalsInPool > 0 {
		var botTotal float64
		for _, a := range l.Agents {
			if a.InvestedMedals <= 0 {
				continue
			}
			payout := p.DailyTokenReward * a.InvestedMedals / l.MedalsInPool
			if a.Human {
				a.UnclaimedPoolReward += payout
			} else {
				withheld := payout * p.RedistributionTax
				a.UnclaimedPoolReward += payout - withheld
				botTotal += payout
				s.TaxCollected += withheld
			}
			s.TotalPayout += payout
		}
		s.BotPayout = botTotal

		if player := l.Player(); player != nil && s.TaxCollected > 0 && l.TotalWealth > 0 {
			share := player.Wealth / l.TotalWealth
			s.Redistributed = s.TaxCollected * share
			player.UnclaimedRedistribution += s.Redistributed
		}
	}

	// The pool is a flow quantity. Once settled it starts empty; whatever
	// today's actions invest becomes tomorrow's pool.
	for _, a := range l.Agents {
		a.InvestedMedals = 0
	}
	l.MedalsInPool = 0
	return s
}

// DividendResult summarizes one day's staking dividend.
type DividendResult struct {
	Dividend   float64 // MEME distributed across staking buckets
	ImpliedAPY float64 // annualized yield implied by today's dividend
}

// DistributeDividend splits off the configured share of the buyback's MEME
// purchase and credits each staker proportional to stake. With nothing
// staked, nothing is distributed and the implied APY is zero; the day log
// still records it rather than letting the dividend silently vanish.
func DistributeDividend(l *ledger.Ledger, tokenBought float64, p ledger.Params) DividendResult {
	dividend := tokenBought * p.DividendSplit
	if dividend <= 0 || l.TotalStaked <= 0 {
		return DividendResult{}
	}
	for _, a := range l.Agents {
		if a.StakedToken <= 0 {
			continue
		}
		a.UnclaimedStakingReward += dividend * a.StakedToken / l.TotalStaked
	}
	return DividendResult{
		Dividend:   dividend,
		ImpliedAPY: dividend / l.TotalStaked * 365,
	}
}
