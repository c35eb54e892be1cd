package ledger

// Params holds every tunable economic constant consumed by the primitive
// actions and the reward engine. All of these load from configuration;
// nothing here is baked into a formula.
type Params struct {
	CraftCost           float64 `yaml:"craft_cost" json:"craft_cost"`
	WealthPerItem       float64 `yaml:"wealth_per_item" json:"wealth_per_item"`
	CraftTreasuryShare  float64 `yaml:"craft_treasury_share" json:"craft_treasury_share"`
	WealthPerBonusChest float64 `yaml:"wealth_per_bonus_chest" json:"wealth_per_bonus_chest"`

	SalvageRate float64 `yaml:"salvage_rate" json:"salvage_rate"`

	ChestCost float64 `yaml:"chest_cost" json:"chest_cost"`
	MedalMin  int     `yaml:"medal_min" json:"medal_min"`
	MedalMax  int     `yaml:"medal_max" json:"medal_max"`

	DailyTokenReward  float64 `yaml:"daily_token_reward" json:"daily_token_reward"`
	PoolClaimPayout   float64 `yaml:"pool_claim_payout" json:"pool_claim_payout"`   // fraction paid on claim, rest retained
	RedistributionTax float64 `yaml:"redistribution_tax" json:"redistribution_tax"` // tax on bot pool payouts
	DividendSplit     float64 `yaml:"dividend_split" json:"dividend_split"`         // share of bought MEME paid to stakers
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		CraftCost:           100,
		WealthPerItem:       50,
		CraftTreasuryShare:  0.5,
		WealthPerBonusChest: 100,
		SalvageRate:         0.5,
		ChestCost:           20,
		MedalMin:            1,
		MedalMax:            5,
		DailyTokenReward:    1000,
		PoolClaimPayout:     0.9,
		RedistributionTax:   0.1,
		DividendSplit:       0.1,
	}
}
