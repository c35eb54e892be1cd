package settle

// DayLog is the immutable record emitted by one committed day-step. It
// carries no wall-clock timestamp: two runs of the same day from the same
// seed and intent batch must serialize byte-identically. The persistence
// layer stamps insertion time itself.
type DayLog struct {
	Day   int     `json:"day"`
	Price float64 `json:"price"` // MEME spot price after the step

	Treasury      float64 `json:"treasury"` // after buyback
	BuybackRate   float64 `json:"buyback_rate"`
	BuybackSpend  float64 `json:"buyback_spend"`
	BuybackBought float64 `json:"buyback_bought"`

	TotalWealth float64 `json:"total_wealth"`
	NewWealth   float64 `json:"new_wealth"`

	StakingDividend float64 `json:"staking_dividend"`
	ImpliedAPY      float64 `json:"implied_apy"`

	MedalsInPool float64 `json:"medals_in_pool"` // committed today, pays out tomorrow
	PoolPayout   float64 `json:"pool_payout"`    // settled this step (yesterday's pool)
	TaxCollected float64 `json:"tax_collected"`

	// Activity is executed actions per agent, a crude aggregate of how
	// busy the day was, consumed only by reporting.
	Activity float64 `json:"activity"`

	ProviderStatus string   `json:"provider_status"`
	Narrative      string   `json:"narrative"` // opaque market color from the provider
	Notes          []string `json:"notes,omitempty"`
}

// DayLogSink receives committed day logs. Consumers only read; a sink
// failure is logged and never fails the day-step.
type DayLogSink interface {
	Append(log *DayLog) error
}
