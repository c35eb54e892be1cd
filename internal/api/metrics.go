package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/settle"
)

// Metrics exports the committed economic state to Prometheus. Observe runs
// on every day-step commit; the rejected-action counter is bumped by the
// HTTP handlers.
type Metrics struct {
	price       prometheus.Gauge
	treasury    prometheus.Gauge
	totalWealth prometheus.Gauge
	totalStaked prometheus.Gauge
	day         prometheus.Gauge
	impliedAPY  prometheus.Gauge

	providerFailures prometheus.Counter
	rejectedActions  prometheus.Counter
}

// NewMetrics registers all collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		price: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meme_market_token_price",
			Help: "MEME spot price in LvMON after the last committed day.",
		}),
		treasury: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meme_market_treasury",
			Help: "Treasury balance in LvMON.",
		}),
		totalWealth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meme_market_total_wealth",
			Help: "Sum of all agents' wealth.",
		}),
		totalStaked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meme_market_total_staked",
			Help: "Sum of all agents' staked MEME.",
		}),
		day: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meme_market_day",
			Help: "Last committed day index.",
		}),
		impliedAPY: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meme_market_implied_apy",
			Help: "Staking APY implied by the last day's dividend.",
		}),
		providerFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meme_market_provider_failures_total",
			Help: "Day-steps settled with an empty batch due to provider failure.",
		}),
		rejectedActions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meme_market_rejected_actions_total",
			Help: "Player actions rejected with a named failure.",
		}),
	}
}

// Observe records a committed day log and the post-commit ledger.
func (m *Metrics) Observe(log *settle.DayLog, l *ledger.Ledger) {
	m.price.Set(log.Price)
	m.treasury.Set(log.Treasury)
	m.totalWealth.Set(l.TotalWealth)
	m.totalStaked.Set(l.TotalStaked)
	m.day.Set(float64(log.Day))
	m.impliedAPY.Set(log.ImpliedAPY)
	if log.ProviderStatus != "success" {
		m.providerFailures.Inc()
	}
}

// RecordRejection counts a rejected player action.
func (m *Metrics) RecordRejection() {
	if m != nil {
		m.rejectedActions.Inc()
	}
}
