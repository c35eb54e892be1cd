// Package ledger owns all agent balances and the global economic aggregates.
// Every mutation funnels through the guarded actions in actions.go; there is
// no other write path. The settlement engine stages a day-step on a Clone and
// commits the clone atomically.
package ledger

// AgentID identifies an agent. The human player is a regular agent singled
// out only for UI and redistribution routing, never for settlement rules.
type AgentID int

// Agent is one economic participant, human or bot.
type Agent struct {
	ID          AgentID `json:"id"`
	Name        string  `json:"name"`
	Personality string  `json:"personality,omitempty"` // opaque to settlement
	Human       bool    `json:"human"`

	BaseCurrency float64 `json:"base_currency"` // LvMON
	Token        float64 `json:"token"`         // MEME
	StakedToken  float64 `json:"staked_token"`

	Wealth         float64 `json:"wealth"`
	Chests         int     `json:"chests"`
	EquipmentCount int     `json:"equipment_count"`

	// Medals are ephemeral: produced by chests, held until invested into
	// the daily pool. InvestedMedals is this agent's share of the current
	// pool and is zeroed once the pool pays out.
	Medals         int     `json:"medals"`
	InvestedMedals float64 `json:"invested_medals"`

	// Claimable buckets. Each accumulates across days until claimed.
	UnclaimedPoolReward     float64 `json:"unclaimed_pool_reward"`
	UnclaimedRedistribution float64 `json:"unclaimed_redistribution"`
	UnclaimedStakingReward  float64 `json:"unclaimed_staking_reward"`
}

// Ledger is the process-wide economic state: all agents plus the global
// aggregates the settlement engine reads and resets each day.
type Ledger struct {
	Day            int     `json:"day"`
	Treasury       float64 `json:"treasury"`
	TotalWealth    float64 `json:"total_wealth"`
	DailyNewWealth float64 `json:"daily_new_wealth"`
	MedalsInPool   float64 `json:"medals_in_pool"`
	TotalStaked    float64 `json:"total_staked"`

	Agents []*Agent `json:"agents"`

	index map[AgentID]*Agent
}

// New creates a ledger starting at day 1 with the given agents.
func New(agents []*Agent) *Ledger {
	l := &Ledger{Day: 1, Agents: agents}
	l.reindex()
	for _, a := range agents {
		l.TotalWealth += a.Wealth
		l.TotalStaked += a.StakedToken
	}
	return l
}

func (l *Ledger) reindex() {
	l.index = make(map[AgentID]*Agent, len(l.Agents))
	for _, a := range l.Agents {
		l.index[a.ID] = a
	}
}

// Agent returns the agent with the given id, or nil.
func (l *Ledger) Agent(id AgentID) *Agent {
	if l.index == nil {
		l.reindex()
	}
	return l.index[id]
}

// Player returns the human agent, or nil if none exists.
func (l *Ledger) Player() *Agent {
	for _, a := range l.Agents {
		if a.Human {
			return a
		}
	}
	return nil
}

// Clone returns a deep copy of the ledger. Used by the settlement engine to
// stage a day-step without exposing partial state.
func (l *Ledger) Clone() *Ledger {
	cp := *l
	cp.Agents = make([]*Agent, len(l.Agents))
	for i, a := range l.Agents {
		ac := *a
		cp.Agents[i] = &ac
	}
	cp.reindex()
	return &cp
}
