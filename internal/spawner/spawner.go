// Package spawner builds the initial agent population: one human player and
// a crowd of bots with personality tags and jittered starting balances.
// Personalities only matter to the decision backends; settlement treats
// every agent identically.
package spawner

import (
	"fmt"
	"math/rand"

	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/provider"
)

// Config controls population generation.
type Config struct {
	Bots        int
	Seed        int64
	PlayerBase  float64 // player starting LvMON
	PlayerToken float64 // player starting MEME
	BotBase     float64 // bot mean starting LvMON
	BotToken    float64 // bot mean starting MEME
}

var personalities = []string{
	provider.PersonalityDegen,
	provider.PersonalityHodler,
	provider.PersonalityFlipper,
	provider.PersonalityRotator,
}

var botNames = []string{
	"wagmi", "ser", "fren", "anon", "chad", "paperhands", "diamond",
	"moonboy", "rugwatch", "gasfee", "hopium", "copium", "ape", "whale",
}

// Spawn creates the full population. Agent 0 is always the player.
func Spawn(cfg Config) []*ledger.Agent {
	rng := rand.New(rand.NewSource(cfg.Seed + 300))

	agents := make([]*ledger.Agent, 0, cfg.Bots+1)
	agents = append(agents, &ledger.Agent{
		ID:           0,
		Name:         "player",
		Human:        true,
		BaseCurrency: cfg.PlayerBase,
		Token:        cfg.PlayerToken,
	})

	for i := 0; i < cfg.Bots; i++ {
		p := personalities[rng.Intn(len(personalities))]
		name := fmt.Sprintf("%s_%d", botNames[rng.Intn(len(botNames))], i+1)

		// Jitter balances ±30% around the configured mean so the crowd
		// is unequal from day one.
		jitter := func(mean float64) float64 {
			return mean * (0.7 + 0.6*rng.Float64())
		}

		agents = append(agents, &ledger.Agent{
			ID:           ledger.AgentID(i + 1),
			Name:         name,
			Personality:  p,
			BaseCurrency: jitter(cfg.BotBase),
			Token:        jitter(cfg.BotToken),
		})
	}
	return agents
}
