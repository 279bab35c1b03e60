// Package sim runs Monte Carlo completions of a league season.
package sim

import (
	"fmt"
	"math/rand/v2"
	"runtime"

	"github.com/utakatalp/league-projections/internal/league"
)

// Zones are the table positions that count towards each projected outcome.
// Position 1 is always the title.
type Zones struct {
	ZoneA          int `yaml:"zone_a" json:"zoneA"`
	ZoneB          int `yaml:"zone_b" json:"zoneB"`
	MidFrom        int `yaml:"mid_from" json:"midFrom"`
	MidTo          int `yaml:"mid_to" json:"midTo"`
	RelegationFrom int `yaml:"relegation_from" json:"relegationFrom"`
}

func DefaultZones() Zones {
	return Zones{ZoneA: 4, ZoneB: 6, MidFrom: 7, MidTo: 12, RelegationFrom: 17}
}

func (z Zones) Validate() error {
	if z.ZoneA < 1 || z.ZoneB < z.ZoneA {
		return fmt.Errorf("zones: need 1 <= zone_a <= zone_b, got %d and %d", z.ZoneA, z.ZoneB)
	}
	if z.MidFrom > z.MidTo {
		return fmt.Errorf("zones: mid_from %d is after mid_to %d", z.MidFrom, z.MidTo)
	}
	if z.RelegationFrom < 1 {
		return fmt.Errorf("zones: relegation_from must be positive, got %d", z.RelegationFrom)
	}
	return nil
}

// ScoreRule synthesizes a plausible scoreline for a sampled outcome. The
// winner scores one goal, two with probability WinnerExtra. The loser scores
// one with probability LoserGoal, drawn independently; when that would level
// the score the winner gets one more. Draws are 1-1 with probability
// ScoringDraw and 0-0 otherwise.
type ScoreRule struct {
	WinnerExtra float64 `yaml:"winner_extra"`
	LoserGoal   float64 `yaml:"loser_goal"`
	ScoringDraw float64 `yaml:"scoring_draw"`
}

func DefaultScoreRule() ScoreRule {
	return ScoreRule{WinnerExtra: 0.45, LoserGoal: 0.12, ScoringDraw: 0.5}
}

func (s ScoreRule) Synthesize(o league.Outcome, rng *rand.Rand) (homeGoals, awayGoals int) {
	if o == league.Draw {
		if rng.Float64() < s.ScoringDraw {
			return 1, 1
		}
		return 0, 0
	}
	win, lose := 1, 0
	if rng.Float64() < s.WinnerExtra {
		win = 2
	}
	if rng.Float64() < s.LoserGoal {
		lose = 1
	}
	// a sampled win must stay a win in the table
	win = max(win, lose+1)
	if o == league.HomeWin {
		return win, lose
	}
	return lose, win
}

// Config controls both simulators.
type Config struct {
	Zones        Zones
	Score        ScoreRule
	MinPositions int
	Workers      int
	// Seed makes runs reproducible; zero draws a fresh seed per run.
	Seed        uint64
	InnerTrials int
}

func DefaultConfig() Config {
	return Config{
		Zones:        DefaultZones(),
		Score:        DefaultScoreRule(),
		MinPositions: 20,
		Workers:      runtime.NumCPU(),
		InnerTrials:  10000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinPositions <= 0 {
		c.MinPositions = d.MinPositions
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.InnerTrials <= 0 {
		c.InnerTrials = d.InnerTrials
	}
	return c
}

func (c Config) seed() uint64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return rand.Uint64()
}

// newRand returns the generator for one stream of a run.
func newRand(seed uint64, stream int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(stream)))
}
