package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/utakatalp/league-projections/internal/rating"
	"github.com/utakatalp/league-projections/internal/sim"
)

// Rules are the competition and model parameters that vary by league.
type Rules struct {
	Rating       rating.Config `yaml:"rating"`
	Zones        sim.Zones     `yaml:"zones"`
	Score        sim.ScoreRule `yaml:"score"`
	MinPositions int           `yaml:"min_positions"`
}

func DefaultRules() Rules {
	return Rules{
		Rating:       rating.DefaultConfig(),
		Zones:        sim.DefaultZones(),
		Score:        sim.DefaultScoreRule(),
		MinPositions: 20,
	}
}

// LoadRules reads a YAML rules file over the defaults. An empty path
// returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) Validate() error {
	if err := r.Rating.Validate(); err != nil {
		return err
	}
	if err := r.Zones.Validate(); err != nil {
		return err
	}
	for name, p := range map[string]float64{
		"winner_extra": r.Score.WinnerExtra,
		"loser_goal":   r.Score.LoserGoal,
		"scoring_draw": r.Score.ScoringDraw,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("score.%s must be a probability, got %v", name, p)
		}
	}
	if r.MinPositions < 1 {
		return fmt.Errorf("min_positions must be positive, got %d", r.MinPositions)
	}
	return nil
}

// SimConfig combines the rules with the runtime settings.
func (c *Config) SimConfig(r Rules) sim.Config {
	return sim.Config{
		Zones:        r.Zones,
		Score:        r.Score,
		MinPositions: r.MinPositions,
		Workers:      c.Workers,
		Seed:         c.Seed,
		InnerTrials:  c.InnerTrials,
	}
}
