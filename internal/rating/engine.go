// Package rating derives Elo strength ratings from finalized results and
// turns rating gaps into match outcome probabilities.
package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
)

// ErrMatchNotFound is returned when a match id is not part of the season.
var ErrMatchNotFound = errors.New("match not found")

// Config holds the tunable model parameters.
type Config struct {
	Baseline       float64 `yaml:"baseline"`
	HomeAdvantage  float64 `yaml:"home_advantage"`
	KBase          float64 `yaml:"k_base"`
	GoalDiffWeight float64 `yaml:"goal_diff_weight"`
	DrawBaseline   float64 `yaml:"draw_baseline"`
	DrawFloor      float64 `yaml:"draw_floor"`
	DrawScale      float64 `yaml:"draw_scale"`
}

func DefaultConfig() Config {
	return Config{
		Baseline:       1500,
		HomeAdvantage:  65,
		KBase:          20,
		GoalDiffWeight: 0.5,
		DrawBaseline:   0.27,
		DrawFloor:      0.05,
		DrawScale:      200,
	}
}

// Validate rejects parameter sets the model cannot work with.
func (c Config) Validate() error {
	if c.KBase <= 0 {
		return fmt.Errorf("k_base must be positive, got %v", c.KBase)
	}
	if c.GoalDiffWeight < 0 {
		return fmt.Errorf("goal_diff_weight must not be negative, got %v", c.GoalDiffWeight)
	}
	if c.DrawBaseline < 0 || c.DrawBaseline >= 1 {
		return fmt.Errorf("draw_baseline must be in [0,1), got %v", c.DrawBaseline)
	}
	if c.DrawFloor < 0 || c.DrawFloor >= 1 {
		return fmt.Errorf("draw_floor must be in [0,1), got %v", c.DrawFloor)
	}
	if c.DrawScale <= 0 {
		return fmt.Errorf("draw_scale must be positive, got %v", c.DrawScale)
	}
	return nil
}

// Ratings maps team id to rating.
type Ratings map[int]float64

// Of returns the rating for id, or baseline when the team has none yet.
func (r Ratings) Of(id int, baseline float64) float64 {
	if v, ok := r[id]; ok {
		return v
	}
	return baseline
}

func (r Ratings) clone() Ratings {
	out := make(Ratings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Engine computes ratings for a season from its collaborators.
type Engine struct {
	cfg     Config
	matches league.MatchSource
	roster  league.RosterSource
	logger  *zap.SugaredLogger
}

func NewEngine(cfg Config, matches league.MatchSource, roster league.RosterSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		matches: matches,
		roster:  roster,
		logger:  logger.Sugar(),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// Fingerprint identifies the model parameters behind the engine's predictions.
func (e *Engine) Fingerprint() string { return e.cfg.Fingerprint() }

func (c Config) Fingerprint() string {
	return fmt.Sprintf("elo/%g/%g/%g/%g draw/%g/%g/%g",
		c.Baseline, c.HomeAdvantage, c.KBase, c.GoalDiffWeight,
		c.DrawBaseline, c.DrawFloor, c.DrawScale)
}

// Initialize returns the baseline rating for every roster team.
func (e *Engine) Initialize(ctx context.Context, season int) (Ratings, error) {
	teams, err := e.roster.AllTeams(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	ratings := make(Ratings, len(teams))
	for _, t := range teams {
		ratings[t.ID] = e.cfg.Baseline
	}
	return ratings, nil
}

// Recompute replays every finalized match of the season from baseline.
func (e *Engine) Recompute(ctx context.Context, season int) (Ratings, error) {
	base, err := e.Initialize(ctx, season)
	if err != nil {
		return nil, err
	}
	matches, err := e.matches.AllMatches(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}
	ratings := Replay(e.cfg, base, matches)
	e.logger.Debugw("ratings recomputed",
		"season", season,
		"teams", len(ratings),
		"matches", len(matches),
	)
	return ratings, nil
}

// Replay applies the finalized matches to a copy of base in ascending round
// order. Matches within a round keep their input order and are applied one
// at a time, each against the ratings left by the previous one.
func Replay(cfg Config, base Ratings, matches []*league.Match) Ratings {
	ratings := base.clone()
	finished := league.Finished(matches)
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].Round < finished[j].Round
	})
	for _, m := range finished {
		ApplyMatch(cfg, ratings, m)
	}
	return ratings
}

// ExpectedScore is the logistic Elo expectation of a side rated ra against
// rb, with bonus added to ra before the transform.
func ExpectedScore(ra, rb, bonus float64) float64 {
	diff := ra - rb + bonus
	return 1 / (1 + math.Pow(10, -diff/400))
}

// KFactor grows with the goal margin once it exceeds one.
func KFactor(cfg Config, goalDiff int) float64 {
	if goalDiff < 0 {
		goalDiff = -goalDiff
	}
	if goalDiff <= 1 {
		return cfg.KBase
	}
	return cfg.KBase * (1 + float64(goalDiff-1)*cfg.GoalDiffWeight)
}

// ApplyMatch updates ratings in place for one scored match. Teams missing
// from ratings start at the baseline.
func ApplyMatch(cfg Config, ratings Ratings, m *league.Match) {
	hg, ag, ok := m.Score()
	if !ok || !m.Valid() {
		return
	}
	rh := ratings.Of(m.Home.ID, cfg.Baseline)
	ra := ratings.Of(m.Away.ID, cfg.Baseline)

	expHome := ExpectedScore(rh, ra, cfg.HomeAdvantage)
	var actual float64
	switch league.ResultOf(hg, ag) {
	case league.HomeWin:
		actual = 1
	case league.Draw:
		actual = 0.5
	}
	delta := KFactor(cfg, hg-ag) * (actual - expHome)

	ratings[m.Home.ID] = rh + delta
	ratings[m.Away.ID] = ra - delta
}
