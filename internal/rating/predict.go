package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/utakatalp/league-projections/internal/league"
)

const (
	defaultDrawFloor = 0.05
	defaultDrawScale = 200.0
)

// PredictMatch converts two ratings into home/draw/away probabilities.
// The draw share peaks at drawBaseline for evenly matched sides and decays
// with the rating gap, never dropping below 5%.
func PredictMatch(ratingHome, ratingAway, homeAdvantage, drawBaseline float64) league.Probabilities {
	return predict(ratingHome, ratingAway, homeAdvantage, drawBaseline, defaultDrawFloor, defaultDrawScale)
}

// Predict is PredictMatch with every parameter taken from c.
func (c Config) Predict(ratingHome, ratingAway float64) league.Probabilities {
	return predict(ratingHome, ratingAway, c.HomeAdvantage, c.DrawBaseline, c.DrawFloor, c.DrawScale)
}

func predict(rh, ra, homeAdvantage, drawBaseline, floor, scale float64) league.Probabilities {
	diff := rh - ra + homeAdvantage
	we := 1 / (1 + math.Pow(10, -diff/400))
	draw := math.Max(floor, drawBaseline*math.Exp(-math.Abs(diff)/scale))
	p := league.Probabilities{
		Home: we * (1 - draw),
		Draw: draw,
		Away: (1 - we) * (1 - draw),
	}
	return p.Normalize()
}

// Prediction pairs a fixture with its outcome probabilities.
type Prediction struct {
	Match         *league.Match        `json:"match"`
	Probabilities league.Probabilities `json:"probabilities"`
}

// PredictRound predicts every valid match of a round from one ratings pass.
func (e *Engine) PredictRound(ctx context.Context, season, round int) ([]Prediction, error) {
	ratings, err := e.Recompute(ctx, season)
	if err != nil {
		return nil, err
	}
	matches, err := e.matches.MatchesByRound(ctx, season, round)
	if err != nil {
		return nil, fmt.Errorf("loading round %d: %w", round, err)
	}
	out := make([]Prediction, 0, len(matches))
	for _, m := range matches {
		if !m.Valid() {
			e.logger.Warnw("skipping malformed match", "season", season, "round", round, "match", m.ID)
			continue
		}
		out = append(out, Prediction{Match: m, Probabilities: e.predictWith(ratings, m)})
	}
	return out, nil
}

// PredictMatchByID predicts a single fixture of the season.
func (e *Engine) PredictMatchByID(ctx context.Context, season, id int) (Prediction, error) {
	matches, err := e.matches.AllMatches(ctx, season)
	if err != nil {
		return Prediction{}, fmt.Errorf("loading matches: %w", err)
	}
	var target *league.Match
	for _, m := range matches {
		if m.ID == id && m.Valid() {
			target = m
			break
		}
	}
	if target == nil {
		return Prediction{}, fmt.Errorf("season %d match %d: %w", season, id, ErrMatchNotFound)
	}
	base, err := e.Initialize(ctx, season)
	if err != nil {
		return Prediction{}, err
	}
	ratings := Replay(e.cfg, base, matches)
	return Prediction{Match: target, Probabilities: e.predictWith(ratings, target)}, nil
}

// PredictSeason returns probabilities for every unfinished match keyed by
// match id. Matches without a usable id are left out.
func (e *Engine) PredictSeason(ctx context.Context, season int) (map[int]league.Probabilities, error) {
	base, err := e.Initialize(ctx, season)
	if err != nil {
		return nil, err
	}
	matches, err := e.matches.AllMatches(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}
	ratings := Replay(e.cfg, base, matches)

	table := make(map[int]league.Probabilities)
	for _, m := range matches {
		if m.ID <= 0 || !m.Valid() || m.Finalized {
			continue
		}
		table[m.ID] = e.predictWith(ratings, m)
	}
	return table, nil
}

func (e *Engine) predictWith(ratings Ratings, m *league.Match) league.Probabilities {
	if m.ID <= 0 {
		return league.UniformProbabilities()
	}
	return e.cfg.Predict(
		ratings.Of(m.Home.ID, e.cfg.Baseline),
		ratings.Of(m.Away.ID, e.cfg.Baseline),
	)
}
