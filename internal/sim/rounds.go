package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/signature"
	"github.com/utakatalp/league-projections/internal/telemetry"
)

// MatchKind tells whether a round entry carries a real or simulated score.
type MatchKind string

const (
	KindReal      MatchKind = "real"
	KindSimulated MatchKind = "simulated"
)

// Tally counts sampled outcomes of one open match.
type Tally struct {
	HomeWins int `json:"homeWins"`
	Draws    int `json:"draws"`
	AwayWins int `json:"awayWins"`
	Total    int `json:"total"`
}

func (t *Tally) add(o league.Outcome) {
	switch o {
	case league.HomeWin:
		t.HomeWins++
	case league.AwayWin:
		t.AwayWins++
	default:
		t.Draws++
	}
	t.Total++
}

type RoundMatch struct {
	MatchID   int       `json:"matchId"`
	HomeID    int       `json:"homeId"`
	Home      string    `json:"home"`
	AwayID    int       `json:"awayId"`
	Away      string    `json:"away"`
	HomeGoals int       `json:"homeGoals"`
	AwayGoals int       `json:"awayGoals"`
	Score     string    `json:"score"`
	Kind      MatchKind `json:"kind"`
	Tally     *Tally    `json:"tally,omitempty"`
}

type StandingRow struct {
	Position     int    `json:"position"`
	TeamID       int    `json:"teamId"`
	Name         string `json:"name"`
	Points       int    `json:"points"`
	Played       int    `json:"played"`
	Wins         int    `json:"wins"`
	Draws        int    `json:"draws"`
	Losses       int    `json:"losses"`
	GoalsFor     int    `json:"goalsFor"`
	GoalsAgainst int    `json:"goalsAgainst"`
	GoalDiff     int    `json:"goalDiff"`
}

// RoundProjection is the state of the league at the end of one round.
type RoundProjection struct {
	Round     int           `json:"round"`
	Matches   []RoundMatch  `json:"matches"`
	Standings []StandingRow `json:"standings"`
}

// RoundsProjection is the round-by-round run for a season.
type RoundsProjection struct {
	Season      int               `json:"season"`
	Signature   string            `json:"signature"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Rounds      []RoundProjection `json:"rounds"`
}

// RealEntries returns the finalized results recorded in the run.
func (p *RoundsProjection) RealEntries() []signature.Entry {
	var out []signature.Entry
	for _, r := range p.Rounds {
		for _, m := range r.Matches {
			if m.Kind != KindReal {
				continue
			}
			out = append(out, signature.Entry{Round: r.Round, Home: m.Home, Away: m.Away, Score: m.Score})
		}
	}
	return out
}

// RoundSimulator advances a single table through the season, applying real
// results and one sampled result per open match.
type RoundSimulator struct {
	cfg       Config
	matches   league.MatchSource
	roster    league.RosterSource
	predictor Predictor
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewRoundSimulator(cfg Config, matches league.MatchSource, roster league.RosterSource, predictor Predictor, logger *zap.Logger) *RoundSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoundSimulator{
		cfg:       cfg.withDefaults(),
		matches:   matches,
		roster:    roster,
		predictor: predictor,
		logger:    logger.Sugar(),
		now:       time.Now,
	}
}

// Run simulates the season round by round. Each open match gets a
// descriptive tally of InnerTrials samples and, separately, one fresh draw
// that is applied to the table. The two are independent and the applied
// draw need not match the tally's majority.
func (s *RoundSimulator) Run(ctx context.Context, season int) (*RoundsProjection, error) {
	start := time.Now()
	roster, err := s.roster.AllTeams(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	rounds, err := s.matches.Rounds(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	probs, err := s.predictor.PredictSeason(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("predicting season %d: %w", season, err)
	}

	seed := s.cfg.seed()
	tallyRng := newRand(seed, 0)
	drawRng := newRand(seed, 1)

	table := league.NewTable(roster)
	var entries []signature.Entry
	out := &RoundsProjection{Season: season}

	for _, round := range rounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := s.matches.MatchesByRound(ctx, season, round)
		if err != nil {
			return nil, fmt.Errorf("loading round %d: %w", round, err)
		}
		rp := RoundProjection{Round: round, Matches: make([]RoundMatch, 0, len(matches))}

		var pending []*league.Match
		for _, m := range matches {
			if !m.Valid() {
				s.logger.Warnw("skipping match without both teams", "season", season, "round", round, "match", m.ID)
				telemetry.MalformedMatches.Inc()
				continue
			}
			if !m.Finalized {
				pending = append(pending, m)
				continue
			}
			hg, ag, ok := m.Score()
			if !ok {
				s.logger.Warnw("skipping finalized match without a score", "season", season, "round", round, "match", m.ID)
				telemetry.MalformedMatches.Inc()
				continue
			}
			table.Record(m.Home, m.Away, hg, ag)
			rp.Matches = append(rp.Matches, roundMatch(m, hg, ag, KindReal, nil))
			entries = append(entries, signature.Entry{Round: m.Round, Home: m.Home.Name, Away: m.Away.Name, Score: m.ScoreText()})
		}

		for _, m := range pending {
			p := lookup(probs, m, s.logger)
			tally := s.tally(p, tallyRng)
			hg, ag := s.cfg.Score.Synthesize(p.Sample(drawRng.Float64()), drawRng)
			table.Record(m.Home, m.Away, hg, ag)
			rp.Matches = append(rp.Matches, roundMatch(m, hg, ag, KindSimulated, &tally))
		}

		rp.Standings = standingRows(table.Sorted())
		out.Rounds = append(out.Rounds, rp)
	}

	out.Signature = signature.Compute(entries)
	out.GeneratedAt = s.now().UTC()

	elapsed := time.Since(start)
	telemetry.SimulationsRun.WithLabelValues("rounds").Inc()
	telemetry.SimulationDuration.WithLabelValues("rounds").Observe(elapsed.Seconds())
	s.logger.Infow("rounds simulated", "season", season, "rounds", len(out.Rounds), "elapsed", elapsed)
	return out, nil
}

func (s *RoundSimulator) tally(p league.Probabilities, rng *rand.Rand) Tally {
	var t Tally
	for i := 0; i < s.cfg.InnerTrials; i++ {
		t.add(p.Sample(rng.Float64()))
	}
	return t
}

func roundMatch(m *league.Match, hg, ag int, kind MatchKind, tally *Tally) RoundMatch {
	return RoundMatch{
		MatchID:   m.ID,
		HomeID:    m.Home.ID,
		Home:      m.Home.Name,
		AwayID:    m.Away.ID,
		Away:      m.Away.Name,
		HomeGoals: hg,
		AwayGoals: ag,
		Score:     fmt.Sprintf("%d x %d", hg, ag),
		Kind:      kind,
		Tally:     tally,
	}
}

func standingRows(entries []*league.TableEntry) []StandingRow {
	rows := make([]StandingRow, len(entries))
	for i, e := range entries {
		rows[i] = StandingRow{
			Position:     i + 1,
			TeamID:       e.Team.ID,
			Name:         e.Team.Name,
			Points:       e.Points,
			Played:       e.Played,
			Wins:         e.Wins,
			Draws:        e.Draws,
			Losses:       e.Losses,
			GoalsFor:     e.GoalsFor,
			GoalsAgainst: e.GoalsAgainst,
			GoalDiff:     e.GoalDiff,
		}
	}
	return rows
}
