package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/signature"
	"github.com/utakatalp/league-projections/internal/telemetry"
)

// Predictor supplies outcome probabilities for the open matches of a
// season keyed by match id.
type Predictor interface {
	PredictSeason(ctx context.Context, season int) (map[int]league.Probabilities, error)
}

// SeasonStore persists projections keyed by season and trial count.
type SeasonStore interface {
	LoadSeason(ctx context.Context, season, trials int) (*SeasonProjection, bool)
	SaveSeason(ctx context.Context, p *SeasonProjection) error
}

// SeasonProjection is the outcome of a season simulation.
type SeasonProjection struct {
	Season      int                     `json:"season"`
	TrialCount  int                     `json:"trialCount"`
	Signature   string                  `json:"signature"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Zones       Zones                   `json:"zones"`
	Teams       map[int]*TeamProjection `json:"teams"`
}

// Ranked returns the team projections ordered by title probability, then
// mean position.
func (p *SeasonProjection) Ranked() []*TeamProjection {
	out := make([]*TeamProjection, 0, len(p.Teams))
	for _, t := range p.Teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProbTitle != out[j].ProbTitle {
			return out[i].ProbTitle > out[j].ProbTitle
		}
		if out[i].MeanPosition != out[j].MeanPosition {
			return out[i].MeanPosition < out[j].MeanPosition
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out
}

// SeasonSimulator projects final tables by sampling every open match.
type SeasonSimulator struct {
	cfg       Config
	matches   league.MatchSource
	roster    league.RosterSource
	predictor Predictor
	store     SeasonStore
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewSeasonSimulator wires a simulator. store may be nil.
func NewSeasonSimulator(cfg Config, matches league.MatchSource, roster league.RosterSource, predictor Predictor, store SeasonStore, logger *zap.Logger) *SeasonSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeasonSimulator{
		cfg:       cfg.withDefaults(),
		matches:   matches,
		roster:    roster,
		predictor: predictor,
		store:     store,
		logger:    logger.Sugar(),
		now:       time.Now,
	}
}

// Simulate returns the stored projection for (season, trials) when there is
// one, and otherwise runs and stores a fresh one. Staleness is the caller's
// concern.
func (s *SeasonSimulator) Simulate(ctx context.Context, season, trials int) (*SeasonProjection, error) {
	if s.store != nil {
		if p, ok := s.store.LoadSeason(ctx, season, trials); ok {
			return p, nil
		}
	}
	p, err := s.Recompute(ctx, season, trials)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.SaveSeason(ctx, p); err != nil {
			s.logger.Warnw("failed to store projection", "season", season, "trials", trials, "error", err)
		}
	}
	return p, nil
}

// teamIndex maps team ids to dense positions.
type teamIndex struct {
	teams []*league.Team
	keys  []string
	pos   map[int]int
}

func buildIndex(roster []*league.Team, matches []*league.Match) *teamIndex {
	idx := &teamIndex{pos: make(map[int]int)}
	add := func(t *league.Team) {
		if t == nil {
			return
		}
		if _, ok := idx.pos[t.ID]; ok {
			return
		}
		idx.pos[t.ID] = len(idx.teams)
		idx.teams = append(idx.teams, t)
		idx.keys = append(idx.keys, sortKey(t.Name))
	}
	for _, t := range roster {
		add(t)
	}
	for _, m := range matches {
		add(m.Home)
		add(m.Away)
	}
	return idx
}

// fixture is a match reduced to what the trial loop needs.
type fixture struct {
	home, away int
	real       bool
	hg, ag     int
	probs      league.Probabilities
}

func (s *SeasonSimulator) prepare(ctx context.Context, season int, idx *teamIndex, matches []*league.Match) ([]fixture, error) {
	probs, err := s.predictor.PredictSeason(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("predicting season %d: %w", season, err)
	}
	out := make([]fixture, 0, len(matches))
	for _, m := range matches {
		if !m.Valid() {
			s.logger.Warnw("skipping match without both teams", "season", season, "match", m.ID, "round", m.Round)
			telemetry.MalformedMatches.Inc()
			continue
		}
		f := fixture{home: idx.pos[m.Home.ID], away: idx.pos[m.Away.ID]}
		if m.Finalized {
			hg, ag, ok := m.Score()
			if !ok {
				s.logger.Warnw("skipping finalized match without a score", "season", season, "match", m.ID, "round", m.Round)
				telemetry.MalformedMatches.Inc()
				continue
			}
			f.real, f.hg, f.ag = true, hg, ag
		} else {
			f.probs = lookup(probs, m, s.logger)
		}
		out = append(out, f)
	}
	return out, nil
}

// lookup returns the predicted triple for an open match. Only matches
// without a usable id are expected to be missing; anything else is logged.
func lookup(probs map[int]league.Probabilities, m *league.Match, logger *zap.SugaredLogger) league.Probabilities {
	if m.ID <= 0 {
		return league.UniformProbabilities()
	}
	if p, ok := probs[m.ID]; ok {
		return p
	}
	logger.Warnw("no prediction for open match, using uniform", "match", m.ID, "round", m.Round)
	return league.UniformProbabilities()
}

// Recompute always runs the simulation, bypassing the store.
func (s *SeasonSimulator) Recompute(ctx context.Context, season, trials int) (*SeasonProjection, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trial count must be positive, got %d", trials)
	}
	start := time.Now()

	roster, err := s.roster.AllTeams(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	matches, err := s.matches.AllMatches(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}
	idx := buildIndex(roster, matches)
	fixtures, err := s.prepare(ctx, season, idx, matches)
	if err != nil {
		return nil, err
	}

	maxPos := max(s.cfg.MinPositions, len(idx.teams))
	agg, err := s.run(ctx, idx, fixtures, trials, maxPos)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	telemetry.SimulationsRun.WithLabelValues("season").Inc()
	telemetry.SimulationDuration.WithLabelValues("season").Observe(elapsed.Seconds())
	telemetry.TrialsRun.Add(float64(trials))
	s.logger.Infow("season simulated",
		"season", season,
		"trials", trials,
		"teams", len(idx.teams),
		"fixtures", len(fixtures),
		"elapsed", elapsed,
	)

	return &SeasonProjection{
		Season:      season,
		TrialCount:  trials,
		Signature:   signature.Of(matches),
		GeneratedAt: s.now().UTC(),
		Zones:       s.cfg.Zones,
		Teams:       agg.project(idx),
	}, nil
}

// run splits trials across shards. Each shard owns its generator and
// aggregate; the partial aggregates are summed at the end.
func (s *SeasonSimulator) run(ctx context.Context, idx *teamIndex, fixtures []fixture, trials, maxPos int) (*aggregate, error) {
	shards := min(s.cfg.Workers, trials)
	seed := s.cfg.seed()
	parts := make([]*aggregate, shards)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < shards; i++ {
		n := trials / shards
		if i < trials%shards {
			n++
		}
		g.Go(func() error {
			part, err := s.shard(ctx, idx, fixtures, n, maxPos, newRand(seed, i))
			parts[i] = part
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newAggregate(len(idx.teams), maxPos)
	for _, p := range parts {
		total.merge(p)
	}
	return total, nil
}

func (s *SeasonSimulator) shard(ctx context.Context, idx *teamIndex, fixtures []fixture, trials, maxPos int, rng *rand.Rand) (*aggregate, error) {
	agg := newAggregate(len(idx.teams), maxPos)
	table := newStandings(len(idx.teams))
	for t := 0; t < trials; t++ {
		if t%256 == 0 {
			if err := ctx.Err(); err != nil {
				return agg, err
			}
		}
		table.reset()
		for _, f := range fixtures {
			if f.real {
				table.apply(f.home, f.away, f.hg, f.ag)
				continue
			}
			outcome := f.probs.Sample(rng.Float64())
			hg, ag := s.cfg.Score.Synthesize(outcome, rng)
			table.apply(f.home, f.away, hg, ag)
		}
		for pos, team := range table.rank(idx) {
			agg.record(team, pos+1, s.cfg.Zones)
		}
		agg.trials++
	}
	return agg, nil
}
