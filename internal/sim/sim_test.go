package sim

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/rating"
	"github.com/utakatalp/league-projections/internal/source"
)

const season = 2025

func scenarioA() (*source.Memory, *league.Team, *league.Team) {
	a := &league.Team{ID: 1, Name: "Team A"}
	b := &league.Team{ID: 2, Name: "Team B"}
	mem := source.NewMemory()
	mem.SetTeams(season, []*league.Team{a, b})
	mem.SetMatches(season, []*league.Match{
		{ID: 1, Round: 1, Home: b, Away: a, HomeGoals: league.Goals(1), AwayGoals: league.Goals(2), Finalized: true},
		{ID: 2, Round: 2, Home: a, Away: b},
	})
	return mem, a, b
}

// sixTeams builds a double round-robin with the first round finalized.
func sixTeams() *source.Memory {
	var ts []*league.Team
	for i, n := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"} {
		ts = append(ts, &league.Team{ID: i + 1, Name: n})
	}
	var all []*league.Match
	id := 1
	for _, round := range league.GenerateFullSeason(ts) {
		for _, m := range round {
			m.ID = id
			id++
			if m.Round == 1 {
				m.HomeGoals, m.AwayGoals, m.Finalized = league.Goals(1), league.Goals(0), true
			}
			all = append(all, m)
		}
	}
	mem := source.NewMemory()
	mem.SetTeams(season, ts)
	mem.SetMatches(season, all)
	return mem
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Workers = 3
	cfg.InnerTrials = 500
	return cfg
}

func newSeason(mem *source.Memory, store SeasonStore) *SeasonSimulator {
	engine := rating.NewEngine(rating.DefaultConfig(), mem, mem, zap.NewNop())
	return NewSeasonSimulator(testConfig(), mem, mem, engine, store, zap.NewNop())
}

func TestSimulateScenarioB(t *testing.T) {
	mem, a, b := scenarioA()
	p, err := newSeason(mem, nil).Simulate(context.Background(), season, 1000)
	require.NoError(t, err)

	require.Contains(t, p.Teams, a.ID)
	require.Contains(t, p.Teams, b.ID)
	assert.Greater(t, p.Teams[a.ID].ProbTitle, p.Teams[b.ID].ProbTitle)
	assert.InDelta(t, 1.0, p.Teams[a.ID].ProbTitle+p.Teams[b.ID].ProbTitle, 1e-9)
	assert.Equal(t, 1000, p.TrialCount)
	assert.Equal(t, "1:team b:team a:1 x 2", p.Signature)
}

func TestSimulateHistogramSumsToTrials(t *testing.T) {
	mem := sixTeams()
	const trials = 997
	p, err := newSeason(mem, nil).Simulate(context.Background(), season, trials)
	require.NoError(t, err)
	require.Len(t, p.Teams, 6)

	var title float64
	for _, tp := range p.Teams {
		sum := 0
		for _, n := range tp.PositionDistribution {
			sum += n
		}
		assert.Equal(t, trials, sum, tp.Name)
		assert.Len(t, tp.PositionDistribution, 20, "positions run to at least 20")
		assert.GreaterOrEqual(t, tp.MinPosition, 1)
		assert.LessOrEqual(t, tp.MaxPosition, 6)
		assert.GreaterOrEqual(t, tp.MeanPosition, float64(tp.MinPosition))
		assert.LessOrEqual(t, tp.MeanPosition, float64(tp.MaxPosition))
		assert.GreaterOrEqual(t, tp.ProbZoneB, tp.ProbZoneA)
		assert.GreaterOrEqual(t, tp.ProbZoneA, tp.ProbTitle)
		assert.InDelta(t, 1.0, tp.ProbZoneB, 1e-9, "six teams always finish inside zone B")
		assert.Zero(t, tp.ProbRelegation)
		title += tp.ProbTitle
	}
	assert.InDelta(t, 1.0, title, 1e-9)
}

func TestSimulateIsReproducibleWithSeed(t *testing.T) {
	mem := sixTeams()
	first, err := newSeason(mem, nil).Recompute(context.Background(), season, 300)
	require.NoError(t, err)
	second, err := newSeason(mem, nil).Recompute(context.Background(), season, 300)
	require.NoError(t, err)
	assert.Equal(t, first.Teams, second.Teams)
}

func TestSimulateAllFinalizedIsDeterministic(t *testing.T) {
	mem, a, b := scenarioA()
	require.NoError(t, mem.Finalize(season, 2, 0, 0))

	p, err := newSeason(mem, nil).Simulate(context.Background(), season, 50)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Teams[a.ID].ProbTitle)
	assert.Equal(t, 0.0, p.Teams[b.ID].ProbTitle)
	assert.Equal(t, 50, p.Teams[b.ID].PositionDistribution[2])
	assert.Equal(t, 2.0, p.Teams[b.ID].MeanPosition)
}

func TestSimulateSkipsMalformedAndIncludesMatchOnlyTeams(t *testing.T) {
	mem, a, _ := scenarioA()
	stranger := &league.Team{ID: 9, Name: "Stranger"}
	ms, err := mem.AllMatches(context.Background(), season)
	require.NoError(t, err)
	ms = append(ms,
		// no away side
		&league.Match{ID: 3, Round: 3, Home: a},
		// finalized without a score
		&league.Match{ID: 4, Round: 3, Home: stranger, Away: a, Finalized: true},
		&league.Match{ID: 0, Round: 4, Home: a, Away: stranger},
	)
	mem.SetMatches(season, ms)

	p, err := newSeason(mem, nil).Simulate(context.Background(), season, 200)
	require.NoError(t, err)
	assert.Len(t, p.Teams, 3)
	assert.Contains(t, p.Teams, stranger.ID)
}

type memStore struct {
	saved map[[2]int]*SeasonProjection
	loads int
}

func (m *memStore) LoadSeason(_ context.Context, season, trials int) (*SeasonProjection, bool) {
	m.loads++
	p, ok := m.saved[[2]int{season, trials}]
	return p, ok
}

func (m *memStore) SaveSeason(_ context.Context, p *SeasonProjection) error {
	m.saved[[2]int{p.Season, p.TrialCount}] = p
	return nil
}

func TestSimulateReturnsStoredProjection(t *testing.T) {
	mem, _, _ := scenarioA()
	store := &memStore{saved: map[[2]int]*SeasonProjection{}}
	s := newSeason(mem, store)

	first, err := s.Simulate(context.Background(), season, 100)
	require.NoError(t, err)
	require.Len(t, store.saved, 1)

	// stored results come back as-is even after the data moves on
	require.NoError(t, mem.Finalize(season, 2, 0, 3))
	second, err := s.Simulate(context.Background(), season, 100)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := s.Simulate(context.Background(), season, 101)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestSimulateRejectsZeroTrials(t *testing.T) {
	mem, _, _ := scenarioA()
	_, err := newSeason(mem, nil).Simulate(context.Background(), season, 0)
	assert.Error(t, err)
}

func TestSimulateHonoursCancellation(t *testing.T) {
	mem := sixTeams()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSeason(mem, nil).Recompute(ctx, season, 10000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregateMerge(t *testing.T) {
	z := DefaultZones()
	a := newAggregate(2, 20)
	b := newAggregate(2, 20)
	a.record(0, 1, z)
	a.record(1, 2, z)
	a.trials++
	b.record(0, 2, z)
	b.record(1, 1, z)
	b.trials++

	a.merge(b)
	assert.Equal(t, 2, a.trials)
	assert.Equal(t, []int{1, 1}, a.champion)
	assert.Equal(t, 1, a.min[0])
	assert.Equal(t, 2, a.max[0])
	assert.Equal(t, 3, a.sum[0])
}

func TestScoreRuleSynthesize(t *testing.T) {
	rule := DefaultScoreRule()
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		h, a := rule.Synthesize(league.HomeWin, rng)
		assert.Greater(t, h, a)
		assert.Contains(t, []int{1, 2}, h)
		assert.Contains(t, []int{0, 1}, a)

		h, a = rule.Synthesize(league.AwayWin, rng)
		assert.Greater(t, a, h)

		h, a = rule.Synthesize(league.Draw, rng)
		assert.Equal(t, h, a)
		assert.Contains(t, []int{0, 1}, h)
	}
}

func TestScoreRuleLoserGoalRate(t *testing.T) {
	rule := DefaultScoreRule()
	rng := rand.New(rand.NewPCG(7, 11))
	const n = 200000
	loserScored, oneGoalWins, oneGoalWinsConceding := 0, 0, 0
	for i := 0; i < n; i++ {
		h, a := rule.Synthesize(league.HomeWin, rng)
		if a == 1 {
			loserScored++
		}
		if h-a == 1 && a == 1 {
			oneGoalWinsConceding++
		}
		if h == 1 {
			oneGoalWins++
		}
	}
	assert.InDelta(t, rule.LoserGoal, float64(loserScored)/n, 0.005)
	assert.Positive(t, oneGoalWinsConceding, "2-1 wins occur")
	assert.Positive(t, oneGoalWins)
}

func TestZeroScoreRuleIsKept(t *testing.T) {
	cfg := testConfig()
	cfg.Score = ScoreRule{}
	assert.Equal(t, ScoreRule{}, cfg.withDefaults().Score)

	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 100; i++ {
		h, a := cfg.Score.Synthesize(league.HomeWin, rng)
		assert.Equal(t, [2]int{1, 0}, [2]int{h, a})
		h, a = cfg.Score.Synthesize(league.Draw, rng)
		assert.Equal(t, [2]int{0, 0}, [2]int{h, a})
	}
}

func TestZonesValidate(t *testing.T) {
	require.NoError(t, DefaultZones().Validate())
	assert.Error(t, Zones{ZoneA: 6, ZoneB: 4, MidFrom: 7, MidTo: 12, RelegationFrom: 17}.Validate())
	assert.Error(t, Zones{ZoneA: 4, ZoneB: 6, MidFrom: 13, MidTo: 12, RelegationFrom: 17}.Validate())
}

func TestRanked(t *testing.T) {
	p := &SeasonProjection{Teams: map[int]*TeamProjection{
		1: {TeamID: 1, ProbTitle: 0.2, MeanPosition: 2},
		2: {TeamID: 2, ProbTitle: 0.7, MeanPosition: 1.2},
		3: {TeamID: 3, ProbTitle: 0.2, MeanPosition: 1.8},
	}}
	ranked := p.Ranked()
	assert.Equal(t, 2, ranked[0].TeamID)
	assert.Equal(t, 3, ranked[1].TeamID)
	assert.Equal(t, 1, ranked[2].TeamID)
}
