package rating

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/source"
)

const season = 2025

// scenarioA: two teams, A beat B 2-1 in round 1, the return leg (A at home
// after the reversed fixture) is still open.
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

func newEngine(mem *source.Memory) *Engine {
	return NewEngine(DefaultConfig(), mem, mem, zap.NewNop())
}

func TestRecomputeScenarioA(t *testing.T) {
	mem, a, b := scenarioA()
	e := newEngine(mem)

	ratings, err := e.Recompute(context.Background(), season)
	require.NoError(t, err)

	assert.Greater(t, ratings[a.ID], 1500.0)
	assert.Less(t, ratings[b.ID], 1500.0)
	assert.InDelta(t, 3000.0, ratings[a.ID]+ratings[b.ID], 1e-9, "updates are zero-sum")

	preds, err := e.PredictRound(context.Background(), season, 2)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, a.ID, preds[0].Match.Home.ID)
	assert.Greater(t, preds[0].Probabilities.Home, 0.5)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	mem, _, _ := scenarioA()
	e := newEngine(mem)

	first, err := e.Recompute(context.Background(), season)
	require.NoError(t, err)
	second, err := e.Recompute(context.Background(), season)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInitializeUsesBaseline(t *testing.T) {
	mem, a, b := scenarioA()
	ratings, err := newEngine(mem).Initialize(context.Background(), season)
	require.NoError(t, err)
	assert.Equal(t, Ratings{a.ID: 1500, b.ID: 1500}, ratings)
}

func TestApplyMatchHomeWinMovesRatings(t *testing.T) {
	cfg := DefaultConfig()
	home := &league.Team{ID: 1, Name: "H"}
	away := &league.Team{ID: 2, Name: "A"}

	var last float64
	for gd := 1; gd <= 5; gd++ {
		ratings := Ratings{1: 1500, 2: 1500}
		ApplyMatch(cfg, ratings, &league.Match{
			ID: 1, Home: home, Away: away,
			HomeGoals: league.Goals(gd), AwayGoals: league.Goals(0), Finalized: true,
		})
		change := ratings[1] - 1500
		assert.Greater(t, change, 0.0)
		assert.Less(t, ratings[2], 1500.0)
		assert.GreaterOrEqual(t, change, last, "change grows with the margin")
		last = change
	}
}

func TestApplyMatchCreatesUnknownTeams(t *testing.T) {
	cfg := DefaultConfig()
	ratings := Ratings{}
	ApplyMatch(cfg, ratings, &league.Match{
		ID: 7, Home: &league.Team{ID: 10}, Away: &league.Team{ID: 11},
		HomeGoals: league.Goals(0), AwayGoals: league.Goals(0), Finalized: true,
	})
	require.Contains(t, ratings, 10)
	require.Contains(t, ratings, 11)
	// a draw at home is below expectation for the home side
	assert.Less(t, ratings[10], 1500.0)
	assert.Greater(t, ratings[11], 1500.0)
}

func TestReplayOrdersByRoundAndSkipsOpenMatches(t *testing.T) {
	cfg := DefaultConfig()
	x := &league.Team{ID: 1, Name: "X"}
	y := &league.Team{ID: 2, Name: "Y"}
	r1 := &league.Match{ID: 1, Round: 1, Home: x, Away: y, HomeGoals: league.Goals(3), AwayGoals: league.Goals(0), Finalized: true}
	r2 := &league.Match{ID: 2, Round: 2, Home: y, Away: x, HomeGoals: league.Goals(1), AwayGoals: league.Goals(0), Finalized: true}
	open := &league.Match{ID: 3, Round: 3, Home: x, Away: y, HomeGoals: league.Goals(9), AwayGoals: league.Goals(0)}

	base := Ratings{1: 1500, 2: 1500}
	ordered := Replay(cfg, base, []*league.Match{r1, r2, open})
	shuffled := Replay(cfg, base, []*league.Match{open, r2, r1})

	assert.Equal(t, ordered, shuffled)
	assert.Equal(t, Ratings{1: 1500, 2: 1500}, base, "base is not modified")
}

func TestKFactor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20.0, KFactor(cfg, 0))
	assert.Equal(t, 20.0, KFactor(cfg, 1))
	assert.Equal(t, 30.0, KFactor(cfg, 2))
	assert.Equal(t, 40.0, KFactor(cfg, -3))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.KBase = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DrawBaseline = 1.2
	assert.Error(t, cfg.Validate())
}
