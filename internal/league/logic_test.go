package league

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teams(names ...string) []*Team {
	out := make([]*Team, len(names))
	for i, n := range names {
		out[i] = &Team{ID: i + 1, Name: n}
	}
	return out
}

func played(id, round int, home, away *Team, hg, ag int) *Match {
	return &Match{ID: id, Round: round, Home: home, Away: away, HomeGoals: Goals(hg), AwayGoals: Goals(ag), Finalized: true}
}

func TestCalculateTableTieBreaks(t *testing.T) {
	ts := teams("Bravo", "alpha", "Charlie", "Delta")
	matches := []*Match{
		played(1, 1, ts[0], ts[2], 2, 0), // Bravo +2, 2 scored
		played(2, 1, ts[1], ts[3], 3, 1), // alpha +2, 3 scored
	}

	table := CalculateTable(ts, matches)
	require.Len(t, table, 4)

	assert.Equal(t, "alpha", table[0].Team.Name, "more goals for wins the tie")
	assert.Equal(t, "Bravo", table[1].Team.Name)
	assert.Equal(t, 3, table[0].Points)
	assert.Equal(t, 2, table[0].GoalDiff)
	assert.Equal(t, "Delta", table[2].Team.Name, "-2 with 1 goal ranks above -2 with none")
	assert.Equal(t, "Charlie", table[3].Team.Name)
}

func TestRanksFallsBackToNameThenID(t *testing.T) {
	a := &TableEntry{Team: &Team{ID: 2, Name: "Same"}}
	b := &TableEntry{Team: &Team{ID: 1, Name: "same"}}
	c := &TableEntry{Team: &Team{ID: 3, Name: "Other"}}

	assert.True(t, Ranks(b, a))
	assert.False(t, Ranks(a, b))
	assert.True(t, Ranks(c, a))
}

func TestOfficialTableIgnoresPending(t *testing.T) {
	ts := teams("A", "B")
	pending := &Match{ID: 2, Round: 2, Home: ts[1], Away: ts[0], HomeGoals: Goals(5), AwayGoals: Goals(0)}
	table := OfficialTable(ts, []*Match{played(1, 1, ts[0], ts[1], 1, 1), pending})

	require.Len(t, table, 2)
	for _, e := range table {
		assert.Equal(t, 1, e.Played)
		assert.Equal(t, 1, e.Points)
	}
}

func TestCalculateTableKeepsRosterTeamsWithoutMatches(t *testing.T) {
	ts := teams("A", "B", "C")
	table := CalculateTable(ts, nil)
	require.Len(t, table, 3)
	assert.Equal(t, "A", table[0].Team.Name)
}

func TestProbabilitiesSample(t *testing.T) {
	p := Probabilities{Home: 0.5, Draw: 0.3, Away: 0.2}
	assert.Equal(t, HomeWin, p.Sample(0))
	assert.Equal(t, HomeWin, p.Sample(0.49))
	assert.Equal(t, Draw, p.Sample(0.5))
	assert.Equal(t, Draw, p.Sample(0.79))
	assert.Equal(t, AwayWin, p.Sample(0.8))
	assert.Equal(t, AwayWin, p.Sample(0.999))
}

func TestProbabilitiesNormalize(t *testing.T) {
	p := Probabilities{Home: 2, Draw: 1, Away: 1}.Normalize()
	assert.InDelta(t, 1.0, p.Sum(), 1e-12)
	assert.InDelta(t, 0.5, p.Home, 1e-12)

	assert.Equal(t, UniformProbabilities(), Probabilities{}.Normalize())
}

func TestScoreHelpers(t *testing.T) {
	ts := teams("Home", "Away")
	m := played(1, 1, ts[0], ts[1], 2, 1)
	assert.Equal(t, "2 x 1", m.ScoreText())
	assert.Equal(t, "Home 2 - 1 Away", m.ScoreLine())
	res, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, HomeWin, res)

	open := &Match{ID: 2, Home: ts[0], Away: ts[1]}
	assert.Equal(t, "", open.ScoreText())
	_, ok = open.Result()
	assert.False(t, ok)
	assert.False(t, (&Match{Home: ts[0]}).Valid())
}

func TestGenerateFullSeason(t *testing.T) {
	ts := teams("A", "B", "C", "D", "E")
	season := GenerateFullSeason(ts)

	// five teams -> a phantom sixth, 5 rounds per half
	require.Len(t, season, 10)

	pairs := map[[2]int]int{}
	for i, round := range season {
		assert.Len(t, round, 2)
		for _, m := range round {
			assert.Equal(t, i+1, m.Round)
			pairs[[2]int{m.Home.ID, m.Away.ID}]++
		}
	}
	// every ordered pairing exactly once
	assert.Len(t, pairs, 20)
	for _, n := range pairs {
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, "A", ts[0].Name, "input slice is left untouched")
	assert.Equal(t, "B", ts[1].Name)
}

func TestPrintTable(t *testing.T) {
	ts := teams("A", "B")
	var buf bytes.Buffer
	PrintTable(&buf, "Standings", CalculateTable(ts, []*Match{played(1, 1, ts[0], ts[1], 1, 0)}))
	assert.Contains(t, buf.String(), "Standings")
	assert.Contains(t, buf.String(), "Pts")
}
