package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func seasonFixture(t *testing.T) (*JSONDir, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "2025")
	writeFile(t, dir, "teams.json", `[{"id":1,"name":"São Paulo"},{"id":2,"name":"Grêmio"}]`)
	writeFile(t, dir, "round_1.json", `[
		{"id":10,"home":{"id":1},"away":{"id":2},"homeGoals":2,"awayGoals":1,"finalized":true}
	]`)
	writeFile(t, dir, "round_2.json", `[
		{"id":11,"round":2,"home":{"name":"gremio"},"away":{"name":"SAO PAULO"}},
		{"id":12,"round":2,"home":{"name":"Unknown FC"},"away":{"id":1}}
	]`)
	return NewJSONDir(root, zap.NewNop()), dir
}

func TestJSONDirReadsSeason(t *testing.T) {
	src, _ := seasonFixture(t)
	ctx := context.Background()

	teams, err := src.AllTeams(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	rounds, err := src.Rounds(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rounds)

	all, err := src.AllMatches(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, all, 3)

	first := all[0]
	assert.Equal(t, 1, first.Round, "round defaults to the file's round")
	assert.True(t, first.Finalized)
	assert.Equal(t, "2 x 1", first.ScoreText())

	second := all[1]
	require.True(t, second.Valid())
	assert.Equal(t, 2, second.Home.ID, "names resolve against the roster")
	assert.Equal(t, 1, second.Away.ID)
	assert.False(t, second.Scored())

	assert.False(t, all[2].Valid(), "unknown names leave the match malformed")
}

func TestJSONDirFileRoundWins(t *testing.T) {
	src, dir := seasonFixture(t)
	writeFile(t, dir, "round_3.json", `[
		{"id":13,"round":5,"home":{"id":1},"away":{"id":2}}
	]`)

	ms, err := src.MatchesByRound(context.Background(), 2025, 3)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 3, ms[0].Round)
}

func TestJSONDirMissingSeasonIsEmpty(t *testing.T) {
	src := NewJSONDir(t.TempDir(), nil)
	ms, err := src.AllMatches(context.Background(), 1999)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestJSONDirRejectsNonList(t *testing.T) {
	src, dir := seasonFixture(t)
	writeFile(t, dir, "round_3.json", `{"matches":[]}`)

	_, err := src.AllMatches(context.Background(), 2025)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotList))

	_, err = src.MatchesByRound(context.Background(), 2025, 3)
	assert.True(t, errors.Is(err, ErrNotList))
}

func TestMemoryReturnsCopies(t *testing.T) {
	a := &league.Team{ID: 1, Name: "A"}
	b := &league.Team{ID: 2, Name: "B"}
	mem := NewMemory()
	mem.SetMatches(1, []*league.Match{
		{ID: 2, Round: 2, Home: b, Away: a},
		{ID: 1, Round: 1, Home: a, Away: b},
	})

	ms, err := mem.AllMatches(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Round)
	ms[0].Finalized = true

	again, _ := mem.AllMatches(context.Background(), 1)
	assert.False(t, again[0].Finalized)

	require.NoError(t, mem.Finalize(1, 2, 0, 0))
	r2, _ := mem.MatchesByRound(context.Background(), 1, 2)
	require.Len(t, r2, 1)
	assert.True(t, r2[0].Finalized)
	assert.Error(t, mem.Finalize(1, 99, 0, 0))

	rounds, _ := mem.Rounds(context.Background(), 1)
	assert.Equal(t, []int{1, 2}, rounds)
}

type countingRoster struct {
	calls int
	teams []*league.Team
}

func (c *countingRoster) AllTeams(context.Context, int) ([]*league.Team, error) {
	c.calls++
	return c.teams, nil
}

func TestRosterCache(t *testing.T) {
	inner := &countingRoster{teams: []*league.Team{{ID: 1, Name: "A"}}}
	cache := NewRosterCache(inner, time.Minute)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := cache.AllTeams(ctx, 2025)
	require.NoError(t, err)
	_, _ = cache.AllTeams(ctx, 2025)
	assert.Equal(t, 1, inner.calls)

	now = now.Add(2 * time.Minute)
	_, _ = cache.AllTeams(ctx, 2025)
	assert.Equal(t, 2, inner.calls, "expired entries are refetched")

	cache.Invalidate(2025)
	_, _ = cache.AllTeams(ctx, 2025)
	assert.Equal(t, 3, inner.calls)

	cache.InvalidateAll()
	_, _ = cache.AllTeams(ctx, 2025)
	assert.Equal(t, 4, inner.calls)
}
