package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/league-projections/internal/league"
)

func TestMatchRowToMatch(t *testing.T) {
	teams := map[int]*league.Team{}
	played := matchRow{
		id: 1, round: 1,
		homeID: 10, homeName: "Home",
		awayID: 20, awayName: "Away",
		homeGoals: sql.NullInt64{Int64: 2, Valid: true},
		awayGoals: sql.NullInt64{Int64: 1, Valid: true},
		finalized: true,
	}
	open := matchRow{id: 2, round: 2, homeID: 20, homeName: "Away", awayID: 10, awayName: "Home"}

	m1 := played.toMatch(teams)
	m2 := open.toMatch(teams)

	assert.Equal(t, "2 x 1", m1.ScoreText())
	assert.True(t, m1.Finalized)
	assert.False(t, m2.Scored())
	assert.Same(t, m1.Home, m2.Away, "team pointers are shared across rows")
	require.Len(t, teams, 2)
}

func TestNullGoals(t *testing.T) {
	assert.False(t, nullGoals(nil).Valid)
	g := nullGoals(league.Goals(3))
	assert.True(t, g.Valid)
	assert.Equal(t, int64(3), g.Int64)
}
