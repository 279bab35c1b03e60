package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/utakatalp/league-projections/internal/league"
)

func (s *Store) AllTeams(ctx context.Context, season int) ([]*league.Team, error) {
	const q = `
        SELECT t.id, t.name, t.elo
        FROM teams t
        JOIN season_teams st ON st.team_id = t.id
        WHERE st.season = $1
        ORDER BY t.id
    `
	rows, err := s.DB.QueryContext(ctx, q, season)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*league.Team
	for rows.Next() {
		t := &league.Team{}
		if err := rows.Scan(&t.ID, &t.Name, &t.ELO); err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating teams rows: %w", err)
	}
	return teams, nil
}

func (s *Store) AllMatches(ctx context.Context, season int) ([]*league.Match, error) {
	return s.loadMatches(ctx, `WHERE m.season = $1`, season)
}

func (s *Store) MatchesByRound(ctx context.Context, season, round int) ([]*league.Match, error) {
	return s.loadMatches(ctx, `WHERE m.season = $1 AND m.round = $2`, season, round)
}

func (s *Store) Rounds(ctx context.Context, season int) ([]int, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT DISTINCT round FROM matches WHERE season = $1 ORDER BY round`, season)
	if err != nil {
		return nil, fmt.Errorf("querying rounds: %w", err)
	}
	defer rows.Close()

	var rounds []int
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// matchRow is one row of the matches join before team resolution.
type matchRow struct {
	id, round          int
	homeID, awayID     int
	homeName, awayName string
	homeGoals          sql.NullInt64
	awayGoals          sql.NullInt64
	finalized          bool
}

func (r matchRow) toMatch(teams map[int]*league.Team) *league.Match {
	team := func(id int, name string) *league.Team {
		if t, ok := teams[id]; ok {
			return t
		}
		t := &league.Team{ID: id, Name: name}
		teams[id] = t
		return t
	}
	m := &league.Match{
		ID:        r.id,
		Round:     r.round,
		Home:      team(r.homeID, r.homeName),
		Away:      team(r.awayID, r.awayName),
		Finalized: r.finalized,
	}
	if r.homeGoals.Valid {
		m.HomeGoals = league.Goals(int(r.homeGoals.Int64))
	}
	if r.awayGoals.Valid {
		m.AwayGoals = league.Goals(int(r.awayGoals.Int64))
	}
	return m
}

func (s *Store) loadMatches(ctx context.Context, where string, args ...any) ([]*league.Match, error) {
	query := `
SELECT m.id, m.round, m.home_team, h.name, m.away_team, a.name,
       m.home_goals, m.away_goals, m.finalized
FROM matches m
JOIN teams h ON h.id = m.home_team
JOIN teams a ON a.id = m.away_team
` + where + `
ORDER BY m.round, m.id;
`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	teams := make(map[int]*league.Team)
	var matches []*league.Match
	for rows.Next() {
		var r matchRow
		if err := rows.Scan(
			&r.id, &r.round,
			&r.homeID, &r.homeName,
			&r.awayID, &r.awayName,
			&r.homeGoals, &r.awayGoals, &r.finalized,
		); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, r.toMatch(teams))
	}
	return matches, rows.Err()
}
