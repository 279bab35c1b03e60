package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/rating"
)

// Store wraps a Postgres connection and serves seasons, rosters and ratings.
type Store struct {
	DB     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore opens a Postgres connection using the given connection string.
func NewStore(ctx context.Context, connStr string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.Sugar().Infow("connected to postgres")
	return &Store{DB: db, logger: logger.Sugar()}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS teams (
		    id   SERIAL PRIMARY KEY,
		    name TEXT NOT NULL UNIQUE,
		    elo  DOUBLE PRECISION NOT NULL DEFAULT 1500
		);`,
		`CREATE TABLE IF NOT EXISTS season_teams (
		    season  INT NOT NULL,
		    team_id INT NOT NULL REFERENCES teams(id),
		    PRIMARY KEY (season, team_id)
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
		    id         SERIAL PRIMARY KEY,
		    season     INT NOT NULL,
		    round      INT NOT NULL,
		    home_team  INT NOT NULL REFERENCES teams(id),
		    away_team  INT NOT NULL REFERENCES teams(id),
		    home_goals INT,
		    away_goals INT,
		    finalized  BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS matches_season_round ON matches (season, round);`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// InsertTeams registers teams for a season, creating them by name when
// needed, and sets each team's ID.
func (s *Store) InsertTeams(ctx context.Context, season int, teams []*league.Team) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin InsertTeams tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
    INSERT INTO teams (name) VALUES ($1)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id, elo
    `
	const link = `
    INSERT INTO season_teams (season, team_id) VALUES ($1, $2)
    ON CONFLICT DO NOTHING
    `
	for _, t := range teams {
		if err := tx.QueryRowContext(ctx, upsert, t.Name).Scan(&t.ID, &t.ELO); err != nil {
			return fmt.Errorf("inserting team %s: %w", t.Name, err)
		}
		if _, err := tx.ExecContext(ctx, link, season, t.ID); err != nil {
			return fmt.Errorf("linking team %d to season %d: %w", t.ID, season, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit InsertTeams tx: %w", err)
	}
	return nil
}

// SaveRatings writes ratings back to the teams table in one transaction.
func (s *Store) SaveRatings(ctx context.Context, ratings rating.Ratings) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin SaveRatings tx: %w", err)
	}
	defer tx.Rollback()

	for id, elo := range ratings {
		if _, err := tx.ExecContext(ctx, `UPDATE teams SET elo = $1 WHERE id = $2`, elo, id); err != nil {
			return fmt.Errorf("updating elo for team %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit SaveRatings tx: %w", err)
	}
	s.logger.Infow("ratings saved", "teams", len(ratings))
	return nil
}

// InitFullSeason stores every fixture of a generated season.
func (s *Store) InitFullSeason(ctx context.Context, season int, rounds [][]*league.Match) error {
	for _, round := range rounds {
		for _, match := range round {
			if err := s.SaveMatch(ctx, season, match); err != nil {
				return fmt.Errorf("saving full season: %w", err)
			}
		}
	}
	return nil
}

// SaveMatch inserts a fixture and sets its ID.
func (s *Store) SaveMatch(ctx context.Context, season int, m *league.Match) error {
	query := `
INSERT INTO matches (season, round, home_team, away_team, home_goals, away_goals, finalized)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`
	err := s.DB.QueryRowContext(ctx, query,
		season, m.Round, m.Home.ID, m.Away.ID,
		nullGoals(m.HomeGoals), nullGoals(m.AwayGoals), m.Finalized,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("saving match: %w", err)
	}
	return nil
}

// UpdateMatch records a score and finalized flag for an existing match.
func (s *Store) UpdateMatch(ctx context.Context, m *league.Match) error {
	query := `UPDATE matches
	SET home_goals = $1, away_goals = $2, finalized = $3 WHERE id = $4
		`
	res, err := s.DB.ExecContext(ctx, query, nullGoals(m.HomeGoals), nullGoals(m.AwayGoals), m.Finalized, m.ID)
	if err != nil {
		return fmt.Errorf("updating match %d: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updating match %d: no such match", m.ID)
	}
	return nil
}

// DeleteSeason removes a season's fixtures and roster links.
func (s *Store) DeleteSeason(ctx context.Context, season int) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM matches WHERE season = $1`, season); err != nil {
		return fmt.Errorf("deleting matches of season %d: %w", season, err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM season_teams WHERE season = $1`, season); err != nil {
		return fmt.Errorf("deleting roster of season %d: %w", season, err)
	}
	return nil
}

func nullGoals(g *int) sql.NullInt64 {
	if g == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*g), Valid: true}
}
