package league

import "context"

// Team represents a club in the league.
type Team struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	ELO  float64 `json:"elo,omitempty"`
}

// Match represents a fixture between two teams. Goals stay nil until the
// match has a score; Finalized is decided by whoever feeds the match in.
type Match struct {
	ID        int   `json:"id"`
	Round     int   `json:"round"`
	Home      *Team `json:"home"`
	Away      *Team `json:"away"`
	HomeGoals *int  `json:"homeGoals,omitempty"`
	AwayGoals *int  `json:"awayGoals,omitempty"`
	Finalized bool  `json:"finalized"`
}

// TableEntry holds the standings info for one team.
type TableEntry struct {
	Team                        *Team `json:"team"`
	Played, Wins, Draws, Losses int
	GoalsFor, GoalsAgainst      int
	GoalDiff, Points            int
}

// Probabilities is a home/draw/away outcome triple.
type Probabilities struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Outcome of a single match from the home side's point of view.
type Outcome int

const (
	HomeWin Outcome = iota
	Draw
	AwayWin
)

func (o Outcome) String() string {
	switch o {
	case HomeWin:
		return "home"
	case AwayWin:
		return "away"
	default:
		return "draw"
	}
}

// MatchSource supplies fixtures for a season.
type MatchSource interface {
	AllMatches(ctx context.Context, season int) ([]*Match, error)
	MatchesByRound(ctx context.Context, season, round int) ([]*Match, error)
	Rounds(ctx context.Context, season int) ([]int, error)
}

// RosterSource supplies the set of teams taking part in a season.
type RosterSource interface {
	AllTeams(ctx context.Context, season int) ([]*Team, error)
}
