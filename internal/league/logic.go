// internal/league/logic.go
package league

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Goals returns a pointer to n, for building scored matches.
func Goals(n int) *int { return &n }

// Valid reports whether both sides of the match are known.
func (m *Match) Valid() bool {
	return m != nil && m.Home != nil && m.Away != nil
}

// Scored reports whether the match carries both goal counts.
func (m *Match) Scored() bool {
	return m.HomeGoals != nil && m.AwayGoals != nil
}

// Score returns the goal counts; ok is false when the match is unscored.
func (m *Match) Score() (home, away int, ok bool) {
	if !m.Scored() {
		return 0, 0, false
	}
	return *m.HomeGoals, *m.AwayGoals, true
}

// Result returns the outcome of a scored match.
func (m *Match) Result() (Outcome, bool) {
	h, a, ok := m.Score()
	if !ok {
		return Draw, false
	}
	return ResultOf(h, a), true
}

// ResultOf maps a scoreline to an outcome.
func ResultOf(homeGoals, awayGoals int) Outcome {
	switch {
	case homeGoals > awayGoals:
		return HomeWin
	case homeGoals < awayGoals:
		return AwayWin
	default:
		return Draw
	}
}

// ScoreText renders the score as "2 x 1", or "" when the match is unscored.
func (m *Match) ScoreText() string {
	h, a, ok := m.Score()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d x %d", h, a)
}

func (m *Match) ScoreLine() string {
	h, a, ok := m.Score()
	if !ok {
		return fmt.Sprintf("%s vs %s", m.Home.Name, m.Away.Name)
	}
	return fmt.Sprintf("%s %d - %d %s", m.Home.Name, h, a, m.Away.Name)
}

// Finished returns the finalized matches that carry a score.
func Finished(matches []*Match) []*Match {
	out := make([]*Match, 0, len(matches))
	for _, m := range matches {
		if m.Valid() && m.Finalized && m.Scored() {
			out = append(out, m)
		}
	}
	return out
}

// UniformProbabilities is used when a match cannot be predicted.
func UniformProbabilities() Probabilities {
	return Probabilities{Home: 0.33, Draw: 0.34, Away: 0.33}
}

// Sum of the three components.
func (p Probabilities) Sum() float64 { return p.Home + p.Draw + p.Away }

// Normalize rescales the triple to sum to 1. A zero triple becomes uniform.
func (p Probabilities) Normalize() Probabilities {
	s := p.Sum()
	if s <= 0 {
		return UniformProbabilities()
	}
	return Probabilities{Home: p.Home / s, Draw: p.Draw / s, Away: p.Away / s}
}

// Sample picks an outcome for r in [0,1).
func (p Probabilities) Sample(r float64) Outcome {
	switch {
	case r < p.Home:
		return HomeWin
	case r < p.Home+p.Draw:
		return Draw
	default:
		return AwayWin
	}
}

// Apply adds one match result to the entry for the given side.
func (e *TableEntry) Apply(goalsFor, goalsAgainst int) {
	e.Played++
	e.GoalsFor += goalsFor
	e.GoalsAgainst += goalsAgainst
	e.GoalDiff = e.GoalsFor - e.GoalsAgainst
	switch ResultOf(goalsFor, goalsAgainst) {
	case HomeWin:
		e.Wins++
		e.Points += 3
	case AwayWin:
		e.Losses++
	default:
		e.Draws++
		e.Points++
	}
}

// Ranks reports whether a should be placed above b: points, goal difference,
// goals for, then name (case-insensitive) and id.
func Ranks(a, b *TableEntry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.GoalDiff != b.GoalDiff {
		return a.GoalDiff > b.GoalDiff
	}
	if a.GoalsFor != b.GoalsFor {
		return a.GoalsFor > b.GoalsFor
	}
	an, bn := strings.ToLower(a.Team.Name), strings.ToLower(b.Team.Name)
	if an != bn {
		return an < bn
	}
	return a.Team.ID < b.Team.ID
}

// SortTable orders entries in place.
func SortTable(entries []*TableEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Ranks(entries[i], entries[j])
	})
}

// Table accumulates standings keyed by team id. Seed it with a roster so
// teams without matches still appear.
type Table struct {
	entries map[int]*TableEntry
}

func NewTable(teams []*Team) *Table {
	t := &Table{entries: make(map[int]*TableEntry, len(teams))}
	for _, team := range teams {
		t.entry(team)
	}
	return t
}

func (t *Table) entry(team *Team) *TableEntry {
	e, ok := t.entries[team.ID]
	if !ok {
		e = &TableEntry{Team: team}
		t.entries[team.ID] = e
	}
	return e
}

// Record applies a scoreline between home and away.
func (t *Table) Record(home, away *Team, homeGoals, awayGoals int) {
	t.entry(home).Apply(homeGoals, awayGoals)
	t.entry(away).Apply(awayGoals, homeGoals)
}

// Sorted returns copies of the entries in standings order.
func (t *Table) Sorted() []*TableEntry {
	out := make([]*TableEntry, 0, len(t.entries))
	for _, e := range t.entries {
		c := *e
		out = append(out, &c)
	}
	SortTable(out)
	return out
}

// CalculateTable builds standings from every scored match.
func CalculateTable(teams []*Team, matches []*Match) []*TableEntry {
	t := NewTable(teams)
	for _, m := range matches {
		if !m.Valid() {
			continue
		}
		if h, a, ok := m.Score(); ok {
			t.Record(m.Home, m.Away, h, a)
		}
	}
	return t.Sorted()
}

// OfficialTable builds standings from finalized matches only.
func OfficialTable(teams []*Team, matches []*Match) []*TableEntry {
	return CalculateTable(teams, Finished(matches))
}

func GenerateFullSeason(teams []*Team) [][]*Match {
	firstHalf := GenerateSchedule(teams)
	secondHalf := make([][]*Match, len(firstHalf))
	for i, rnd := range firstHalf {
		swapped := make([]*Match, len(rnd))
		for j, m := range rnd {
			swapped[j] = &Match{Home: m.Away, Away: m.Home, Round: i + 1 + len(firstHalf)}
		}
		secondHalf[i] = swapped
	}
	return append(firstHalf, secondHalf...)
}

// GenerateSchedule returns a single round-robin using the circle method.
// With an odd team count each round leaves one team idle.
func GenerateSchedule(teams []*Team) [][]*Match {
	ring := make([]*Team, len(teams), len(teams)+1)
	copy(ring, teams)
	if len(ring)%2 != 0 {
		ring = append(ring, nil)
	}
	n := len(ring)
	if n < 2 {
		return nil
	}

	rounds := make([][]*Match, n-1)
	for i := 0; i < n-1; i++ {
		round := make([]*Match, 0, n/2)
		for j := 0; j < n/2; j++ {
			home, away := ring[j], ring[n-1-j]
			if home == nil || away == nil {
				continue
			}
			// alternate the fixed team's venue so it is not always at home
			if j == 0 && i%2 == 1 {
				home, away = away, home
			}
			round = append(round, &Match{Home: home, Away: away, Round: i + 1})
		}
		rounds[i] = round

		last := ring[n-1]
		copy(ring[2:], ring[1:n-1])
		ring[1] = last
	}
	return rounds
}

// PrintTable writes a fixed-width standings table.
func PrintTable(w io.Writer, label string, table []*TableEntry) {
	fmt.Fprintln(w, label)
	fmt.Fprintf(w, "%3s %-20s %3s %3s %3s %3s %3s %3s %4s %4s\n",
		"#", "Team", "P", "W", "D", "L", "GF", "GA", "GD", "Pts")
	for i, entry := range table {
		fmt.Fprintf(w, "%3d %-20s %3d %3d %3d %3d %3d %3d %4d %4d\n",
			i+1,
			entry.Team.Name,
			entry.Played,
			entry.Wins,
			entry.Draws,
			entry.Losses,
			entry.GoalsFor,
			entry.GoalsAgainst,
			entry.GoalDiff,
			entry.Points,
		)
	}
}
