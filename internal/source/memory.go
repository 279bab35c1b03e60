// Package source provides match and roster collaborators: an in-memory
// set for tests and embedding, a directory of JSON documents, and a TTL
// cache in front of any roster source.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/utakatalp/league-projections/internal/league"
)

// Memory holds seasons in process. Reads return copies so callers can not
// mutate stored fixtures.
type Memory struct {
	mu      sync.RWMutex
	teams   map[int][]*league.Team
	matches map[int][]*league.Match
}

func NewMemory() *Memory {
	return &Memory{
		teams:   make(map[int][]*league.Team),
		matches: make(map[int][]*league.Match),
	}
}

func (m *Memory) SetTeams(season int, teams []*league.Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[season] = append([]*league.Team(nil), teams...)
}

func (m *Memory) SetMatches(season int, matches []*league.Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*league.Match, len(matches))
	for i, match := range matches {
		c := *match
		cp[i] = &c
	}
	m.matches[season] = cp
}

// Finalize records a final score for match id.
func (m *Memory) Finalize(season, id, homeGoals, awayGoals int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, match := range m.matches[season] {
		if match.ID == id {
			match.HomeGoals = league.Goals(homeGoals)
			match.AwayGoals = league.Goals(awayGoals)
			match.Finalized = true
			return nil
		}
	}
	return fmt.Errorf("season %d: no match with id %d", season, id)
}

func (m *Memory) AllTeams(_ context.Context, season int) ([]*league.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*league.Team(nil), m.teams[season]...), nil
}

func (m *Memory) AllMatches(_ context.Context, season int) ([]*league.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMatches(m.matches[season], func(*league.Match) bool { return true }), nil
}

func (m *Memory) MatchesByRound(_ context.Context, season, round int) ([]*league.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMatches(m.matches[season], func(x *league.Match) bool { return x.Round == round }), nil
}

func (m *Memory) Rounds(_ context.Context, season int) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return roundsOf(m.matches[season]), nil
}

func copyMatches(in []*league.Match, keep func(*league.Match) bool) []*league.Match {
	out := make([]*league.Match, 0, len(in))
	for _, match := range in {
		if keep(match) {
			c := *match
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

func roundsOf(matches []*league.Match) []int {
	seen := make(map[int]struct{})
	var rounds []int
	for _, match := range matches {
		if _, ok := seen[match.Round]; ok {
			continue
		}
		seen[match.Round] = struct{}{}
		rounds = append(rounds, match.Round)
	}
	sort.Ints(rounds)
	return rounds
}
