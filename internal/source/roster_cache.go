package source

import (
	"context"
	"sync"
	"time"

	"github.com/utakatalp/league-projections/internal/league"
)

// RosterCache keeps roster reads for ttl. It is passed explicitly to the
// components that need it; Invalidate drops a season immediately.
type RosterCache struct {
	next league.RosterSource
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[int]rosterEntry
}

type rosterEntry struct {
	teams   []*league.Team
	fetched time.Time
}

func NewRosterCache(next league.RosterSource, ttl time.Duration) *RosterCache {
	return &RosterCache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]rosterEntry),
	}
}

func (c *RosterCache) AllTeams(ctx context.Context, season int) ([]*league.Team, error) {
	c.mu.Lock()
	e, ok := c.entries[season]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetched) < c.ttl {
		return append([]*league.Team(nil), e.teams...), nil
	}

	teams, err := c.next.AllTeams(ctx, season)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[season] = rosterEntry{teams: teams, fetched: c.now()}
	c.mu.Unlock()
	return append([]*league.Team(nil), teams...), nil
}

func (c *RosterCache) Invalidate(season int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, season)
}

func (c *RosterCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]rosterEntry)
}
