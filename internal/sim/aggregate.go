package sim

import (
	"math"
	"sort"
	"strings"
)

// aggregate accumulates finishing positions over trials for a dense team
// index. Aggregates from independent shards merge by addition.
type aggregate struct {
	trials int
	counts [][]int // [team][position], position is 1-based
	sum    []int
	min    []int
	max    []int

	champion   []int
	zoneA      []int
	zoneB      []int
	midTable   []int
	relegation []int
}

func newAggregate(teams, maxPos int) *aggregate {
	a := &aggregate{
		counts:     make([][]int, teams),
		sum:        make([]int, teams),
		min:        make([]int, teams),
		max:        make([]int, teams),
		champion:   make([]int, teams),
		zoneA:      make([]int, teams),
		zoneB:      make([]int, teams),
		midTable:   make([]int, teams),
		relegation: make([]int, teams),
	}
	for i := range a.counts {
		a.counts[i] = make([]int, maxPos+1)
		a.min[i] = math.MaxInt
	}
	return a
}

func (a *aggregate) record(team, pos int, z Zones) {
	a.counts[team][pos]++
	a.sum[team] += pos
	if pos < a.min[team] {
		a.min[team] = pos
	}
	if pos > a.max[team] {
		a.max[team] = pos
	}
	if pos == 1 {
		a.champion[team]++
	}
	if pos <= z.ZoneA {
		a.zoneA[team]++
	}
	if pos <= z.ZoneB {
		a.zoneB[team]++
	}
	if pos >= z.MidFrom && pos <= z.MidTo {
		a.midTable[team]++
	}
	if pos >= z.RelegationFrom {
		a.relegation[team]++
	}
}

func (a *aggregate) merge(b *aggregate) {
	a.trials += b.trials
	for t := range a.counts {
		for p, n := range b.counts[t] {
			a.counts[t][p] += n
		}
		a.sum[t] += b.sum[t]
		if b.min[t] < a.min[t] {
			a.min[t] = b.min[t]
		}
		if b.max[t] > a.max[t] {
			a.max[t] = b.max[t]
		}
		a.champion[t] += b.champion[t]
		a.zoneA[t] += b.zoneA[t]
		a.zoneB[t] += b.zoneB[t]
		a.midTable[t] += b.midTable[t]
		a.relegation[t] += b.relegation[t]
	}
}

// TeamProjection is the distributional outcome for one team.
type TeamProjection struct {
	TeamID               int         `json:"teamId"`
	Name                 string      `json:"name"`
	ProbTitle            float64     `json:"probTitle"`
	ProbZoneA            float64     `json:"probZoneA"`
	ProbZoneB            float64     `json:"probZoneB"`
	ProbMidTable         float64     `json:"probMidTable"`
	ProbRelegation       float64     `json:"probRelegation"`
	MeanPosition         float64     `json:"meanPosition"`
	MinPosition          int         `json:"minPosition"`
	MaxPosition          int         `json:"maxPosition"`
	PositionDistribution map[int]int `json:"positionDistribution"`
}

func (a *aggregate) project(idx *teamIndex) map[int]*TeamProjection {
	out := make(map[int]*TeamProjection, len(idx.teams))
	trials := float64(a.trials)
	for i, team := range idx.teams {
		tp := &TeamProjection{
			TeamID:               team.ID,
			Name:                 team.Name,
			PositionDistribution: make(map[int]int, len(a.counts[i])-1),
		}
		for p := 1; p < len(a.counts[i]); p++ {
			tp.PositionDistribution[p] = a.counts[i][p]
		}
		if a.trials > 0 {
			tp.ProbTitle = float64(a.champion[i]) / trials
			tp.ProbZoneA = float64(a.zoneA[i]) / trials
			tp.ProbZoneB = float64(a.zoneB[i]) / trials
			tp.ProbMidTable = float64(a.midTable[i]) / trials
			tp.ProbRelegation = float64(a.relegation[i]) / trials
			tp.MeanPosition = math.Round(float64(a.sum[i])/trials*1000) / 1000
			tp.MinPosition = a.min[i]
			tp.MaxPosition = a.max[i]
		}
		out[team.ID] = tp
	}
	return out
}

// standings is the per-trial accumulator, reused across the trials of a shard.
type standings struct {
	points []int
	gf     []int
	ga     []int
	order  []int
}

func newStandings(n int) *standings {
	s := &standings{
		points: make([]int, n),
		gf:     make([]int, n),
		ga:     make([]int, n),
		order:  make([]int, n),
	}
	return s
}

func (s *standings) reset() {
	for i := range s.points {
		s.points[i], s.gf[i], s.ga[i] = 0, 0, 0
		s.order[i] = i
	}
}

func (s *standings) apply(home, away, hg, ag int) {
	s.gf[home] += hg
	s.ga[home] += ag
	s.gf[away] += ag
	s.ga[away] += hg
	switch {
	case hg > ag:
		s.points[home] += 3
	case hg < ag:
		s.points[away] += 3
	default:
		s.points[home]++
		s.points[away]++
	}
}

// rank orders s.order with the standings tie-break chain.
func (s *standings) rank(idx *teamIndex) []int {
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.order[i], s.order[j]
		if s.points[a] != s.points[b] {
			return s.points[a] > s.points[b]
		}
		gda, gdb := s.gf[a]-s.ga[a], s.gf[b]-s.ga[b]
		if gda != gdb {
			return gda > gdb
		}
		if s.gf[a] != s.gf[b] {
			return s.gf[a] > s.gf[b]
		}
		if idx.keys[a] != idx.keys[b] {
			return idx.keys[a] < idx.keys[b]
		}
		return idx.teams[a].ID < idx.teams[b].ID
	})
	return s.order
}

func sortKey(name string) string { return strings.ToLower(name) }
