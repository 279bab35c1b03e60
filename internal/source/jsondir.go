package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/signature"
)

// ErrNotList is returned when a match or roster document is not a JSON array.
var ErrNotList = errors.New("document is not a list")

// JSONDir reads a season laid out as
//
//	<root>/<season>/teams.json
//	<root>/<season>/round_<n>.json
//
// Match documents reference teams by id, by name, or both. Names are
// matched against the roster after normalization.
type JSONDir struct {
	root   string
	logger *zap.SugaredLogger
}

func NewJSONDir(root string, logger *zap.Logger) *JSONDir {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONDir{root: root, logger: logger.Sugar()}
}

type teamDoc struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type matchDoc struct {
	ID        int      `json:"id"`
	Round     int      `json:"round"`
	Home      *teamDoc `json:"home"`
	Away      *teamDoc `json:"away"`
	HomeGoals *int     `json:"homeGoals"`
	AwayGoals *int     `json:"awayGoals"`
	Finalized bool     `json:"finalized"`
}

func (d *JSONDir) seasonDir(season int) string {
	return filepath.Join(d.root, strconv.Itoa(season))
}

func (d *JSONDir) AllTeams(_ context.Context, season int) ([]*league.Team, error) {
	var docs []teamDoc
	path := filepath.Join(d.seasonDir(season), "teams.json")
	if err := readList(path, &docs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	teams := make([]*league.Team, 0, len(docs))
	for _, doc := range docs {
		teams = append(teams, &league.Team{ID: doc.ID, Name: doc.Name})
	}
	return teams, nil
}

func (d *JSONDir) Rounds(_ context.Context, season int) ([]int, error) {
	paths, err := filepath.Glob(filepath.Join(d.seasonDir(season), "round_*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	rounds := make([]int, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "round_"), ".json")
		n, err := strconv.Atoi(name)
		if err != nil {
			d.logger.Warnw("ignoring unexpected round file", "path", p)
			continue
		}
		rounds = append(rounds, n)
	}
	sort.Ints(rounds)
	return rounds, nil
}

func (d *JSONDir) MatchesByRound(ctx context.Context, season, round int) ([]*league.Match, error) {
	teams, err := d.AllTeams(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	return d.loadRound(season, round, newResolver(teams))
}

func (d *JSONDir) AllMatches(ctx context.Context, season int) ([]*league.Match, error) {
	teams, err := d.AllTeams(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	rounds, err := d.Rounds(ctx, season)
	if err != nil {
		return nil, err
	}
	res := newResolver(teams)
	var all []*league.Match
	for _, r := range rounds {
		matches, err := d.loadRound(season, r, res)
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}
	return all, nil
}

func (d *JSONDir) loadRound(season, round int, res *resolver) ([]*league.Match, error) {
	path := filepath.Join(d.seasonDir(season), fmt.Sprintf("round_%d.json", round))
	var docs []matchDoc
	if err := readList(path, &docs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*league.Match, 0, len(docs))
	for _, doc := range docs {
		if doc.Round != 0 && doc.Round != round {
			d.logger.Warnw("match round differs from its file, using the file's round",
				"match", doc.ID, "round", doc.Round, "file_round", round)
		}
		m := &league.Match{
			ID:        doc.ID,
			Round:     round,
			Home:      res.resolve(doc.Home),
			Away:      res.resolve(doc.Away),
			HomeGoals: doc.HomeGoals,
			AwayGoals: doc.AwayGoals,
			Finalized: doc.Finalized,
		}
		out = append(out, m)
	}
	return out, nil
}

// readList decodes path into v, rejecting anything that is not an array.
func readList(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%s: %w", path, ErrNotList)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

type resolver struct {
	byID   map[int]*league.Team
	byName map[string]*league.Team
}

func newResolver(teams []*league.Team) *resolver {
	r := &resolver{
		byID:   make(map[int]*league.Team, len(teams)),
		byName: make(map[string]*league.Team, len(teams)),
	}
	for _, t := range teams {
		r.byID[t.ID] = t
		r.byName[signature.Normalize(t.Name)] = t
	}
	return r
}

// resolve returns nil when the reference is missing or unknown, which
// leaves the match malformed for downstream consumers to skip.
func (r *resolver) resolve(doc *teamDoc) *league.Team {
	if doc == nil {
		return nil
	}
	if doc.ID > 0 {
		if t, ok := r.byID[doc.ID]; ok {
			return t
		}
		name := doc.Name
		if name == "" {
			name = fmt.Sprintf("team-%d", doc.ID)
		}
		return &league.Team{ID: doc.ID, Name: name}
	}
	if t, ok := r.byName[signature.Normalize(doc.Name)]; ok {
		return t
	}
	return nil
}
