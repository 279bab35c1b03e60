package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/signature"
	"github.com/utakatalp/league-projections/internal/sim"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"ratings": ratingsCmd,
	"predict": predictCmd,
	"project": projectCmd,
	"rounds":  roundsCmd,
	"table":   tableCmd,
	"inspect": inspectCmd,
	"diff":    diffCmd,
	"precalc": precalcCmd,
	"seed":    seedCmd,
	"serve":   serveCmd,
}

var errNoPostgres = errors.New("POSTGRES_URL is not set")

func newFlags(name string, a *app) (*flag.FlagSet, *int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	season := fs.Int("season", a.cfg.Season, "season")
	return fs, season
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ratingsCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("ratings", a)
	persist := fs.Bool("persist", false, "write ratings back to Postgres")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ratings, err := a.engine.Recompute(ctx, *season)
	if err != nil {
		return err
	}
	teams, err := a.roster.AllTeams(ctx, *season)
	if err != nil {
		return err
	}
	names := make(map[int]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	ids := make([]int, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ratings[ids[i]] != ratings[ids[j]] {
			return ratings[ids[i]] > ratings[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for i, id := range ids {
		fmt.Fprintf(a.out, "%3d %-20s %7.1f\n", i+1, names[id], ratings[id])
	}

	if !*persist {
		return nil
	}
	if a.db == nil {
		return errNoPostgres
	}
	return a.db.SaveRatings(ctx, ratings)
}

func predictCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("predict", a)
	round := fs.Int("round", 0, "round to predict")
	matchID := fs.Int("match", 0, "single match id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *matchID > 0 {
		p, err := a.engine.PredictMatchByID(ctx, *season, *matchID)
		if err != nil {
			return err
		}
		printPrediction(a, p.Match, p.Probabilities)
		return nil
	}
	if *round <= 0 {
		return errors.New("predict needs -round or -match")
	}
	preds, err := a.engine.PredictRound(ctx, *season, *round)
	if err != nil {
		return err
	}
	for _, p := range preds {
		printPrediction(a, p.Match, p.Probabilities)
	}
	return nil
}

func printPrediction(a *app, m *league.Match, p league.Probabilities) {
	fmt.Fprintf(a.out, "%5d %-20s %-20s  1 %5.1f%%  X %5.1f%%  2 %5.1f%%\n",
		m.ID, m.Home.Name, m.Away.Name, p.Home*100, p.Draw*100, p.Away*100)
}

func projectCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("project", a)
	trials := fs.Int("trials", a.cfg.Trials, "number of simulated seasons")
	force := fs.Bool("force", false, "rebuild even if the stored projection is fresh")
	raw := fs.Bool("raw", false, "simulate without reading or writing the cache")
	stored := fs.Bool("stored", false, "return the stored projection even if stale, simulating only when none exists")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", *trials)
	}

	var (
		proj *sim.SeasonProjection
		err  error
	)
	switch {
	case *raw:
		proj, err = a.seasons.Recompute(ctx, *season, *trials)
	case *stored:
		proj, err = a.seasons.Simulate(ctx, *season, *trials)
	case *force:
		if err = a.projections.Invalidate(ctx, *season, *trials); err != nil {
			return err
		}
		proj, err = a.projections.Season(ctx, *season, *trials)
	default:
		proj, err = a.projections.Season(ctx, *season, *trials)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(proj)
	}
	printProjection(a, proj, len(proj.Teams))
	return nil
}

func printProjection(a *app, proj *sim.SeasonProjection, top int) {
	fmt.Fprintf(a.out, "season %d, %d trials, generated %s\n",
		proj.Season, proj.TrialCount, proj.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.out, "%-20s %7s %7s %7s %7s %7s %6s %4s %4s\n",
		"Team", "Title", "ZoneA", "ZoneB", "Mid", "Releg", "Mean", "Best", "Wrst")
	for i, t := range proj.Ranked() {
		if i == top {
			break
		}
		fmt.Fprintf(a.out, "%-20s %6.2f%% %6.2f%% %6.2f%% %6.2f%% %6.2f%% %6.2f %4d %4d\n",
			t.Name, t.ProbTitle*100, t.ProbZoneA*100, t.ProbZoneB*100, t.ProbMidTable*100,
			t.ProbRelegation*100, t.MeanPosition, t.MinPosition, t.MaxPosition)
	}
}

func roundsCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("rounds", a)
	force := fs.Bool("force", false, "rebuild even if the stored run is fresh")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		proj *sim.RoundsProjection
		err  error
	)
	if *force {
		proj, err = a.projections.RefreshRounds(ctx, *season)
	} else {
		proj, err = a.projections.Rounds(ctx, *season)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return a.printJSON(proj)
	}
	for _, r := range proj.Rounds {
		fmt.Fprintf(a.out, "round %d\n", r.Round)
		for _, m := range r.Matches {
			line := fmt.Sprintf("  %-20s %5s  %-20s [%s]", m.Home, m.Score, m.Away, m.Kind)
			if m.Tally != nil {
				line += fmt.Sprintf(" %d/%d/%d", m.Tally.HomeWins, m.Tally.Draws, m.Tally.AwayWins)
			}
			fmt.Fprintln(a.out, line)
		}
		if n := len(r.Standings); n > 0 {
			leader := r.Standings[0]
			fmt.Fprintf(a.out, "  leader: %s (%d pts)\n", leader.Name, leader.Points)
		}
	}
	return nil
}

func tableCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("table", a)
	if err := fs.Parse(args); err != nil {
		return err
	}
	teams, err := a.roster.AllTeams(ctx, *season)
	if err != nil {
		return err
	}
	matches, err := a.matches.AllMatches(ctx, *season)
	if err != nil {
		return err
	}
	league.PrintTable(a.out, fmt.Sprintf("Season %d", *season), league.OfficialTable(teams, matches))
	return nil
}

func inspectCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("inspect", a)
	trials := fs.Int("trials", a.cfg.Trials, "trial count of the stored projection")
	top := fs.Int("top", 5, "teams to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.projections.SeasonStatus(ctx, *season, *trials)
	if err != nil {
		return err
	}
	if !st.Cached {
		fmt.Fprintf(a.out, "%s: not cached\n", st.Key)
		return nil
	}
	fmt.Fprintf(a.out, "%s: fresh=%t generated=%s\n", st.Key, st.Fresh, st.Generated.Format("2006-01-02 15:04:05"))

	proj, ok := a.blobs.LoadSeason(ctx, *season, *trials)
	if !ok {
		return nil
	}
	printProjection(a, proj, *top)
	for _, t := range proj.Ranked() {
		if flags := extremes(t); len(flags) > 0 {
			fmt.Fprintf(a.out, "%s: %s\n", t.Name, strings.Join(flags, ", "))
		}
	}
	return nil
}

// extremes lists the probabilities of a team that are exactly 0 or 1.
func extremes(t *sim.TeamProjection) []string {
	var out []string
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"title", t.ProbTitle},
		{"relegation", t.ProbRelegation},
	} {
		switch p.v {
		case 1:
			out = append(out, p.name+" certain")
		case 0:
			out = append(out, p.name+" impossible")
		}
	}
	return out
}

func diffCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("diff", a)
	trials := fs.Int("trials", a.cfg.Trials, "trial count of the stored projection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.projections.SeasonStatus(ctx, *season, *trials)
	if err != nil {
		return err
	}
	switch {
	case !st.Cached:
		fmt.Fprintf(a.out, "%s: not cached\n", st.Key)
		return nil
	case st.Fresh:
		fmt.Fprintf(a.out, "%s: up to date\n", st.Key)
		return nil
	}
	printEntries(a, "only in current", st.Diff.OnlyCurrent)
	printEntries(a, "only in cache", st.Diff.OnlyCached)
	return nil
}

func printEntries(a *app, label string, entries []signature.Entry) {
	fmt.Fprintf(a.out, "%s (%d)\n", label, len(entries))
	for _, e := range entries {
		fmt.Fprintf(a.out, "  round %d: %s %s %s\n", e.Round, e.Home, e.Score, e.Away)
	}
}

func precalcCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("precalc", a)
	if err := fs.Parse(args); err != nil {
		return err
	}
	probs, err := a.probs.Precompute(ctx, *season)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "stored probabilities for %d matches of season %d\n", len(probs), *season)
	return nil
}

func seedCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("seed", a)
	names := fs.String("teams", "", "comma separated team names")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.db == nil {
		return errNoPostgres
	}

	var teams []*league.Team
	for _, name := range strings.Split(*names, ",") {
		if name = strings.TrimSpace(name); name != "" {
			teams = append(teams, &league.Team{Name: name})
		}
	}
	if len(teams) < 2 {
		return errors.New("seed needs at least two -teams")
	}

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}
	if err := a.db.DeleteSeason(ctx, *season); err != nil {
		return err
	}
	if err := a.db.InsertTeams(ctx, *season, teams); err != nil {
		return err
	}
	rounds := league.GenerateFullSeason(teams)
	if err := a.db.InitFullSeason(ctx, *season, rounds); err != nil {
		return err
	}
	a.roster.Invalidate(*season)
	fmt.Fprintf(a.out, "seeded season %d: %d teams, %d rounds\n", *season, len(teams), len(rounds))
	return nil
}
