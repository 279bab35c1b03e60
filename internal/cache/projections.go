package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/signature"
	"github.com/utakatalp/league-projections/internal/sim"
	"github.com/utakatalp/league-projections/internal/telemetry"
)

// Policy decides what a read does when it finds a stale blob.
type Policy string

const (
	// PolicyAsync serves the stale value and rebuilds in the background.
	PolicyAsync Policy = "async"
	// PolicySync rebuilds before answering.
	PolicySync Policy = "sync"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAsync, PolicySync:
		return Policy(s), nil
	case "":
		return PolicyAsync, nil
	}
	return "", fmt.Errorf("unknown refresh policy %q", s)
}

// SeasonBuilder runs a season simulation without consulting any cache.
type SeasonBuilder interface {
	Recompute(ctx context.Context, season, trials int) (*sim.SeasonProjection, error)
}

// RoundsBuilder runs a round-by-round simulation.
type RoundsBuilder interface {
	Run(ctx context.Context, season int) (*sim.RoundsProjection, error)
}

type Options struct {
	Policy Policy
	// RebuildInterval and RebuildBurst bound how often detached rebuilds
	// may start. Zero interval means unlimited.
	RebuildInterval time.Duration
	RebuildBurst    int
	Logger          *zap.Logger
}

// Projections serves cached projections, checking each read against the
// signature of the live finalized results.
type Projections struct {
	blobs   *Blobs
	matches league.MatchSource
	seasons SeasonBuilder
	rounds  RoundsBuilder
	policy  Policy
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	group singleflight.Group
	wg    sync.WaitGroup
}

func NewProjections(blobs *Blobs, matches league.MatchSource, seasons SeasonBuilder, rounds RoundsBuilder, opts Options) *Projections {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAsync
	}
	limit := rate.Inf
	if opts.RebuildInterval > 0 {
		limit = rate.Every(opts.RebuildInterval)
	}
	if opts.RebuildBurst <= 0 {
		opts.RebuildBurst = 1
	}
	return &Projections{
		blobs:   blobs,
		matches: matches,
		seasons: seasons,
		rounds:  rounds,
		policy:  opts.Policy,
		limiter: rate.NewLimiter(limit, opts.RebuildBurst),
		logger:  opts.Logger.Sugar(),
	}
}

// CurrentSignature fingerprints the live finalized results of a season.
func (p *Projections) CurrentSignature(ctx context.Context, season int) (string, error) {
	matches, err := p.matches.AllMatches(ctx, season)
	if err != nil {
		return "", fmt.Errorf("loading matches: %w", err)
	}
	return signature.Of(matches), nil
}

// Season returns the projection for (season, trials).
func (p *Projections) Season(ctx context.Context, season, trials int) (*sim.SeasonProjection, error) {
	current, err := p.CurrentSignature(ctx, season)
	if err != nil {
		return nil, err
	}
	key := SeasonKey(season, trials)
	build := func(ctx context.Context) (any, error) {
		return p.rebuildSeason(ctx, season, trials)
	}

	cached, ok := p.blobs.LoadSeason(ctx, season, trials)
	switch {
	case !ok:
		telemetry.CacheLookups.WithLabelValues("season", "miss").Inc()
		v, err := p.do(ctx, key, build)
		if err != nil {
			return nil, err
		}
		return v.(*sim.SeasonProjection), nil
	case cached.Signature == current:
		telemetry.CacheLookups.WithLabelValues("season", "hit").Inc()
		return cached, nil
	}

	telemetry.CacheLookups.WithLabelValues("season", "stale").Inc()
	p.logger.Infow("projection is stale", "key", key, "policy", p.policy)
	if p.policy == PolicySync {
		v, err := p.do(ctx, key, build)
		if err != nil {
			return nil, err
		}
		return v.(*sim.SeasonProjection), nil
	}
	p.detach(ctx, "season", key, build)
	return cached, nil
}

// Rounds returns the round-by-round run for season.
func (p *Projections) Rounds(ctx context.Context, season int) (*sim.RoundsProjection, error) {
	current, err := p.CurrentSignature(ctx, season)
	if err != nil {
		return nil, err
	}
	key := RoundsKey(season)
	build := func(ctx context.Context) (any, error) {
		return p.rebuildRounds(ctx, season)
	}

	cached, ok := p.blobs.LoadRounds(ctx, season)
	switch {
	case !ok:
		telemetry.CacheLookups.WithLabelValues("rounds", "miss").Inc()
		v, err := p.do(ctx, key, build)
		if err != nil {
			return nil, err
		}
		return v.(*sim.RoundsProjection), nil
	case cached.Signature == current:
		telemetry.CacheLookups.WithLabelValues("rounds", "hit").Inc()
		return cached, nil
	}

	telemetry.CacheLookups.WithLabelValues("rounds", "stale").Inc()
	p.logger.Infow("rounds are stale", "key", key, "policy", p.policy)
	if p.policy == PolicySync {
		v, err := p.do(ctx, key, build)
		if err != nil {
			return nil, err
		}
		return v.(*sim.RoundsProjection), nil
	}
	p.detach(ctx, "rounds", key, build)
	return cached, nil
}

// RefreshRounds rebuilds and stores the round run regardless of its state.
func (p *Projections) RefreshRounds(ctx context.Context, season int) (*sim.RoundsProjection, error) {
	v, err := p.do(ctx, RoundsKey(season), func(ctx context.Context) (any, error) {
		return p.rebuildRounds(ctx, season)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sim.RoundsProjection), nil
}

// Invalidate drops the stored projection so the next read rebuilds it.
func (p *Projections) Invalidate(ctx context.Context, season, trials int) error {
	return p.blobs.Delete(ctx, SeasonKey(season, trials))
}

// Wait blocks until every detached rebuild has finished.
func (p *Projections) Wait() {
	p.wg.Wait()
}

// Status describes a stored projection against the live data.
type Status struct {
	Key       string               `json:"key"`
	Cached    bool                 `json:"cached"`
	Fresh     bool                 `json:"fresh"`
	Current   string               `json:"current"`
	Stored    string               `json:"stored"`
	Generated time.Time            `json:"generatedAt"`
	Diff      signature.Difference `json:"diff"`
}

// SeasonStatus reports whether the stored projection is current without
// triggering a rebuild.
func (p *Projections) SeasonStatus(ctx context.Context, season, trials int) (Status, error) {
	current, err := p.CurrentSignature(ctx, season)
	if err != nil {
		return Status{}, err
	}
	st := Status{Key: SeasonKey(season, trials), Current: current}
	cached, ok := p.blobs.LoadSeason(ctx, season, trials)
	if !ok {
		return st, nil
	}
	st.Cached = true
	st.Stored = cached.Signature
	st.Generated = cached.GeneratedAt
	st.Fresh = cached.Signature == current
	if !st.Fresh {
		cur, err := signature.Parse(current)
		if err != nil {
			return st, err
		}
		old, err := signature.Parse(cached.Signature)
		if err != nil {
			return st, fmt.Errorf("stored signature: %w", err)
		}
		st.Diff = signature.Diff(cur, old)
	}
	return st, nil
}

func (p *Projections) rebuildSeason(ctx context.Context, season, trials int) (*sim.SeasonProjection, error) {
	proj, err := p.seasons.Recompute(ctx, season, trials)
	if err != nil {
		return nil, err
	}
	if err := p.blobs.SaveSeason(ctx, proj); err != nil {
		p.logger.Warnw("failed to store projection", "key", SeasonKey(season, trials), "error", err)
	}
	return proj, nil
}

func (p *Projections) rebuildRounds(ctx context.Context, season int) (*sim.RoundsProjection, error) {
	proj, err := p.rounds.Run(ctx, season)
	if err != nil {
		return nil, err
	}
	if err := p.blobs.SaveRounds(ctx, proj); err != nil {
		p.logger.Warnw("failed to store rounds", "key", RoundsKey(season), "error", err)
	}
	return proj, nil
}

// do collapses concurrent builds of the same key into one.
func (p *Projections) do(ctx context.Context, key string, build func(context.Context) (any, error)) (any, error) {
	v, err, _ := p.group.Do(key, func() (any, error) {
		return build(ctx)
	})
	return v, err
}

// detach starts a background rebuild that outlives ctx. Rebuilds beyond the
// limiter's budget are dropped; the next stale read schedules another.
func (p *Projections) detach(ctx context.Context, kind, key string, build func(context.Context) (any, error)) {
	if !p.limiter.Allow() {
		telemetry.CacheRebuilds.WithLabelValues(kind, "throttled").Inc()
		p.logger.Debugw("rebuild throttled", "key", key)
		return
	}
	id := uuid.NewString()
	bg := context.WithoutCancel(ctx)

	p.wg.Add(1)
	telemetry.CacheRebuildsInFlight.Inc()
	go func() {
		defer p.wg.Done()
		defer telemetry.CacheRebuildsInFlight.Dec()

		start := time.Now()
		p.logger.Infow("background rebuild started", "rebuild", id, "key", key)
		if _, err := p.do(bg, key, build); err != nil {
			telemetry.CacheRebuilds.WithLabelValues(kind, "error").Inc()
			p.logger.Errorw("background rebuild failed", "rebuild", id, "key", key, "error", err)
			return
		}
		telemetry.CacheRebuilds.WithLabelValues(kind, "ok").Inc()
		p.logger.Infow("background rebuild finished", "rebuild", id, "key", key, "elapsed", time.Since(start))
	}()
}

// Model is a season predictor that can identify the parameters behind its
// output, so stored tables from other parameters are not reused.
type Model interface {
	sim.Predictor
	Fingerprint() string
}

// Probabilities caches the per-match probability table of a season. A table
// is reused only for the same finalized results, the same set of open
// fixtures and the same model parameters.
type Probabilities struct {
	blobs   *Blobs
	matches league.MatchSource
	next    Model
	logger  *zap.SugaredLogger
}

func NewProbabilities(blobs *Blobs, matches league.MatchSource, next Model, logger *zap.Logger) *Probabilities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probabilities{blobs: blobs, matches: matches, next: next, logger: logger.Sugar()}
}

// tableKey identifies the inputs a probability table was computed from.
type tableKey struct {
	signature string
	fixtures  string
	model     string
}

func (c *Probabilities) currentKey(ctx context.Context, season int) (tableKey, error) {
	matches, err := c.matches.AllMatches(ctx, season)
	if err != nil {
		return tableKey{}, fmt.Errorf("loading matches: %w", err)
	}
	return tableKey{
		signature: signature.Of(matches),
		fixtures:  openFixtures(matches),
		model:     c.next.Fingerprint(),
	}, nil
}

// openFixtures lists the ids of the predictable open matches.
func openFixtures(matches []*league.Match) string {
	var ids []int
	for _, m := range matches {
		if m.ID > 0 && m.Valid() && !m.Finalized {
			ids = append(ids, m.ID)
		}
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func (c *Probabilities) PredictSeason(ctx context.Context, season int) (map[int]league.Probabilities, error) {
	key, err := c.currentKey(ctx, season)
	if err != nil {
		return nil, err
	}
	if t, ok := c.blobs.LoadProbabilities(ctx, season); ok &&
		t.Signature == key.signature && t.Fixtures == key.fixtures && t.Model == key.model {
		telemetry.CacheLookups.WithLabelValues("probabilities", "hit").Inc()
		return t.Probabilities, nil
	}
	telemetry.CacheLookups.WithLabelValues("probabilities", "miss").Inc()
	return c.compute(ctx, season, key)
}

// Precompute computes and stores the table for the live state of season.
func (c *Probabilities) Precompute(ctx context.Context, season int) (map[int]league.Probabilities, error) {
	key, err := c.currentKey(ctx, season)
	if err != nil {
		return nil, err
	}
	return c.compute(ctx, season, key)
}

func (c *Probabilities) compute(ctx context.Context, season int, key tableKey) (map[int]league.Probabilities, error) {
	probs, err := c.next.PredictSeason(ctx, season)
	if err != nil {
		return nil, err
	}
	t := &ProbabilityTable{
		Season:        season,
		Signature:     key.signature,
		Fixtures:      key.fixtures,
		Model:         key.model,
		Probabilities: probs,
	}
	if err := c.blobs.SaveProbabilities(ctx, t); err != nil {
		c.logger.Warnw("failed to store probabilities", "key", ProbabilitiesKey(season), "error", err)
	}
	return probs, nil
}
