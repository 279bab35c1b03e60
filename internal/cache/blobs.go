package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/signature"
	"github.com/utakatalp/league-projections/internal/sim"
)

// Blobs encodes projections to JSON on top of a BlobStore. Unreadable or
// undecodable blobs are reported as misses.
type Blobs struct {
	store  BlobStore
	logger *zap.SugaredLogger
}

func NewBlobs(store BlobStore, logger *zap.Logger) *Blobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Blobs{store: store, logger: logger.Sugar()}
}

func (b *Blobs) load(ctx context.Context, key string, v any) bool {
	raw, err := b.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.logger.Warnw("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		b.logger.Warnw("discarding undecodable cache blob", "key", key, "error", err)
		return false
	}
	return true
}

func (b *Blobs) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.store.Put(ctx, key, raw)
}

func (b *Blobs) LoadSeason(ctx context.Context, season, trials int) (*sim.SeasonProjection, bool) {
	var p sim.SeasonProjection
	if !b.load(ctx, SeasonKey(season, trials), &p) {
		return nil, false
	}
	if p.Season != season || p.TrialCount != trials || p.Teams == nil {
		b.logger.Warnw("discarding mismatched projection blob", "key", SeasonKey(season, trials))
		return nil, false
	}
	return &p, true
}

func (b *Blobs) SaveSeason(ctx context.Context, p *sim.SeasonProjection) error {
	return b.save(ctx, SeasonKey(p.Season, p.TrialCount), p)
}

// LoadRounds returns the stored round run. A blob written without a
// signature gets one derived from its real results.
func (b *Blobs) LoadRounds(ctx context.Context, season int) (*sim.RoundsProjection, bool) {
	var p sim.RoundsProjection
	if !b.load(ctx, RoundsKey(season), &p) {
		return nil, false
	}
	if p.Season != season {
		b.logger.Warnw("discarding mismatched rounds blob", "key", RoundsKey(season))
		return nil, false
	}
	if p.Signature == "" {
		p.Signature = signature.Compute(p.RealEntries())
	}
	return &p, true
}

func (b *Blobs) SaveRounds(ctx context.Context, p *sim.RoundsProjection) error {
	return b.save(ctx, RoundsKey(p.Season), p)
}

// ProbabilityTable is a stored set of per-match probabilities. Fixtures is
// the comma separated list of open match ids the table covers and Model the
// fingerprint of the parameters that produced it.
type ProbabilityTable struct {
	Season        int                          `json:"season"`
	Signature     string                       `json:"signature"`
	Fixtures      string                       `json:"fixtures"`
	Model         string                       `json:"model"`
	Probabilities map[int]league.Probabilities `json:"probabilities"`
}

func (b *Blobs) LoadProbabilities(ctx context.Context, season int) (*ProbabilityTable, bool) {
	var t ProbabilityTable
	if !b.load(ctx, ProbabilitiesKey(season), &t) {
		return nil, false
	}
	if t.Season != season || t.Probabilities == nil {
		return nil, false
	}
	return &t, true
}

func (b *Blobs) SaveProbabilities(ctx context.Context, t *ProbabilityTable) error {
	return b.save(ctx, ProbabilitiesKey(t.Season), t)
}

func (b *Blobs) Delete(ctx context.Context, key string) error {
	return b.store.Delete(ctx, key)
}
