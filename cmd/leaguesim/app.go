package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/utakatalp/league-projections/internal/cache"
	"github.com/utakatalp/league-projections/internal/config"
	"github.com/utakatalp/league-projections/internal/league"
	"github.com/utakatalp/league-projections/internal/rating"
	"github.com/utakatalp/league-projections/internal/sim"
	"github.com/utakatalp/league-projections/internal/source"
	"github.com/utakatalp/league-projections/internal/store"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	rules  config.Rules
	logger *zap.Logger

	matches league.MatchSource
	roster  *source.RosterCache
	db      *store.Store

	blobs       *cache.Blobs
	engine      *rating.Engine
	probs       *cache.Probabilities
	seasons     *sim.SeasonSimulator
	rounds      *sim.RoundSimulator
	projections *cache.Projections

	out     io.Writer
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, rules: rules, logger: logger}

	var roster league.RosterSource
	if cfg.PostgresURL != "" {
		db, err := store.NewStore(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		a.matches, roster = db, db
	} else {
		dir := source.NewJSONDir(cfg.DataDir, logger)
		a.matches, roster = dir, dir
	}

	blobStore, err := a.openBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.wire(roster, blobStore)
	return a, nil
}

// wire builds the simulation stack over the given collaborators.
func (a *app) wire(roster league.RosterSource, blobStore cache.BlobStore) {
	a.roster = source.NewRosterCache(roster, a.cfg.RosterTTL)
	a.blobs = cache.NewBlobs(blobStore, a.logger)
	a.engine = rating.NewEngine(a.rules.Rating, a.matches, a.roster, a.logger)
	a.probs = cache.NewProbabilities(a.blobs, a.matches, a.engine, a.logger)

	simCfg := a.cfg.SimConfig(a.rules)
	a.seasons = sim.NewSeasonSimulator(simCfg, a.matches, a.roster, a.probs, a.blobs, a.logger)
	a.rounds = sim.NewRoundSimulator(simCfg, a.matches, a.roster, a.probs, a.logger)
	a.projections = cache.NewProjections(a.blobs, a.matches, a.seasons, a.rounds, cache.Options{
		Policy:          a.cfg.RefreshPolicy,
		RebuildInterval: a.cfg.RebuildInterval,
		RebuildBurst:    a.cfg.RebuildBurst,
		Logger:          a.logger,
	})
}

func (a *app) openBlobStore(ctx context.Context) (cache.BlobStore, error) {
	switch a.cfg.CacheBackend {
	case "redis":
		client, err := cache.DialRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewRedisStore(client, a.cfg.RedisPrefix, a.cfg.CacheTTL), nil
	case "sqlite":
		s, err := cache.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "file":
		f, err := cache.NewFileStore(a.cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", a.cfg.CacheBackend)
}

// Close waits for detached rebuilds and releases connections.
func (a *app) Close() {
	if a.projections != nil {
		a.projections.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Sugar().Warnw("close failed", "error", err)
		}
	}
}
