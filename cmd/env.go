package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-fmcg/rfp-cli/internal/catalog"
	"github.com/meridian-fmcg/rfp-cli/internal/keypool"
	"github.com/meridian-fmcg/rfp-cli/internal/pipeline"
	"github.com/meridian-fmcg/rfp-cli/internal/reader"
	"github.com/meridian-fmcg/rfp-cli/internal/store"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

// env bundles the shared clients and stores commands assemble the
// pipeline from.
type env struct {
	Pool    *keypool.Pool
	Cache   store.Cache
	Catalog *catalog.Store
	Gen     *genai.Client
	Rules   pipeline.Rules
	Reader  *reader.Reader
}

func initEnv(ctx context.Context) (*env, error) {
	pool, err := keypool.New(cfg.GenAI.ResolveKeys())
	if err != nil {
		return nil, err
	}

	var cache store.Cache
	if cfg.Cache.Path == "" {
		cache = store.NewMemory()
	} else {
		sc, err := store.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		cache = sc
	}
	if err := cache.Migrate(ctx); err != nil {
		cache.Close()
		return nil, eris.Wrap(err, "migrate cache")
	}

	cat, err := catalog.NewStore(cfg.Catalog.DBPath)
	if err != nil {
		cache.Close()
		return nil, err
	}
	if err := cat.Migrate(ctx); err != nil {
		cat.Close()
		cache.Close()
		return nil, eris.Wrap(err, "migrate catalog")
	}

	rules, err := pipeline.LoadRules(cfg.Pricing.RulesPath)
	if err != nil {
		cat.Close()
		cache.Close()
		return nil, err
	}

	var genOpts []genai.Option
	if cfg.GenAI.RequestsPerSecond > 0 {
		genOpts = append(genOpts,
			genai.WithLimiter(rate.NewLimiter(rate.Limit(cfg.GenAI.RequestsPerSecond), 1)))
	}
	gen := genai.New(genai.NewAnthropicBackend(), pool, cache, cfg.GenAI.Model, genOpts...)

	zap.L().Info("environment ready",
		zap.String("model", cfg.GenAI.Model),
		zap.Int("credentials", pool.Size()),
	)

	return &env{
		Pool:    pool,
		Cache:   cache,
		Catalog: cat,
		Gen:     gen,
		Rules:   rules,
		Reader:  reader.New(cfg.Reader.PdfToTextPath),
	}, nil
}

func (e *env) Close() {
	e.Catalog.Close()
	e.Cache.Close()
}

// runner builds a full orchestrator around the shared clients.
func (e *env) runner(progress pipeline.ProgressFunc) *pipeline.Runner {
	return pipeline.NewRunner(
		e.Reader,
		pipeline.NewIntakeStage(e.Gen),
		pipeline.NewMatchStage(e.Gen, e.Catalog, cfg.Pipeline.BatchSize),
		pipeline.NewPricingStage(e.Gen, e.Rules, cfg.Pipeline.BatchSize),
		pipeline.NewInsightsStage(e.Gen),
		pipeline.NewProposalStage(e.Gen),
		progress,
	)
}
