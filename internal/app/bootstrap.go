// Package app is the composition root. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"xrmkit.io/xrmkit/internal/api/handlers"
	"xrmkit.io/xrmkit/internal/catalog"
	"xrmkit.io/xrmkit/internal/config"
	"xrmkit.io/xrmkit/internal/pkg/worker"
	"xrmkit.io/xrmkit/internal/provider"
)

// Application holds composed application dependencies.
type Application struct {
	Config     *config.Config
	Router     *gin.Engine
	Session    *provider.Session
	Pool       *worker.Pool
	Kinds      *catalog.Kinds
	OptionSets *catalog.OptionSets
}

// Bootstrap wires the metadata session, the catalogs and the HTTP router.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	kinds, err := catalog.LoadKinds(cfg.Catalog.KindsFile)
	if err != nil {
		return nil, fmt.Errorf("load kinds: %w", err)
	}
	optionSets, err := catalog.LoadOptionSets(cfg.Catalog.OptionSetsDir)
	if err != nil {
		return nil, fmt.Errorf("load option sets: %w", err)
	}

	session := provider.NewSession(
		provider.NewFileRetriever(cfg.Metadata.SourceDir),
		provider.WithFetchTimeout(cfg.Metadata.FetchTimeout),
	)

	pool, err := worker.NewPool("prefetch", cfg.Worker.PrefetchPoolSize)
	if err != nil {
		return nil, fmt.Errorf("init prefetch pool: %w", err)
	}

	server := handlers.NewServer(handlers.ServerDeps{
		Source:     session,
		Kinds:      kinds,
		OptionSets: optionSets,
		Pool:       pool,
	})

	return &Application{
		Config:     cfg,
		Router:     newRouter(cfg, server),
		Session:    session,
		Pool:       pool,
		Kinds:      kinds,
		OptionSets: optionSets,
	}, nil
}
