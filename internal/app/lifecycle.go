package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/pkg/logger"
)

const poolShutdownTimeout = 5 * time.Second

// Start warms the schema cache. Prefetch failures are logged, not fatal:
// a missing schema is fetched again on first use.
func (a *Application) Start(ctx context.Context) error {
	failed := a.Prefetch(ctx)
	for name, err := range failed {
		logger.Warn("Schema prefetch failed", zap.String("entity", name), zap.Error(err))
	}
	logger.Info("Schema cache warmed",
		zap.Int("cached", a.Session.Cache().Len()),
		zap.Int("failed", len(failed)),
	)
	return ctx.Err()
}

// Prefetch resolves the schema of every catalog kind and every configured
// prefetch name on the worker pool. It returns the names that failed.
func (a *Application) Prefetch(ctx context.Context) map[string]error {
	names := a.prefetchNames()
	if len(names) == 0 || a.Pool == nil {
		return nil
	}
	return a.Pool.Each(ctx, names, func(ctx context.Context, name string) error {
		_, err := entity.ResolveSchema(ctx, a.Session, name)
		return err
	})
}

func (a *Application) prefetchNames() []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if a.Kinds != nil {
		for _, name := range a.Kinds.LogicalNames() {
			add(name)
		}
	}
	if a.Config != nil {
		for _, name := range a.Config.Metadata.Prefetch {
			add(name)
		}
	}
	sort.Strings(names)
	return names
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown() {
	if a.Pool != nil {
		a.Pool.Shutdown(poolShutdownTimeout)
	}
}
