// Command metadata-check verifies that every entity metadata document in the
// configured source directory parses into a schema, and prints the mandatory
// fields of each entity.
//
// It exits non-zero when any document fails.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"xrmkit.io/xrmkit/internal/config"
	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/pkg/logger"
	"xrmkit.io/xrmkit/internal/pkg/worker"
	"xrmkit.io/xrmkit/internal/provider"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "metadata-check error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Checking entity metadata", zap.String("dir", cfg.Metadata.SourceDir))

	reports, err := check(context.Background(), cfg)
	if err != nil {
		return err
	}
	failed := printReports(os.Stdout, reports)
	if failed > 0 {
		return fmt.Errorf("%d of %d metadata documents failed", failed, len(reports))
	}
	logger.Info("Entity metadata check completed", zap.Int("entities", len(reports)))
	return nil
}

// report is the outcome for one metadata document.
type report struct {
	LogicalName string
	Attributes  int
	Mandatory   []string
	Err         error
}

// check resolves the schema of every document in cfg.Metadata.SourceDir on
// a worker pool and returns one report per document, sorted by name.
func check(ctx context.Context, cfg *config.Config) ([]report, error) {
	retriever := provider.NewFileRetriever(cfg.Metadata.SourceDir)
	names, err := retriever.Available()
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no metadata documents in %s", cfg.Metadata.SourceDir)
	}

	size := cfg.Worker.PrefetchPoolSize
	if size <= 0 {
		size = 1
	}
	pool, err := worker.NewPool("metadata-check", size)
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}
	defer pool.Shutdown(5 * time.Second)

	session := provider.NewSession(retriever, provider.WithFetchTimeout(cfg.Metadata.FetchTimeout))
	failures := pool.Each(ctx, names, func(ctx context.Context, name string) error {
		_, err := entity.ResolveSchema(ctx, session, name)
		return err
	})

	reports := make([]report, 0, len(names))
	for _, name := range names {
		r := report{LogicalName: name, Err: failures[name]}
		if def, ok := session.GetCachedEntityDefinition(name); ok {
			r.Attributes = len(def.Schema.Attributes())
			for _, m := range def.Schema.Mandatory() {
				r.Mandatory = append(r.Mandatory, m.LogicalName)
			}
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].LogicalName < reports[j].LogicalName })
	return reports, nil
}

func printReports(w io.Writer, reports []report) int {
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", r.LogicalName, r.Err)
			continue
		}
		mandatory := "-"
		if len(r.Mandatory) > 0 {
			mandatory = strings.Join(r.Mandatory, ",")
		}
		fmt.Fprintf(w, "ok   %s attributes=%d mandatory=%s\n", r.LogicalName, r.Attributes, mandatory)
	}
	return failed
}
