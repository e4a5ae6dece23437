// Package batch builds line indexes for many data files at once.
//
// Builds run in parallel up to a concurrency limit. Concurrent requests for
// the same index file, whether from one Build call or from a watcher sharing
// the Builder, collapse into a single build whose result is shared.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lineidx/internal/index"
	"lineidx/internal/logging"
	"lineidx/internal/metrics"
)

// Result is the outcome of building one index.
type Result struct {
	DataPath  string `json:"data_path"`
	IndexPath string `json:"index_path"`
	Entries   int    `json:"entries"`
	Err       error  `json:"-"`
}

// Builder builds index files into IndexDir. The zero value of Policy
// overwrites existing indexes. A Builder must not be copied after first use.
type Builder struct {
	IndexDir    string
	Policy      index.OverwritePolicy
	Concurrency int // <= 0 means GOMAXPROCS
	Logger      *slog.Logger
	Metrics     metrics.Collector

	group singleflight.Group
}

func (b *Builder) logger() *slog.Logger {
	return logging.Default(b.Logger).With("component", "batch")
}

// BuildOne builds the index for a single data file. If a build of the same
// index is already in flight, it waits for that build and shares its result.
// Cancelling ctx abandons the wait but not the build itself.
func (b *Builder) BuildOne(ctx context.Context, dataPath string) Result {
	abs, err := filepath.Abs(dataPath)
	if err != nil {
		return Result{DataPath: dataPath, Err: fmt.Errorf("resolve %s: %w", dataPath, err)}
	}
	res := Result{DataPath: abs, IndexPath: index.Path(b.IndexDir, abs)}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	ch := b.group.DoChan(res.IndexPath, func() (any, error) {
		start := time.Now()
		n, err := index.BuildFile(abs, res.IndexPath, b.Policy)
		elapsed := time.Since(start)
		metrics.Default(b.Metrics).RecordBuild(n, elapsed, err)
		if err == nil {
			b.logger().Info("index built",
				"data", abs,
				"index", res.IndexPath,
				"entries", n,
				"duration", elapsed)
		}
		return n, err
	})

	select {
	case r := <-ch:
		res.Entries, _ = r.Val.(int)
		res.Err = r.Err
	case <-ctx.Done():
		res.Err = ctx.Err()
	}
	return res
}

// Build builds indexes for all paths. One failure does not stop the others;
// the returned error joins every per-file failure. Results are in the order
// of paths.
func (b *Builder) Build(ctx context.Context, paths []string) ([]Result, error) {
	limit := b.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			results[i] = b.BuildOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", r.DataPath, r.Err))
		}
	}
	b.logger().Debug("batch finished", "files", len(paths), "failed", failed)
	return results, errors.Join(errs...)
}
