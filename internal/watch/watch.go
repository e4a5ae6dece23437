// Package watch keeps one data file's index current by rebuilding it when
// the file changes.
//
// Change detection combines fsnotify events on the data file's directory
// with a periodic size/mtime poll, which also covers filesystems where
// notifications are unreliable. Every rebuild starts from scratch with the
// overwrite policy.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"lineidx/internal/batch"
	"lineidx/internal/index"
	"lineidx/internal/logging"
	"lineidx/internal/metrics"
)

// DefaultPollInterval is used when PollInterval is zero.
const DefaultPollInterval = 30 * time.Second

// Watcher rebuilds the index of DataPath inside IndexDir.
type Watcher struct {
	DataPath string
	IndexDir string
	// PollInterval of zero uses DefaultPollInterval; negative disables polling.
	PollInterval time.Duration
	Logger       *slog.Logger
	Metrics      metrics.Collector
	// Builder is optional. Sharing one with other callers collapses
	// concurrent builds of the same index.
	Builder *batch.Builder
	// OnBuild, if set, is called after every build attempt from the Run
	// goroutine.
	OnBuild func(batch.Result)
}

// signature identifies the file contents a build saw.
type signature struct {
	size    int64
	modTime time.Time
}

func stat(path string) (signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return signature{}, err
	}
	return signature{size: info.Size(), modTime: info.ModTime()}, nil
}

// Run builds the index once and then rebuilds it on every change until ctx
// is cancelled. The initial build must succeed; later failures are logged
// and reported through OnBuild. Returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	logger := logging.Default(w.Logger).With("component", "watch")

	dataPath, err := filepath.Abs(w.DataPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.DataPath, err)
	}
	builder := w.Builder
	if builder == nil {
		builder = &batch.Builder{
			IndexDir: w.IndexDir,
			Policy:   index.Overwrite,
			Logger:   w.Logger,
			Metrics:  w.Metrics,
		}
	}

	last, err := stat(dataPath)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dataPath, err)
	}
	res := builder.BuildOne(ctx, dataPath)
	w.report(res)
	if res.Err != nil {
		return res.Err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so replace-by-rename is seen as a Create.
	if err := watcher.Add(filepath.Dir(dataPath)); err != nil {
		logger.Warn("failed to watch directory, polling only", "dir", filepath.Dir(dataPath), "error", err)
	}

	var tickCh <-chan time.Time
	interval := w.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	logger.Info("watching", "data", dataPath, "index", res.IndexPath, "poll", interval)

	rebuild := func(reason string) {
		sig, err := stat(dataPath)
		if err != nil {
			logger.Warn("stat data file", "data", dataPath, "error", err)
			return
		}
		if sig == last {
			return
		}
		logger.Info("rebuild triggered", "data", dataPath, "reason", reason, "size", sig.size)
		res := builder.BuildOne(ctx, dataPath)
		if res.Err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("rebuild failed", "data", dataPath, "error", res.Err)
		} else {
			last = sig
		}
		w.report(res)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != dataPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				rebuild("fsnotify")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fsnotify error", "error", err)

		case <-tickCh:
			rebuild("poll")
		}
	}
}

func (w *Watcher) report(res batch.Result) {
	if w.OnBuild != nil {
		w.OnBuild(res)
	}
}
