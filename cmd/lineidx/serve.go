package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"lineidx/internal/batch"
	"lineidx/internal/lines"
	"lineidx/internal/metrics"
	"lineidx/internal/server"
	"lineidx/internal/watch"
)

const defaultServerAddr = ":4565"

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the index whenever the data file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.newWatcher(cmd, nil)
			if err != nil {
				return err
			}
			w.OnBuild = func(r batch.Result) {
				if r.Err == nil {
					newPrinter(a.stdout, "table").result(r)
				}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return w.Run(ctx)
		},
	}
	addDataFlag(cmd)
	cmd.Flags().Duration("poll", watch.DefaultPollInterval, "poll interval; negative disables polling")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lines of the data file over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if !cmd.Flags().Changed("addr") && a.settings.ServerAddr != "" {
				addr = a.settings.ServerAddr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			collector, err := metrics.NewPrometheus(reg)
			if err != nil {
				return err
			}

			r, err := a.openReader(cmd, lines.WithMetrics(collector))
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()
			if err := r.OpenIndex(true); err != nil {
				return err
			}

			instanceID, err := a.home.InstanceID()
			if err != nil {
				a.logger.Warn("no instance id", "error", err)
			}

			limit, _ := cmd.Flags().GetFloat64("rate")
			burst, _ := cmd.Flags().GetInt("burst")

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(r, server.Config{
				Logger:     a.logger,
				Gatherer:   reg,
				InstanceID: instanceID,
				RateLimit:  rate.Limit(limit),
				RateBurst:  burst,
			})

			var w *watch.Watcher
			if watching, _ := cmd.Flags().GetBool("watch"); watching {
				if w, err = a.newWatcher(cmd, collector); err != nil {
					return err
				}
				w.OnBuild = func(res batch.Result) {
					if res.Err != nil {
						return
					}
					if err := srv.Reload(); err != nil {
						a.logger.Warn("reload after rebuild failed", "error", err)
					}
				}
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 2)
			go func() { errCh <- srv.Serve(listener) }()
			if w != nil {
				go func() {
					if err := w.Run(ctx); err != nil {
						errCh <- err
					}
				}()
			}

			shutdownCtx := func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Second)
			}
			select {
			case err := <-errCh:
				// Either the server failed or the watcher gave up; stop both.
				cancel()
				sctx, scancel := shutdownCtx()
				defer scancel()
				_ = srv.Stop(sctx)
				return err
			case <-ctx.Done():
			}

			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := srv.Stop(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return <-errCh
		},
	}
	addDataFlag(cmd)
	cmd.Flags().String("addr", defaultServerAddr, "listen address (host:port)")
	cmd.Flags().Float64("rate", 0, "requests per second per client on /v1 routes (0 disables)")
	cmd.Flags().Int("burst", 20, "request burst per client when --rate is set")
	cmd.Flags().Bool("watch", false, "rebuild and reload the index when the data file changes")
	cmd.Flags().Duration("poll", watch.DefaultPollInterval, "poll interval for --watch; negative disables polling")
	return cmd
}

// newWatcher configures a Watcher from the --data and --poll flags. The poll
// interval falls back to the stored setting.
func (a *app) newWatcher(cmd *cobra.Command, c metrics.Collector) (*watch.Watcher, error) {
	dataPath, _ := cmd.Flags().GetString("data")
	dir, err := a.indexDir(cmd)
	if err != nil {
		return nil, err
	}
	poll, err := a.settings.PollInterval(watch.DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("poll") {
		poll, _ = cmd.Flags().GetDuration("poll")
	}
	return &watch.Watcher{
		DataPath:     dataPath,
		IndexDir:     dir,
		PollInterval: poll,
		Logger:       a.logger,
		Metrics:      c,
	}, nil
}
