// Package server exposes a lines.Reader over a read-only HTTP API.
//
// Routes:
//
//	GET /health                         liveness
//	GET /v1/info                        data file, index file, entry and line counts
//	GET /v1/lines/:n                    one line, raw, terminator included
//	GET /v1/lines?start=S&end=E         inclusive range as JSON
//	GET /v1/lines?start=S&count=C       up to C lines as JSON
//	GET /metrics                        Prometheus exposition (when a Gatherer is set)
//
// The Reader is not safe for concurrent use, so every handler holds the
// server mutex while touching it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"lineidx/internal/lines"
	"lineidx/internal/logging"
)

// Config holds server configuration.
type Config struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// InstanceID is reported by /v1/info.
	InstanceID string

	// RateLimit caps /v1 requests per client IP per second. Zero disables
	// limiting.
	RateLimit rate.Limit
	RateBurst int
}

// Server serves line lookups for one data file.
type Server struct {
	readerMu sync.Mutex
	reader   *lines.Reader

	gatherer   prometheus.Gatherer
	instanceID string
	limiter    *rateLimiter
	logger     *slog.Logger

	mu      sync.Mutex
	server  *http.Server
	cancel  context.CancelFunc
	cleanup sync.WaitGroup
}

// New creates a Server. The Server takes over access to reader; callers must
// not use it concurrently.
func New(reader *lines.Reader, cfg Config) *Server {
	s := &Server{
		reader:     reader,
		gatherer:   cfg.Gatherer,
		instanceID: cfg.InstanceID,
		logger:     logging.Default(cfg.Logger).With("component", "server"),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return s
}

// Handler returns the full handler chain. Useful for tests and embedding.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestID())
	s.registerRoutes(engine)
	return engine
}

// Serve serves on listener until Stop is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.server = srv
	s.cancel = cancel
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.startCleanup(ctx, &s.cleanup, time.Minute, 10*time.Minute)
	}

	s.logger.Info("server starting", "addr", listener.Addr().String())

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeTCP starts the server on a TCP address.
func (s *Server) ServeTCP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("server stopping")
	err := srv.Shutdown(ctx)
	cancel()
	s.cleanup.Wait()
	return err
}

// Reload remaps the index and data files, picking up a rebuilt index. The
// index must already exist.
func (s *Server) Reload() error {
	return s.withReader(func(r *lines.Reader) error {
		if err := r.CloseData(); err != nil {
			return err
		}
		if err := r.OpenIndex(false); err != nil {
			return err
		}
		n, _ := r.Entries()
		s.logger.Info("index reloaded", "entries", n)
		return nil
	})
}

// withReader runs fn while holding the reader lock.
func (s *Server) withReader(fn func(r *lines.Reader) error) error {
	s.readerMu.Lock()
	defer s.readerMu.Unlock()
	return fn(s.reader)
}
