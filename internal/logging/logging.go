// Package logging provides utilities for structured logging across lineidx.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component owns its own scoped logger (logger.With("component", ...))
//   - If no logger is provided, a discard logger is used
//
// Output format and levels are chosen once in main. Components never call
// slog.SetDefault.
//
// Logging is intentionally sparse: lifecycle boundaries only, nothing inside
// per-line loops.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger:
//
//	func NewComponent(logger *slog.Logger) *Component {
//	    return &Component{logger: logging.Default(logger).With("component", "name")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// NewHandler returns a text or JSON handler writing to w. Level filtering is
// left to a ComponentFilterHandler, so the handler accepts everything.
func NewHandler(w io.Writer, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// ParseLevels parses a level spec such as "info" or "warn,lines=debug".
// The bare entry sets the default level; key=value entries set per-component
// overrides.
func ParseLevels(spec string) (slog.Level, map[string]slog.Level, error) {
	def := slog.LevelInfo
	overrides := make(map[string]slog.Level)
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		component, levelText, scoped := strings.Cut(part, "=")
		if !scoped {
			levelText = component
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(levelText))); err != nil {
			return 0, nil, fmt.Errorf("parse log level %q: %w", part, err)
		}
		if scoped {
			overrides[strings.TrimSpace(component)] = level
		} else {
			def = level
		}
	}
	return def, overrides, nil
}

// filterState is shared between a ComponentFilterHandler and the handlers
// derived from it with WithAttrs.
type filterState struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
}

func (s *filterState) level(component string) slog.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.levels[component]; ok {
		return l
	}
	return s.defaultLevel
}

func (s *filterState) minLevel() slog.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.defaultLevel
	for _, l := range s.levels {
		m = min(m, l)
	}
	return m
}

// ComponentFilterHandler filters records by level, with per-component
// overrides keyed on the "component" attribute.
type ComponentFilterHandler struct {
	next      slog.Handler
	state     *filterState
	component string
}

// NewComponentFilterHandler wraps next with a default minimum level.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		next: next,
		state: &filterState{
			defaultLevel: defaultLevel,
			levels:       make(map[string]slog.Level),
		},
	}
}

// SetLevel overrides the minimum level for one component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.levels[component] = level
}

// ClearLevel removes a component override.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	delete(h.state.levels, component)
}

// Level returns the effective minimum level for component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	return h.state.level(component)
}

func (h *ComponentFilterHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.component != "" {
		return level >= h.state.level(h.component)
	}
	return level >= h.state.minLevel()
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "component" {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.state.level(component) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			component = a.Value.String()
		}
	}
	return &ComponentFilterHandler{
		next:      h.next.WithAttrs(attrs),
		state:     h.state,
		component: component,
	}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{
		next:      h.next.WithGroup(name),
		state:     h.state,
		component: h.component,
	}
}
