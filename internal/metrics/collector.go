// Package metrics records index builds, offset lookups and served lines.
package metrics

import "time"

// Collector receives instrumentation events from the reader, batch builder
// and watcher. Implementations must be safe for concurrent use.
type Collector interface {
	RecordBuild(entries int, d time.Duration, err error)
	RecordLookup(err error)
	RecordLines(n int)
}

// Noop discards every event.
type Noop struct{}

func (Noop) RecordBuild(int, time.Duration, error) {}
func (Noop) RecordLookup(error)                   {}
func (Noop) RecordLines(int)                      {}

// Default returns c if non-nil, otherwise Noop.
func Default(c Collector) Collector {
	if c != nil {
		return c
	}
	return Noop{}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
