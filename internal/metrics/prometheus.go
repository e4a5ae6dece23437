package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Collector backed by client_golang.
type Prometheus struct {
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	entries       prometheus.Gauge
	lookups       *prometheus.CounterVec
	linesServed   prometheus.Counter
}

// NewPrometheus creates the lineidx metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineidx_builds_total",
			Help: "Index builds by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineidx_build_duration_seconds",
			Help:    "Duration of successful index builds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lineidx_index_entries",
			Help: "Entry count of the most recently built index, sentinel included.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineidx_lookups_total",
			Help: "Offset lookups by result.",
		}, []string{"result"}),
		linesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineidx_lines_served_total",
			Help: "Lines returned to callers.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{p.builds, p.buildDuration, p.entries, p.lookups, p.linesServed} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *Prometheus) RecordBuild(entries int, d time.Duration, err error) {
	p.builds.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
	p.entries.Set(float64(entries))
}

func (p *Prometheus) RecordLookup(err error) {
	p.lookups.WithLabelValues(result(err)).Inc()
}

func (p *Prometheus) RecordLines(n int) {
	if n > 0 {
		p.linesServed.Add(float64(n))
	}
}
