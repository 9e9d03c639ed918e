// Package metrics exports scan telemetry to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zoneinfo"

// Observer implements scanner.Observer with Prometheus collectors.
type Observer struct {
	ticks           *prometheus.CounterVec
	tickLatency     prometheus.Histogram
	blocks          prometheus.Counter
	squares         prometheus.Counter
	passes          prometheus.Counter
	lastPass        prometheus.Gauge
	passLatency     prometheus.Histogram
	lookups         *prometheus.CounterVec
	integrityEvents prometheus.Counter
	subscribers     prometheus.Gauge
}

// NewObserver creates the collectors and registers them with reg. A nil reg
// uses the default registerer.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scan ticks by outcome",
		}, []string{"status"}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scan tick",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_scanned_total",
			Help:      "Zone blocks visited by the scanner",
		}),
		squares: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squares_counted_total",
			Help:      "Valid non-shared squares classified",
		}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_published_total",
			Help:      "Completed passes published to readers",
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass",
			Help:      "Sequence number of the latest published pass",
		}),
		passLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time from the first tick of a pass to its publication",
			Buckets:   prometheus.DefBuckets,
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "building_lookups_total",
			Help:      "Building lookups for occupied unzoned squares by source",
		}, []string{"source"}),
		integrityEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_events_total",
			Help:      "Corrupt building grid lists encountered",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected snapshot stream clients",
		}),
	}

	reg.MustRegister(
		o.ticks,
		o.tickLatency,
		o.blocks,
		o.squares,
		o.passes,
		o.lastPass,
		o.passLatency,
		o.lookups,
		o.integrityEvents,
		o.subscribers,
	)
	return o
}

// OnTick implements scanner.Observer.
func (o *Observer) OnTick(d time.Duration, blocks, squares int, skipped bool) {
	if skipped {
		o.ticks.WithLabelValues("skipped").Inc()
		return
	}
	o.ticks.WithLabelValues("ran").Inc()
	o.tickLatency.Observe(d.Seconds())
	o.blocks.Add(float64(blocks))
	o.squares.Add(float64(squares))
}

// OnPass implements scanner.Observer.
func (o *Observer) OnPass(pass uint64, elapsed time.Duration) {
	o.passes.Inc()
	o.lastPass.Set(float64(pass))
	o.passLatency.Observe(elapsed.Seconds())
}

// OnLookup implements scanner.Observer.
func (o *Observer) OnLookup(cacheHit bool) {
	if cacheHit {
		o.lookups.WithLabelValues("cache").Inc()
		return
	}
	o.lookups.WithLabelValues("grid").Inc()
}

// OnIntegrityEvent implements scanner.Observer.
func (o *Observer) OnIntegrityEvent() { o.integrityEvents.Inc() }

// SetSubscribers records the number of connected stream clients.
func (o *Observer) SetSubscribers(n int) { o.subscribers.Set(float64(n)) }
