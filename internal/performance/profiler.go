// Package performance records in-process timings for named operations such
// as scan ticks, completed passes and building lookups.
package performance

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Profiler tracks timing statistics per operation name.
type Profiler struct {
	enabled atomic.Bool

	mu      sync.Mutex
	metrics map[string]*Metric
	since   time.Time
}

// Metric holds the statistics of one operation.
type Metric struct {
	Name      string
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	LastTime  time.Duration
	LastCall  time.Time
}

// Operation is a running measurement started by Start.
type Operation struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// NewProfiler creates a profiler. A disabled profiler records nothing and
// Start returns nil.
func NewProfiler(enabled bool) *Profiler {
	p := &Profiler{
		metrics: make(map[string]*Metric),
		since:   time.Now(),
	}
	p.enabled.Store(enabled)
	return p
}

// Start begins timing name.
func (p *Profiler) Start(name string) *Operation {
	if p == nil || !p.enabled.Load() {
		return nil
	}
	return &Operation{profiler: p, name: name, start: time.Now()}
}

// End records the elapsed time since Start. It is a no-op on nil.
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.profiler.Record(o.name, time.Since(o.start))
}

// Record adds one observation of d for name.
func (p *Profiler) Record(name string, d time.Duration) {
	if p == nil || !p.enabled.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		m = &Metric{Name: name, MinTime: d, MaxTime: d}
		p.metrics[name] = m
	}
	m.Count++
	m.TotalTime += d
	m.LastTime = d
	m.LastCall = time.Now()
	m.MinTime = min(m.MinTime, d)
	m.MaxTime = max(m.MaxTime, d)
}

// GetMetric returns a copy of the statistics for name, or nil.
func (p *Profiler) GetMetric(name string) *Metric {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.metrics[name]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Snapshot returns copies of all metrics sorted by name.
func (p *Profiler) Snapshot() []Metric {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Metric, 0, len(p.metrics))
	for _, m := range p.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AverageTime returns the mean duration.
func (m Metric) AverageTime() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// Reset drops all statistics.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = make(map[string]*Metric)
	p.since = time.Now()
}

// Report renders a fixed-width table of all metrics.
func (p *Profiler) Report() string {
	metrics := p.Snapshot()
	if len(metrics) == 0 {
		return "No performance metrics recorded"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Performance Report (since %s) ===\n", p.startTime().Format(time.RFC3339))
	fmt.Fprintf(&b, "%-32s %10s %12s %12s %12s %12s\n", "Operation", "Count", "Avg", "Min", "Max", "Last")
	b.WriteString(strings.Repeat("-", 96) + "\n")
	for _, m := range metrics {
		fmt.Fprintf(&b, "%-32s %10d %12s %12s %12s %12s\n",
			m.Name,
			m.Count,
			m.AverageTime().Round(time.Microsecond),
			m.MinTime.Round(time.Microsecond),
			m.MaxTime.Round(time.Microsecond),
			m.LastTime.Round(time.Microsecond),
		)
	}
	fmt.Fprintf(&b, "\nTotal runtime: %s\n", time.Since(p.startTime()).Round(time.Second))
	return b.String()
}

// LogReport writes one log record per metric.
func (p *Profiler) LogReport(logger *slog.Logger) {
	for _, m := range p.Snapshot() {
		logger.Info("profile",
			"operation", m.Name,
			"count", m.Count,
			"avg", m.AverageTime(),
			"min", m.MinTime,
			"max", m.MaxTime,
		)
	}
}

type metricJSON struct {
	Count   int64     `json:"count"`
	TotalMS float64   `json:"total_ms"`
	AvgMS   float64   `json:"avg_ms"`
	MinMS   float64   `json:"min_ms"`
	MaxMS   float64   `json:"max_ms"`
	LastMS  float64   `json:"last_ms"`
	Last    time.Time `json:"last_call"`
}

type reportJSON struct {
	StartTime time.Time             `json:"start_time"`
	RuntimeMS float64               `json:"runtime_ms"`
	Metrics   map[string]metricJSON `json:"metrics"`
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// JSONReport renders all metrics as JSON with millisecond durations.
func (p *Profiler) JSONReport() ([]byte, error) {
	start := p.startTime()
	report := reportJSON{
		StartTime: start,
		RuntimeMS: ms(time.Since(start)),
		Metrics:   make(map[string]metricJSON),
	}
	for _, m := range p.Snapshot() {
		report.Metrics[m.Name] = metricJSON{
			Count:   m.Count,
			TotalMS: ms(m.TotalTime),
			AvgMS:   ms(m.AverageTime()),
			MinMS:   ms(m.MinTime),
			MaxMS:   ms(m.MaxTime),
			LastMS:  ms(m.LastTime),
			Last:    m.LastCall,
		}
	}
	return json.MarshalIndent(report, "", "  ")
}

func (p *Profiler) startTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.since
}

// Enable turns recording on.
func (p *Profiler) Enable() { p.enabled.Store(true) }

// Disable turns recording off. Existing statistics are kept.
func (p *Profiler) Disable() { p.enabled.Store(false) }

// IsEnabled reports whether recording is on.
func (p *Profiler) IsEnabled() bool { return p.enabled.Load() }
