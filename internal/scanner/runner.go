package scanner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/world"
)

// RunnerConfig holds the tick cadence and budgets.
type RunnerConfig struct {
	TickInterval  time.Duration
	BlocksPerTick int
	// RecountRate and RecountBurst bound how often external full recount
	// requests are honoured.
	RecountRate  rate.Limit
	RecountBurst int
}

// DefaultRunnerConfig returns a 60Hz cadence with the default budget.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		TickInterval:  16 * time.Millisecond,
		BlocksPerTick: DefaultBlocksPerTick,
		RecountRate:   rate.Every(time.Second),
		RecountBurst:  1,
	}
}

// PublishFunc is called on the runner goroutine after every published pass.
type PublishFunc func(buf *counts.Buffer)

// Runner owns the only goroutine that calls Tick. The world handle may be
// replaced from any goroutine; the swap takes effect at the next tick.
type Runner struct {
	scanner *Scanner
	cfg     RunnerConfig
	logger  *slog.Logger

	world    atomic.Pointer[world.Context]
	recounts *rate.Limiter

	mu        sync.RWMutex
	onPublish []PublishFunc
}

// NewRunner wraps s.
func NewRunner(s *Scanner, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultRunnerConfig().TickInterval
	}
	if cfg.BlocksPerTick <= 0 {
		cfg.BlocksPerTick = DefaultBlocksPerTick
	}
	if cfg.RecountBurst <= 0 {
		cfg.RecountBurst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		scanner:  s,
		cfg:      cfg,
		logger:   logger.With("component", "runner"),
		recounts: rate.NewLimiter(cfg.RecountRate, cfg.RecountBurst),
	}
}

// SetWorld replaces the world the next tick scans.
func (r *Runner) SetWorld(wc world.Context) {
	r.world.Store(&wc)
}

// World returns the current world handle.
func (r *Runner) World() world.Context {
	if wc := r.world.Load(); wc != nil {
		return *wc
	}
	return world.Context{}
}

// OnPublish registers fn to run after every published pass.
func (r *Runner) OnPublish(fn PublishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPublish = append(r.onPublish, fn)
}

// RequestFullRecount forwards a recount request unless requests are
// arriving faster than the configured rate. It reports whether the request
// was accepted.
func (r *Runner) RequestFullRecount() bool {
	if !r.recounts.Allow() {
		return false
	}
	r.scanner.RequestFullRecount()
	return true
}

// RequestStop halts scanning at the next square. The published snapshot
// stays readable.
func (r *Runner) RequestStop() {
	r.scanner.RequestStop()
}

// Step runs one budgeted tick against the current world.
func (r *Runner) Step() TickResult {
	res := r.scanner.Tick(r.World(), r.cfg.BlocksPerTick, false)
	if res.Err != nil && !res.Skipped {
		r.logger.Warn("tick failed", "error", res.Err)
	}
	if res.Published {
		buf := r.scanner.store.Final()
		r.mu.RLock()
		hooks := r.onPublish
		r.mu.RUnlock()
		for _, fn := range hooks {
			fn(buf)
		}
	}
	return res
}

// Run ticks until ctx is done, then stops the scanner.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.logger.Info("scan loop started", "interval", r.cfg.TickInterval, "blocks_per_tick", r.cfg.BlocksPerTick)
	for {
		select {
		case <-ctx.Done():
			r.scanner.RequestStop()
			r.logger.Info("scan loop stopped")
			return nil
		case <-ticker.C:
			r.Step()
		}
	}
}
