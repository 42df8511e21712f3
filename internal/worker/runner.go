package worker

import (
	"context"
	"sync"
	"time"

	"vipearn/internal/metrics"

	"go.uber.org/zap"
)

// Func is one tick of a background job.
type Func func(ctx context.Context) error

// Runner drives a Func on a fixed interval. It runs once immediately on
// Start, then on every tick until Stop. Start and Stop may be called
// repeatedly; the runner owns its own state.
type Runner struct {
	name     string
	interval time.Duration
	fn       Func
	log      *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
	lastRun time.Time
	lastErr error
}

func NewRunner(name string, interval time.Duration, fn Func, log *zap.Logger, m *metrics.Metrics) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.Named(name),
		metrics:  m,
	}
}

func (r *Runner) Name() string { return r.name }

// Start launches the loop. It reports false when the runner was already running.
func (r *Runner) Start(parent context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	// done stays set until the previous loop has exited, including while a
	// Stop is still waiting on its last tick.
	if r.cancel != nil || r.done != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = time.Now()
	go r.loop(ctx, r.done)
	r.log.Info("worker started", zap.Duration("interval", r.interval))
	return true
}

// Stop cancels the loop and waits for the in-flight tick to return.
// It reports false when the runner was not running.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done

	r.mu.Lock()
	if r.done == done {
		r.done = nil
	}
	r.mu.Unlock()
	r.log.Info("worker stopped")
	return true
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Status is a point-in-time view of the runner for admin endpoints.
type Status struct {
	Name      string     `json:"name"`
	Running   bool       `json:"running"`
	Interval  string     `json:"interval"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{Name: r.name, Running: r.cancel != nil, Interval: r.interval.String()}
	if st.Running {
		t := r.started
		st.StartedAt = &t
	}
	if !r.lastRun.IsZero() {
		t := r.lastRun
		st.LastRunAt = &t
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

// RunOnce executes a single tick synchronously, outside the loop.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.tick(ctx)
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run once at start
	_ = r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) error {
	start := time.Now()
	err := r.fn(ctx)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.lastRun = start
	r.lastErr = err
	r.mu.Unlock()

	r.metrics.WorkerRun(r.name, elapsed.Seconds(), err)
	if err != nil && ctx.Err() == nil {
		r.log.Error("worker tick failed", zap.Error(err), zap.Duration("took", elapsed))
	} else {
		r.log.Debug("worker tick", zap.Duration("took", elapsed))
	}
	return err
}
