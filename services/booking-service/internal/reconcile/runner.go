package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	SweepFinish = "finish"
	SweepExpire = "expire"
	SweepRemind = "remind"
	SweepAll    = "all"
)

// Elector decides which instance runs the sweeps. pgstore.AdvisoryLock
// implements it with a session-level advisory lock.
type Elector interface {
	TryAcquire(ctx context.Context) (bool, func(), error)
}

// SingleInstance always wins the election. Use it when only one process can
// run the sweeps, as with the embedded SQLite store.
type SingleInstance struct{}

func (SingleInstance) TryAcquire(context.Context) (bool, func(), error) {
	return true, func() {}, nil
}

type Config struct {
	FinishEvery time.Duration
	ExpireEvery time.Duration
	RemindEvery time.Duration
	// RetryEvery is how often a follower retries the election.
	RetryEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.FinishEvery <= 0 {
		c.FinishEvery = 30 * time.Minute
	}
	if c.ExpireEvery <= 0 {
		c.ExpireEvery = 30 * time.Minute
	}
	if c.RemindEvery <= 0 {
		c.RemindEvery = 15 * time.Minute
	}
	if c.RetryEvery <= 0 {
		c.RetryEvery = 30 * time.Second
	}
	return c
}

type Runner struct {
	sweeper *Sweeper
	clock   clock.Clock
	elector Elector
	logger  *slog.Logger
	cfg     Config
}

func NewRunner(sweeper *Sweeper, clk clock.Clock, elector Elector, logger *slog.Logger, cfg Config) *Runner {
	if elector == nil {
		elector = SingleInstance{}
	}
	return &Runner{sweeper: sweeper, clock: clk, elector: elector, logger: logger, cfg: cfg.withDefaults()}
}

// Run blocks until ctx ends. Only the elected instance sweeps; the others keep
// retrying the election.
func (r *Runner) Run(ctx context.Context) error {
	release, ok := r.awaitLeadership(ctx)
	if !ok {
		return nil
	}
	defer release()

	g, ctx := errgroup.WithContext(ctx)
	for name, every := range map[string]time.Duration{
		SweepExpire: r.cfg.ExpireEvery,
		SweepFinish: r.cfg.FinishEvery,
		SweepRemind: r.cfg.RemindEvery,
	} {
		g.Go(func() error {
			r.loop(ctx, name, every)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) awaitLeadership(ctx context.Context) (func(), bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}
		locked, release, err := r.elector.TryAcquire(ctx)
		switch {
		case err != nil:
			r.logger.Error("reconcile: leader election failed", "err", err)
		case locked:
			r.logger.Info("reconcile: leadership acquired")
			return release, true
		default:
			r.logger.Debug("reconcile: another instance is leader")
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(r.cfg.RetryEvery):
		}
	}
}

// loop runs one sweep immediately and then on its cadence. Failures are
// logged and retried on the next tick.
func (r *Runner) loop(ctx context.Context, name string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := r.runSweep(ctx, name); err != nil && ctx.Err() == nil {
			r.logger.Error("reconcile sweep failed", "sweep", name, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce runs the named sweep, or all three for SweepAll, and returns rows
// changed per sweep. It does not take part in leader election.
func (r *Runner) RunOnce(ctx context.Context, name string) (map[string]int, error) {
	names := []string{name}
	switch name {
	case SweepAll:
		names = []string{SweepExpire, SweepFinish, SweepRemind}
	case SweepExpire, SweepFinish, SweepRemind:
	default:
		return nil, fmt.Errorf("unknown sweep %q", name)
	}

	out := make(map[string]int, len(names))
	for _, n := range names {
		rows, err := r.runSweep(ctx, n)
		out[n] = rows
		if err != nil {
			return out, fmt.Errorf("%s sweep: %w", n, err)
		}
	}
	return out, nil
}

func (r *Runner) runSweep(ctx context.Context, name string) (int, error) {
	now := clock.Take(r.clock)
	start := time.Now()

	var (
		rows int
		err  error
	)
	switch name {
	case SweepFinish:
		rows, err = r.sweeper.FinishElapsed(ctx, now)
	case SweepExpire:
		rows, err = r.sweeper.ExpirePending(ctx, now)
	case SweepRemind:
		rows, err = r.sweeper.SendReminders(ctx, now)
	default:
		return 0, fmt.Errorf("unknown sweep %q", name)
	}

	metrics.SweepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.SweepRowsTotal.WithLabelValues(name).Add(float64(rows))
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SweepRunsTotal.WithLabelValues(name, result).Inc()
	if rows > 0 {
		r.logger.Info("reconcile sweep", "sweep", name, "rows", rows, "local_now", now.Local.Format(time.RFC3339))
	}
	return rows, err
}
