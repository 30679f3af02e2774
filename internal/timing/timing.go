// Package timing pads responses so that rejections which skip the expensive
// password comparison take about as long as ones that perform it.
package timing

import (
	"context"
	"sync"
	"time"
)

// ewmaShift sets the smoothing factor of the running estimate to 1/8.
const ewmaShift = 3

// Config tunes an Equalizer.
type Config struct {
	// Initial seeds the estimate before any observation, usually measured by
	// timing one dummy comparison at startup.
	Initial time.Duration
	// Floor is the minimum padded duration.
	Floor time.Duration
	// Ceiling caps the padded duration so a slow outlier cannot stall callers.
	Ceiling time.Duration
}

// Equalizer tracks how long a real credential comparison takes and sleeps
// the remaining time on paths that skip it. Safe for concurrent use.
type Equalizer struct {
	floor   time.Duration
	ceiling time.Duration

	mu       sync.Mutex
	estimate time.Duration

	since func(time.Time) time.Duration
	sleep func(context.Context, time.Duration) error
}

// New returns an Equalizer seeded from cfg.
func New(cfg Config) *Equalizer {
	return &Equalizer{
		floor:    cfg.Floor,
		ceiling:  cfg.Ceiling,
		estimate: cfg.Initial,
		since:    time.Since,
		sleep:    sleepContext,
	}
}

// Observe folds one measured comparison duration into the estimate.
func (e *Equalizer) Observe(d time.Duration) {
	if e == nil || d <= 0 {
		return
	}
	e.mu.Lock()
	if e.estimate == 0 {
		e.estimate = d
	} else {
		e.estimate += (d - e.estimate) >> ewmaShift
	}
	e.mu.Unlock()
}

// Target returns the duration a padded path should take in total.
func (e *Equalizer) Target() time.Duration {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	t := e.estimate
	e.mu.Unlock()

	if t < e.floor {
		t = e.floor
	}
	if e.ceiling > 0 && t > e.ceiling {
		t = e.ceiling
	}
	return t
}

// Pad sleeps until Target has elapsed since start. It returns early with the
// context error if ctx is cancelled.
func (e *Equalizer) Pad(ctx context.Context, start time.Time) error {
	if e == nil {
		return nil
	}
	remaining := e.Target() - e.since(start)
	if remaining <= 0 {
		return nil
	}
	return e.sleep(ctx, remaining)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
