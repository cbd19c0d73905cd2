package orchestration

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yeschef/yeschef-agent/core/camera"
)

// stalenessMonitor is level-triggered and edge-notified: the model hears about
// a stall once, then again only after the stall has cleared.
type stalenessMonitor struct {
	clock     clock.Clock
	interval  time.Duration
	threshold time.Duration
	truth     *truthStore
	notify    func(ctx context.Context)

	// flag is the session's StaleFlag.
	flag atomic.Bool
}

func newStalenessMonitor(clk clock.Clock, interval, threshold time.Duration, truth *truthStore, notify func(ctx context.Context)) *stalenessMonitor {
	return &stalenessMonitor{clock: clk, interval: interval, threshold: threshold, truth: truth, notify: notify}
}

func (m *stalenessMonitor) run(ctx context.Context) error {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.check(ctx, now)
		}
	}
}

// check evaluates one tick and reports whether it notified the model.
func (m *stalenessMonitor) check(ctx context.Context, now time.Time) bool {
	truth := m.truth.Snapshot()
	if !camera.Stale(truth, now, m.threshold) {
		m.flag.Store(false)
		return false
	}

	if !m.flag.CompareAndSwap(false, true) {
		return false
	}

	logger.WarnContext(ctx, "video frames appear stale, notifying model",
		"since_last_frame", now.Sub(truth.LastFrameAt).String())
	staleNotifiedCounter.Add(ctx, 1)
	m.notify(ctx)
	return true
}

func (m *stalenessMonitor) clear() { m.flag.Store(false) }

func (m *stalenessMonitor) isStale() bool { return m.flag.Load() }
