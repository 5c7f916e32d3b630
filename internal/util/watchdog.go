package util

import (
	"time"

	"go.uber.org/zap"
)

// Watchdog is a process liveness timer. The owner kicks it once per loop
// iteration; if an iteration wedges long enough for the timer to fire, the
// process is terminated and the external supervisor restarts it. There is
// no in-process recovery path on purpose.
type Watchdog struct {
	interval time.Duration
	timer    *time.Timer
	logger   *zap.Logger
}

func NewWatchdog(interval time.Duration, logger *zap.Logger) *Watchdog {
	w := &Watchdog{
		interval: interval,
		logger:   logger,
	}
	w.timer = time.AfterFunc(interval, w.expire)
	return w
}

// Kick re-arms the timer for another full interval.
func (w *Watchdog) Kick() {
	w.timer.Reset(w.interval)
}

// Stop disarms the watchdog.
func (w *Watchdog) Stop() {
	w.timer.Stop()
}

func (w *Watchdog) expire() {
	w.logger.Fatal("watchdog expired, terminating", zap.Duration("interval", w.interval))
}
