package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"givmon/internal/sensorstore"
)

// Alert is a human-facing notification raised by the watcher.
type Alert struct {
	Message  string
	Priority string
	Tags     string
}

// notifier throttles repeat notifications about a persisting condition.
type notifier struct {
	notifiedAt int64
	interval   int64
}

// fire reports whether a notification should go out now, recording the
// time when it does. The first occurrence always fires.
func (n *notifier) fire(now int64) bool {
	if n.notifiedAt != 0 && now < n.notifiedAt+n.interval {
		return false
	}
	n.notifiedAt = now
	return true
}

func (n *notifier) pending() bool { return n.notifiedAt != 0 }

func (n *notifier) clear() { n.notifiedAt = 0 }

// Zappi lock register values that mean "locked". 31 turns up
// occasionally instead of 23.
func evLocked(lock int8) bool {
	return lock == 23 || lock == 31
}

type sensorWatch struct {
	name   string
	budget int64
	n      notifier
}

// WatchInput is one round of records loaded from the shared store.
type WatchInput struct {
	Now        time.Time
	EV         sensorstore.EVChargerRecord
	Telemetry  sensorstore.TelemetryRecord
	Tariff     sensorstore.TariffRecord
	HeatPump   sensorstore.HeatPumpRecord
	CarBattery sensorstore.CarBatteryRecord
	Forecast   sensorstore.ForecastRecord
}

// Watcher inspects the shared store for sensors that have stopped
// updating and for a few conditions worth an immediate alert: an EV
// charger fault or lock problem, charging start/stop, a grid outage,
// and changes to the day's first bonus charge slot. Repeat alerts for
// a persisting condition are throttled per notifier.
type Watcher struct {
	logger *zap.Logger

	sensors []*sensorWatch

	evStatus  notifier
	oldStatus int8
	evLock    notifier
	oldLock   int8
	outage    notifier
	firstSlot uint8
}

func NewWatcher(logger *zap.Logger) *Watcher {
	const renotify = 8 * 60 * 60
	mk := func(name string, budget int64) *sensorWatch {
		return &sensorWatch{name: name, budget: budget, n: notifier{interval: renotify}}
	}
	return &Watcher{
		logger: logger,
		sensors: []*sensorWatch{
			mk("ev charger", 900),
			mk("inverter telemetry", 600),
			mk("tariff dispatches", 4000),
			mk("heat pump", 2100),
			mk("car battery", 21600),
			mk("forecast", 4*24*60*60),
		},
		evStatus: notifier{interval: 10 * 60},
		oldLock:  23,
		evLock:   notifier{interval: 10 * 60},
		outage:   notifier{interval: 30 * 60},
	}
}

// prettyAge renders a staleness age at a sensible resolution.
func prettyAge(age int64) string {
	switch {
	case age > 7200:
		return fmt.Sprintf("%.2f hours", float64(age)/3600)
	case age > 300:
		return fmt.Sprintf("%.2f minutes", float64(age)/60)
	default:
		return fmt.Sprintf("%d seconds", age)
	}
}

// defaultPriority picks a notification priority by time of day so
// overnight alerts do not wake anyone.
func defaultPriority(now time.Time) string {
	hhmm := now.Hour()*100 + now.Minute()
	if 700 < hhmm && hhmm < 2230 {
		return "4"
	}
	return "3"
}

// Check runs one watch round over freshly loaded records and returns
// the alerts that should go out.
func (w *Watcher) Check(in WatchInput) []Alert {
	var alerts []Alert
	now := in.Now.Unix()
	pri := defaultPriority(in.Now)

	timestamps := []uint32{
		in.EV.Timestamp,
		in.Telemetry.Timestamp,
		in.Tariff.Timestamp,
		in.HeatPump.Timestamp,
		in.CarBattery.Timestamp,
		in.Forecast.Timestamp,
	}
	for i, s := range w.sensors {
		ts := int64(timestamps[i])
		if now > ts+s.budget {
			if s.n.fire(now) {
				alerts = append(alerts, Alert{
					Message:  fmt.Sprintf("%s has not updated for %s", s.name, prettyAge(now-ts)),
					Priority: pri,
					Tags:     "warning",
				})
			}
		} else if s.n.pending() {
			alerts = append(alerts, Alert{
				Message:  fmt.Sprintf("%s back online", s.name),
				Priority: "3",
			})
			s.n.clear()
		}
	}

	alerts = append(alerts, w.checkEV(in, now, pri)...)

	if in.Telemetry.Backup > 0 {
		if w.outage.fire(now) {
			alerts = append(alerts, Alert{
				Message:  "grid outage, running on backup",
				Priority: pri,
				Tags:     "warning",
			})
		}
	} else if w.outage.pending() {
		alerts = append(alerts, Alert{Message: "grid power restored", Priority: pri})
		w.outage.clear()
	}

	alerts = append(alerts, w.checkFirstSlot(in)...)

	return alerts
}

func (w *Watcher) checkEV(in WatchInput, now int64, pri string) []Alert {
	var alerts []Alert
	status := in.EV.Status
	if status != w.oldStatus {
		if status < 0 {
			if w.evStatus.fire(now) {
				alerts = append(alerts, Alert{
					Message:  "ev charger fault reported",
					Priority: pri,
					Tags:     "warning",
				})
			}
		} else {
			w.evStatus.clear()
		}

		// charging start and stop are worth a daytime heads-up
		if status == sensorstore.EVStatusCharging || w.oldStatus == sensorstore.EVStatusCharging {
			hhmm := in.Now.Hour()*100 + in.Now.Minute()
			if 700 <= hhmm && hhmm <= 2200 {
				msg := "car stopped charging"
				if status == sensorstore.EVStatusCharging {
					msg = "car started charging"
				}
				alerts = append(alerts, Alert{Message: msg, Priority: "4"})
			}
		}
		w.oldStatus = status
	}

	if in.EV.Lock != w.oldLock {
		if !evLocked(in.EV.Lock) {
			if w.evLock.fire(now) {
				alerts = append(alerts, Alert{
					Message:  "ev charger not locked",
					Priority: pri,
					Tags:     "warning",
				})
			}
		} else if w.evLock.pending() {
			alerts = append(alerts, Alert{Message: "ev charger locked", Priority: "3"})
			w.evLock.clear()
		}
		w.oldLock = in.EV.Lock
	}
	return alerts
}

// checkFirstSlot announces new or cancelled daytime bonus charge slots.
// Slot times are half-hour units; the tariff feed never stores slots
// inside the overnight cheap rate.
func (w *Watcher) checkFirstSlot(in WatchInput) []Alert {
	var first uint8
	if in.Tariff.Count >= 1 {
		first = in.Tariff.Slots[0].Start
	}
	old := w.firstSlot
	if first == old {
		return nil
	}
	defer func() { w.firstSlot = first }()

	nowSlot := uint8(in.Now.Hour()*2 + in.Now.Minute()/30)

	// a slot after 11am that is now behind us just dropped off the
	// schedule, that is not a cancellation
	if old > 22 && old < nowSlot {
		old = 0
	}

	switch {
	case old >= nowSlot && first == 0 && old != 0:
		return []Alert{{
			Message:  fmt.Sprintf("charging slot at %02d:%02d cancelled", old/2, (old%2)*30),
			Priority: defaultPriority(in.Now),
		}}
	case first <= 14:
		// ignore anything before 7am
	case first <= 22 && nowSlot >= 28:
		// after 2pm, a morning slot belongs to tomorrow
	case first >= nowSlot:
		return []Alert{{
			Message:  fmt.Sprintf("bonus charging slot at %02d:%02d", first/2, (first%2)*30),
			Priority: defaultPriority(in.Now),
		}}
	}
	return nil
}
