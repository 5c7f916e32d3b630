package service

import (
	"time"

	"go.uber.org/zap"

	"givmon/internal/sensorstore"
)

// Freshness budgets for the external signal records.
const (
	TariffStaleAfter = 3600 * time.Second
	EVStaleAfter     = 900 * time.Second
)

// SlotIndex converts an hhmm time into the half-hour slot numbering
// used by the tariff feed: 0 = 00:00, 3 = 01:30. Minutes 00 to 29
// truncate down, 30 to 59 round up.
func SlotIndex(hhmm int) int {
	return (hhmm + 20) / 50
}

// SignalGate reads the EV charger and smart tariff records and decides
// whether they should influence this iteration. A stale record is
// treated as inactive rather than failing the tick.
type SignalGate struct {
	logger *zap.Logger
}

func NewSignalGate(logger *zap.Logger) SignalGate {
	return SignalGate{logger: logger}
}

// EVChargingActive reports whether the car is actively drawing power in
// the surplus-following mode, meaning battery discharge should pause.
func (g SignalGate) EVChargingActive(now time.Time, ev sensorstore.EVChargerRecord) bool {
	if stale(ev.Timestamp, now, EVStaleAfter) {
		return false
	}
	return ev.Status == sensorstore.EVStatusCharging && ev.Mode == sensorstore.EVModeEcoPlus
}

// DispatchSlotActive reports whether hhmm falls inside one of the
// stored bonus charge slots.
func (g SignalGate) DispatchSlotActive(now time.Time, hhmm int, tariff sensorstore.TariffRecord) bool {
	if stale(tariff.Timestamp, now, TariffStaleAfter) {
		g.logger.Debug("tariff record stale, ignoring slots",
			zap.Uint32("timestamp", tariff.Timestamp))
		return false
	}
	slot := uint8(SlotIndex(hhmm))
	for i, r := range tariff.Slots {
		if i >= int(tariff.Count) {
			break
		}
		if r.Start <= slot && slot < r.End {
			return true
		}
	}
	return false
}

// DispatchPending returns the number of upcoming bonus slots, or zero
// when the record is stale.
func (g SignalGate) DispatchPending(now time.Time, tariff sensorstore.TariffRecord) int {
	if stale(tariff.Timestamp, now, TariffStaleAfter) {
		return 0
	}
	return int(tariff.Count)
}

func stale(ts uint32, now time.Time, budget time.Duration) bool {
	if ts == 0 {
		return true
	}
	return time.Unix(int64(ts), 0).Add(budget).Before(now)
}
