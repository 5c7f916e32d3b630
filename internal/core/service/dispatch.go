package service

import (
	"time"

	"go.uber.org/zap"

	"givmon/internal/core/domain"
	"givmon/internal/sensorstore"
	"givmon/pkg/givmodbus"
)

// Delay tuning: 30s when solar is near the inverter's AC ceiling, out
// to about 5 minutes when solar is near zero.
const (
	minDelaySeconds  = 30
	delayNumerator   = 5555
	delayDenominator = 18.5
	highSolarWatt    = 5000
)

// EngineInput is everything one tick of the engine looks at: the fresh
// inverter snapshot, the running smoothers, and the external signal
// records loaded from the shared store.
type EngineInput struct {
	Now      time.Time
	Snapshot *givmodbus.Snapshot

	Solar      *Smoother
	Generation *Smoother
	Export     *Smoother
	Battery    *Smoother

	EV     sensorstore.EVChargerRecord
	Tariff sensorstore.TariffRecord
}

// Engine turns smoothed telemetry, the inverter-resident schedule and
// the external signals into a control intent. It is pure apart from
// logging: all persistent state comes in and goes out as
// domain.ControllerState.
type Engine struct {
	logger *zap.Logger
	gate   SignalGate
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger: logger,
		gate:   NewSignalGate(logger),
	}
}

// Step runs one decision tick and returns the updated state plus the
// desired inverter posture for the next interval.
func (e *Engine) Step(st domain.ControllerState, in EngineInput) (domain.ControllerState, domain.ControlIntent) {
	now := in.Now
	hhmm := now.Hour()*100 + now.Minute()
	snap := in.Snapshot

	sched := ScheduleFromSnapshot(snap)
	if !sched.Valid() {
		e.logger.Warn("pause window does not describe a same-day range",
			zap.Int("start", sched.PauseStart), zap.Int("end", sched.PauseEnd))
	}
	target := sched.TargetSoC(hhmm)
	soc := snap.StateOfCharge
	active := sched.ActiveWindow(hhmm)

	st.Adjust = nextAdjust(st.Adjust, hhmm, soc, target)

	// Adaptive delay: poll often when solar could clip the inverter,
	// slowly when there is nothing to react to. Rules below may only
	// shrink this value.
	sun := in.Solar.Value()
	if f := in.Solar.DecayFloor(); f > sun {
		sun = f
	}
	delay := float64(minDelaySeconds)
	if st.Settled() && sun < highSolarWatt {
		delay = (delayNumerator - sun) / delayDenominator
		if delay < minDelaySeconds {
			delay = minDelaySeconds
		}
	}

	// Near the target while moving: check again soon to avoid
	// overshooting. Skipped on hold so a sunless evening does not poll
	// needlessly.
	if st.Adjust != domain.AdjustHold && delay > 60 && target-2 <= soc && soc <= target+2 {
		delay = 60
	}

	st.NightIdle = nextLatch(st.NightIdle, hhmm, snap.BatteryWatt)

	ctx := &ecoContext{
		hhmm:   hhmm,
		active: active,
		sched:  sched,
		adjust: st.Adjust,
		latch:  st.NightIdle,
		eco:    snap.EcoMode,
		ed:     snap.DischargeEnabled,
		solar:  in.Solar,
		gen:    in.Generation,
		export: in.Export,
		want:   snap.EcoMode,
		delay:  delay,
	}
	rule := ctx.apply()
	e.logger.Debug("eco rule",
		zap.String("rule", rule),
		zap.Bool("eco", ctx.want),
		zap.String("adjust", st.Adjust.String()))
	wantEco := ctx.want
	delay = ctx.delay

	// Pause selection, only meaningful inside the active window. At the
	// start of a winter day there is no point pausing a battery that is
	// about to run flat, so the baseline also waits for the slow solar
	// average to wake up.
	pause := snap.PauseMode
	if active {
		if wantEco && st.Adjust != domain.AdjustCharge && in.Solar.Slow() >= 100 {
			pause = givmodbus.PauseCharge
		} else {
			pause = givmodbus.PauseNone
		}

		if e.gate.EVChargingActive(now, in.EV) {
			e.logger.Debug("car charging on surplus, pausing discharge")
			pause = givmodbus.PauseDischarge
			delay = minDelaySeconds
			if st.Adjust == domain.AdjustDischarge {
				st.Adjust = domain.AdjustHold
			}
		}

		if e.gate.DispatchSlotActive(now, hhmm, in.Tariff) {
			e.logger.Debug("inside bonus charge slot")
			delay = minDelaySeconds
			if st.Adjust == domain.AdjustDischarge {
				st.Adjust = domain.AdjustHold
			}
		} else if e.gate.DispatchPending(now, in.Tariff) > 0 && delay > 60 {
			// don't miss the start of a pending slot
			delay = 60
		}
	}

	forceDischarge := active &&
		st.Adjust == domain.AdjustDischarge &&
		sched.InDischargeWindow(hhmm)

	return st, domain.ControlIntent{
		Eco:            wantEco,
		Pause:          pause,
		ForceDischarge: forceDischarge,
		DelaySeconds:   delay,
	}
}

// nextAdjust applies the target tracking hysteresis. Inside the +/-5
// band an in-progress direction is only cleared, never reversed, so the
// controller must observe a hold before flipping.
func nextAdjust(adjust domain.AdjustDirection, hhmm, soc, target int) domain.AdjustDirection {
	switch {
	case hhmm > 2200:
		// no hysteresis this late: shed any excess, otherwise sit still
		if soc > target {
			return domain.AdjustDischarge
		}
		return domain.AdjustHold
	case soc > target+5:
		return domain.AdjustDischarge
	case soc > target:
		if adjust == domain.AdjustCharge {
			return domain.AdjustHold
		}
		return adjust
	case soc == target:
		return domain.AdjustHold
	case soc >= target-5:
		if adjust == domain.AdjustDischarge {
			return domain.AdjustHold
		}
		return adjust
	default:
		return domain.AdjustCharge
	}
}

// nextLatch manages the overnight-idle latch: decided once at the entry
// into the cheap-rate segment, reset once the morning threshold passes.
func nextLatch(latch domain.NightLatch, hhmm int, batteryWatt float64) domain.NightLatch {
	switch {
	case hhmm >= 2330:
		if latch == domain.LatchUnset {
			if batteryWatt <= 5 {
				return domain.LatchIdle
			}
			return domain.LatchActive
		}
		return latch
	case hhmm >= 100:
		return domain.LatchUnset
	default:
		return latch
	}
}
