package domain

import (
	"time"

	"givmon/pkg/givmodbus"
)

// AdjustDirection is the hysteresis-filtered verdict on how the battery
// state of charge sits relative to the scheduled target.
type AdjustDirection int

const (
	AdjustDischarge AdjustDirection = -1
	AdjustHold      AdjustDirection = 0
	AdjustCharge    AdjustDirection = 1
)

func (d AdjustDirection) String() string {
	switch d {
	case AdjustDischarge:
		return "discharge"
	case AdjustCharge:
		return "charge"
	default:
		return "hold"
	}
}

// NightLatch freezes the overnight behaviour at 23:30 based on whether
// the battery was moving power at that moment.
type NightLatch int

const (
	LatchUnset NightLatch = iota
	LatchIdle
	LatchActive
)

func (l NightLatch) String() string {
	switch l {
	case LatchIdle:
		return "idle"
	case LatchActive:
		return "active"
	default:
		return "unset"
	}
}

// ControllerState is the mutable state threaded through consecutive
// dispatch ticks. A fresh state starts with a negative elapsed time so
// the first couple of minutes after startup observe without acting.
type ControllerState struct {
	Adjust         AdjustDirection
	NightIdle      NightLatch
	ElapsedSeconds float64
	CellLogAt      time.Time
}

func NewControllerState(settleSeconds float64) ControllerState {
	return ControllerState{
		Adjust:         AdjustHold,
		NightIdle:      LatchUnset,
		ElapsedSeconds: -settleSeconds,
	}
}

// Settled reports whether the startup observation period is over.
func (s ControllerState) Settled() bool {
	return s.ElapsedSeconds >= 0
}

// ControlIntent is the desired inverter posture for the next interval,
// plus how long to wait before looking again.
type ControlIntent struct {
	Eco            bool
	Pause          uint16
	ForceDischarge bool
	DelaySeconds   float64
}

func (i ControlIntent) PauseString() string {
	switch i.Pause {
	case givmodbus.PauseCharge:
		return "pause-charge"
	case givmodbus.PauseDischarge:
		return "pause-discharge"
	default:
		return "none"
	}
}
