package service

import (
	"givmon/pkg/givmodbus"
)

// Schedule is the inverter-resident time-of-day configuration, re-read
// every iteration since other clients can rewrite it at any time. All
// times are hhmm integers (hour*100 + minute) and windows are assumed
// not to span midnight.
type Schedule struct {
	// Target SoC per day segment, from charge slots 3 through 7.
	Targets [5]int
	// Pause timer bounds: the window in which the controller is in
	// charge of the inverter.
	PauseStart int
	PauseEnd   int
	// Contiguous discharge window, start of slot 3 to end of slot 7.
	DischargeStart int
	DischargeEnd   int
}

// Boundaries of the five target-SoC day segments.
var segmentEnds = [4]int{1600, 1930, 2200, 2300}

func ScheduleFromSnapshot(snap *givmodbus.Snapshot) Schedule {
	return Schedule{
		Targets:        snap.ChargeTargetSoC,
		PauseStart:     snap.PauseStart,
		PauseEnd:       snap.PauseEnd,
		DischargeStart: snap.DischargeStart,
		DischargeEnd:   snap.DischargeEnd,
	}
}

// TargetSoC resolves the target for the segment containing hhmm: the
// first segment whose end time exceeds now, or the last segment.
func (s Schedule) TargetSoC(hhmm int) int {
	for i, end := range segmentEnds {
		if hhmm < end {
			return s.Targets[i]
		}
	}
	return s.Targets[4]
}

// ActiveWindow reports whether the controller is in charge right now.
func (s Schedule) ActiveWindow(hhmm int) bool {
	return s.PauseStart <= hhmm && hhmm < s.PauseEnd
}

// InDischargeWindow reports whether hhmm falls inside the forced
// discharge bounds, inclusive at both ends.
func (s Schedule) InDischargeWindow(hhmm int) bool {
	return s.DischargeStart <= hhmm && hhmm <= s.DischargeEnd
}

// Valid reports whether the pause window is usable. A window spanning
// midnight (end <= start) is a configuration error the caller should
// log; behaviour with such a window is best effort.
func (s Schedule) Valid() bool {
	return s.PauseStart < s.PauseEnd
}
