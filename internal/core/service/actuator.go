package service

import (
	"givmon/internal/core/domain"
	"givmon/pkg/givmodbus"
)

// DiffIntent compares the desired posture against the observed register
// state and returns only the writes needed to reconcile them. Ordering
// matters at the eco boundary: eco goes off before un-pausing, and back
// on only after pausing, so the inverter never sees eco on with pause
// clear for a moment and sneaks in a charge pulse. Pause and discharge
// registers are only touched inside the active window; the eco flag may
// be written at any time.
func DiffIntent(snap *givmodbus.Snapshot, intent domain.ControlIntent, active bool) []givmodbus.RegisterWrite {
	var writes []givmodbus.RegisterWrite

	if snap.EcoMode && !intent.Eco {
		writes = append(writes, ecoWrite(false))
	}

	if active && snap.PauseMode != intent.Pause {
		writes = append(writes, givmodbus.RegisterWrite{
			Register: givmodbus.HRBatteryPauseMode,
			Value:    intent.Pause,
			Name:     "battery_pause_mode",
		})
	}

	if !snap.EcoMode && intent.Eco {
		writes = append(writes, ecoWrite(true))
	}

	if active && snap.DischargeEnabled != intent.ForceDischarge {
		writes = append(writes, givmodbus.RegisterWrite{
			Register: givmodbus.HREnableDischarge,
			Value:    boolRegister(intent.ForceDischarge),
			Name:     "enable_discharge",
		})
	}

	return writes
}

func ecoWrite(on bool) givmodbus.RegisterWrite {
	return givmodbus.RegisterWrite{
		Register: givmodbus.HRBatteryPowerMode,
		Value:    boolRegister(on),
		Name:     "battery_power_mode",
	}
}

func boolRegister(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
