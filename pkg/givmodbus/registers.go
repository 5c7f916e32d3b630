package givmodbus

import "fmt"

// Register map for GivEnergy hybrid inverters (Gen 1/2 register layout).
// The inverter exposes plain 16-bit registers over modbus TCP; there are
// no scale-factor registers, powers are raw watts and times are clock
// integers (hour*100 + minute).

// Input registers. Read every refresh.
const (
	IRInverterStatus  = 0
	IRPV1Power        = 17
	IRPV2Power        = 20
	IRInverterOutput  = 24 // AC generation, signed
	IRGridOutput      = 30 // signed, positive = exporting
	IREPSBackupPower  = 41
	IRBatteryPower    = 73 // signed, positive = discharging
	IRBatterySoC      = 84
	IRHeatsinkTemp    = 90 // tenths of a degree
	IRCellVoltageBase = 120
	CellCount         = 16
)

// Holding registers. Refreshed in full only on demand; other writers may
// change them between refreshes, so the controller re-reads them at a
// slower cadence.
const (
	HRBatteryPowerMode = 27 // "eco": 1 = dynamic balancing, 0 = grid-first
	HREnableDischarge  = 59 // timed export enable

	// Charge slots #3..#7 carry empty time windows; only the target SoC
	// parameters are used, as the day's five-segment target schedule.
	HRChargeTargetSoC3 = 242
	HRChargeTargetSoC4 = 245
	HRChargeTargetSoC5 = 248
	HRChargeTargetSoC6 = 251
	HRChargeTargetSoC7 = 254

	// Discharge slots #3..#7 are assumed contiguous; only the start of #3
	// and the end of #7 bound the forced-export window.
	HRDischargeSlot3Start = 260
	HRDischargeSlot7End   = 273

	HRBatteryPauseMode = 318 // 0 = none, 1 = pause charge, 2 = pause discharge
	HRPauseSlotStart   = 319
	HRPauseSlotEnd     = 320
)

// Holding register blocks the client keeps cached.
var holdingBlocks = [...]uint16{0, 60, 240, 300}

const blockSize = 60

// Pause mode register values.
const (
	PauseNone      = 0
	PauseCharge    = 1
	PauseDischarge = 2
)

// RegisterWrite is one named holding-register write in a batch.
type RegisterWrite struct {
	Register uint16
	Value    uint16
	Name     string
}

func (w RegisterWrite) String() string {
	return fmt.Sprintf("%s(%d)=%d", w.Name, w.Register, w.Value)
}
