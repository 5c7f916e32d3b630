package givmodbus

import "time"

// Snapshot is one coherent read of the registers the dispatch controller
// consumes. Power values are signed watts: GridExportWatt is negative when
// importing, BatteryWatt is negative when charging.
type Snapshot struct {
	At time.Time

	// telemetry (input registers)
	SolarWatt      float64
	GenerationWatt float64
	GridExportWatt float64
	BatteryWatt    float64
	BackupWatt     float64
	StateOfCharge  int
	HeatsinkTempC  float64

	// operating flags (holding registers, cached between full refreshes)
	EcoMode          bool
	PauseMode        uint16
	DischargeEnabled bool

	// schedule configuration (holding registers)
	ChargeTargetSoC [5]int // slots #3..#7
	PauseStart      int    // hhmm
	PauseEnd        int
	DischargeStart  int
	DischargeEnd    int

	// per-cell voltages in volts, only present when requested
	CellVoltages []float64
}

// TransportError wraps a modbus I/O failure. A refresh that returns one
// yields no snapshot; the decision step must be skipped for the iteration.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "givmodbus: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
