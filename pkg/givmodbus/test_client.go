package givmodbus

import "time"

// TestTransport is an in-memory Transport for tests. Snapshots are served
// from Snap; writes are recorded and folded back into Snap so a subsequent
// refresh observes the committed state.
type TestTransport struct {
	Snap     Snapshot
	Writes   []RegisterWrite
	FailNext error
}

func CreateTestTransport() *TestTransport {
	return &TestTransport{
		Snap: Snapshot{
			SolarWatt:       2500,
			GenerationWatt:  2300,
			GridExportWatt:  150,
			BatteryWatt:     -800,
			StateOfCharge:   64,
			EcoMode:         true,
			PauseMode:       PauseCharge,
			ChargeTargetSoC: [5]int{100, 90, 70, 50, 30},
			PauseStart:      530,
			PauseEnd:        2330,
			DischargeStart:  900,
			DischargeEnd:    2300,
		},
	}
}

func (t *TestTransport) Open() error  { return nil }
func (t *TestTransport) Close() error { return nil }

func (t *TestTransport) Refresh(full bool, withCells bool) (*Snapshot, error) {
	if t.FailNext != nil {
		err := t.FailNext
		t.FailNext = nil
		return nil, &TransportError{Op: "refresh", Err: err}
	}
	snap := t.Snap
	snap.At = time.Now()
	if withCells {
		snap.CellVoltages = make([]float64, CellCount)
		for i := range snap.CellVoltages {
			snap.CellVoltages[i] = 3.25
		}
	}
	return &snap, nil
}

func (t *TestTransport) Execute(writes []RegisterWrite, timeout time.Duration, retries int) error {
	if t.FailNext != nil {
		err := t.FailNext
		t.FailNext = nil
		return &TransportError{Op: "execute", Err: err}
	}
	t.Writes = append(t.Writes, writes...)
	for _, w := range writes {
		switch w.Register {
		case HRBatteryPowerMode:
			t.Snap.EcoMode = w.Value == 1
		case HRBatteryPauseMode:
			t.Snap.PauseMode = w.Value
		case HREnableDischarge:
			t.Snap.DischargeEnabled = w.Value == 1
		}
	}
	return nil
}

// ensure interface compliance
var _ Transport = (*TestTransport)(nil)
