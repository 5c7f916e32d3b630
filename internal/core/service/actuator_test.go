package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givmon/internal/core/domain"
	"givmon/pkg/givmodbus"
)

func observed() *givmodbus.Snapshot {
	return &givmodbus.Snapshot{
		EcoMode:          true,
		PauseMode:        givmodbus.PauseCharge,
		DischargeEnabled: false,
	}
}

func TestDiffNoChangesEmitsNothing(t *testing.T) {
	intent := domain.ControlIntent{
		Eco:   true,
		Pause: givmodbus.PauseCharge,
	}
	writes := DiffIntent(observed(), intent, true)
	assert.Empty(t, writes)
}

func TestDiffEcoOffBeforeUnpause(t *testing.T) {
	intent := domain.ControlIntent{
		Eco:   false,
		Pause: givmodbus.PauseNone,
	}
	writes := DiffIntent(observed(), intent, true)

	require.Len(t, writes, 2)
	assert.Equal(t, uint16(givmodbus.HRBatteryPowerMode), writes[0].Register)
	assert.Equal(t, uint16(0), writes[0].Value)
	assert.Equal(t, uint16(givmodbus.HRBatteryPauseMode), writes[1].Register)
	assert.Equal(t, uint16(givmodbus.PauseNone), writes[1].Value)
}

func TestDiffEcoOnAfterPause(t *testing.T) {
	snap := observed()
	snap.EcoMode = false
	snap.PauseMode = givmodbus.PauseNone
	intent := domain.ControlIntent{
		Eco:   true,
		Pause: givmodbus.PauseCharge,
	}
	writes := DiffIntent(snap, intent, true)

	require.Len(t, writes, 2)
	assert.Equal(t, uint16(givmodbus.HRBatteryPauseMode), writes[0].Register)
	assert.Equal(t, uint16(givmodbus.HRBatteryPowerMode), writes[1].Register)
	assert.Equal(t, uint16(1), writes[1].Value)
}

func TestDiffDischargeToggle(t *testing.T) {
	intent := domain.ControlIntent{
		Eco:            true,
		Pause:          givmodbus.PauseCharge,
		ForceDischarge: true,
	}
	writes := DiffIntent(observed(), intent, true)

	require.Len(t, writes, 1)
	assert.Equal(t, uint16(givmodbus.HREnableDischarge), writes[0].Register)
	assert.Equal(t, uint16(1), writes[0].Value)
}

func TestDiffOutsideWindowOnlyTouchesEco(t *testing.T) {
	intent := domain.ControlIntent{
		Eco:            false,
		Pause:          givmodbus.PauseNone,
		ForceDischarge: true,
	}
	writes := DiffIntent(observed(), intent, false)

	require.Len(t, writes, 1)
	assert.Equal(t, uint16(givmodbus.HRBatteryPowerMode), writes[0].Register)
}

func TestDiffWriteNames(t *testing.T) {
	snap := observed()
	snap.EcoMode = false
	intent := domain.ControlIntent{
		Eco:            true,
		Pause:          givmodbus.PauseNone,
		ForceDischarge: true,
	}
	writes := DiffIntent(snap, intent, true)

	require.Len(t, writes, 3)
	assert.Equal(t, "battery_pause_mode", writes[0].Name)
	assert.Equal(t, "battery_power_mode", writes[1].Name)
	assert.Equal(t, "enable_discharge", writes[2].Name)
}
