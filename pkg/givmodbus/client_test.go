package givmodbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"
)

const testListenAddr = "127.0.0.1:28899"

func signedReg(v int16) uint16 {
	return uint16(v)
}

func startFakeInverter(t *testing.T) *mbserver.Server {
	t.Helper()
	srv := mbserver.NewServer()
	require.NoError(t, srv.ListenTCP(testListenAddr))
	t.Cleanup(srv.Close)

	srv.InputRegisters[IRPV1Power] = 3100
	srv.InputRegisters[IRPV2Power] = 1400
	srv.InputRegisters[IRInverterOutput] = signedReg(4200)
	srv.InputRegisters[IRGridOutput] = signedReg(-250)
	srv.InputRegisters[IRBatteryPower] = signedReg(-1200)
	srv.InputRegisters[IRBatterySoC] = 72
	srv.InputRegisters[IRHeatsinkTemp] = 385
	for i := 0; i < CellCount; i++ {
		srv.InputRegisters[IRCellVoltageBase+i] = 3250
	}

	srv.HoldingRegisters[HRBatteryPowerMode] = 1
	srv.HoldingRegisters[HRBatteryPauseMode] = PauseCharge
	srv.HoldingRegisters[HRChargeTargetSoC3] = 100
	srv.HoldingRegisters[HRChargeTargetSoC4] = 90
	srv.HoldingRegisters[HRChargeTargetSoC5] = 70
	srv.HoldingRegisters[HRChargeTargetSoC6] = 50
	srv.HoldingRegisters[HRChargeTargetSoC7] = 30
	srv.HoldingRegisters[HRPauseSlotStart] = 530
	srv.HoldingRegisters[HRPauseSlotEnd] = 2330
	srv.HoldingRegisters[HRDischargeSlot3Start] = 900
	srv.HoldingRegisters[HRDischargeSlot7End] = 2300
	return srv
}

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := CreateClient("127.0.0.1", 28899, 1, 1*time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRefreshFull(t *testing.T) {
	startFakeInverter(t)
	c := testClient(t)

	snap, err := c.Refresh(true, false)
	require.NoError(t, err)

	assert.EqualValues(t, 4500, snap.SolarWatt)
	assert.EqualValues(t, 4200, snap.GenerationWatt)
	assert.EqualValues(t, -250, snap.GridExportWatt)
	assert.EqualValues(t, -1200, snap.BatteryWatt)
	assert.Equal(t, 72, snap.StateOfCharge)
	assert.InDelta(t, 38.5, snap.HeatsinkTempC, 0.01)
	assert.True(t, snap.EcoMode)
	assert.EqualValues(t, PauseCharge, snap.PauseMode)
	assert.False(t, snap.DischargeEnabled)
	assert.Equal(t, [5]int{100, 90, 70, 50, 30}, snap.ChargeTargetSoC)
	assert.Equal(t, 530, snap.PauseStart)
	assert.Equal(t, 2330, snap.PauseEnd)
	assert.Nil(t, snap.CellVoltages)
}

func TestRefreshWithCells(t *testing.T) {
	startFakeInverter(t)
	c := testClient(t)

	snap, err := c.Refresh(true, true)
	require.NoError(t, err)
	require.Len(t, snap.CellVoltages, CellCount)
	assert.InDelta(t, 3.25, snap.CellVoltages[0], 0.001)
}

func TestExecuteUpdatesCache(t *testing.T) {
	srv := startFakeInverter(t)
	c := testClient(t)

	_, err := c.Refresh(true, false)
	require.NoError(t, err)

	err = c.Execute([]RegisterWrite{
		{Register: HRBatteryPowerMode, Value: 0, Name: "battery_power_mode"},
		{Register: HRBatteryPauseMode, Value: PauseNone, Name: "battery_pause_mode"},
	}, 2*time.Second, 2)
	require.NoError(t, err)

	assert.EqualValues(t, 0, srv.HoldingRegisters[HRBatteryPowerMode])
	assert.EqualValues(t, PauseNone, srv.HoldingRegisters[HRBatteryPauseMode])

	// a partial refresh must observe the committed values from cache
	snap, err := c.Refresh(false, false)
	require.NoError(t, err)
	assert.False(t, snap.EcoMode)
	assert.EqualValues(t, PauseNone, snap.PauseMode)
}
