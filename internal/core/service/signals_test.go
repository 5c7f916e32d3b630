package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"givmon/internal/sensorstore"
)

func TestSlotIndex(t *testing.T) {
	// half-hour slotting of hhmm times: minutes 00-29 truncate,
	// 30-59 round up
	assert.Equal(t, 0, SlotIndex(0))
	assert.Equal(t, 0, SlotIndex(29))
	assert.Equal(t, 1, SlotIndex(30))
	assert.Equal(t, 1, SlotIndex(59))
	assert.Equal(t, 2, SlotIndex(100))
	assert.Equal(t, 3, SlotIndex(130))
	assert.Equal(t, 25, SlotIndex(1234))
	assert.Equal(t, 47, SlotIndex(2330))
}

func testGate() SignalGate {
	return NewSignalGate(zap.NewNop())
}

func TestEVChargingActive(t *testing.T) {
	g := testGate()
	now := time.Unix(1756500000, 0)
	fresh := uint32(now.Unix() - 60)

	ev := sensorstore.EVChargerRecord{
		Timestamp: fresh,
		Status:    sensorstore.EVStatusCharging,
		Mode:      sensorstore.EVModeEcoPlus,
	}
	assert.True(t, g.EVChargingActive(now, ev))

	ev.Mode = sensorstore.EVModeFast
	assert.False(t, g.EVChargingActive(now, ev))

	ev.Mode = sensorstore.EVModeEcoPlus
	ev.Status = sensorstore.EVStatusPlugged
	assert.False(t, g.EVChargingActive(now, ev))
}

func TestEVChargingStale(t *testing.T) {
	g := testGate()
	now := time.Unix(1756500000, 0)

	ev := sensorstore.EVChargerRecord{
		Timestamp: uint32(now.Unix() - 1000),
		Status:    sensorstore.EVStatusCharging,
		Mode:      sensorstore.EVModeEcoPlus,
	}
	assert.False(t, g.EVChargingActive(now, ev))
}

func TestDispatchSlotActive(t *testing.T) {
	g := testGate()
	now := time.Unix(1756500000, 0)
	rec := sensorstore.TariffRecord{
		Timestamp: uint32(now.Unix() - 10),
		Count:     2,
		Slots: [3]sensorstore.SlotRange{
			{Start: 24, End: 26}, // 12:00-13:00
			{Start: 36, End: 38}, // 18:00-19:00
			{Start: 40, End: 42}, // only valid if count were 3
		},
	}

	assert.True(t, g.DispatchSlotActive(now, 1200, rec))
	assert.True(t, g.DispatchSlotActive(now, 1259, rec))
	assert.False(t, g.DispatchSlotActive(now, 1300, rec))
	assert.True(t, g.DispatchSlotActive(now, 1815, rec))

	// the third range is beyond the stored count
	assert.False(t, g.DispatchSlotActive(now, 2015, rec))

	assert.Equal(t, 2, g.DispatchPending(now, rec))
}

func TestDispatchStaleRecordIgnored(t *testing.T) {
	g := testGate()
	now := time.Unix(1756500000, 0)
	rec := sensorstore.TariffRecord{
		Timestamp: uint32(now.Unix() - 4000),
		Count:     1,
		Slots:     [3]sensorstore.SlotRange{{Start: 0, End: 48}},
	}

	assert.False(t, g.DispatchSlotActive(now, 1200, rec))
	assert.Equal(t, 0, g.DispatchPending(now, rec))
}
