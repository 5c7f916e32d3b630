package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"givmon/internal/sensorstore"
)

func window(t *testing.T, start, end string) DispatchWindow {
	t.Helper()
	s, err := time.ParseInLocation("2006-01-02T15:04", start, time.Local)
	require.NoError(t, err)
	e, err := time.ParseInLocation("2006-01-02T15:04", end, time.Local)
	require.NoError(t, err)
	return DispatchWindow{Start: s, End: e}
}

func TestSanitizeSplitsOvernightWindow(t *testing.T) {
	// 22:30 into the cheap rate keeps only the evening part; windows
	// wholly inside the cheap rate vanish; one straddling its end keeps
	// the morning part
	windows := []DispatchWindow{
		window(t, "2026-11-16T22:30", "2026-11-17T01:00"),
		window(t, "2026-11-17T04:30", "2026-11-17T05:00"),
		window(t, "2026-11-17T05:00", "2026-11-17T06:30"),
	}
	out := SanitizeDispatches(windows)

	assert.Equal(t, []sensorstore.SlotRange{
		{Start: 45, End: 47},
		{Start: 11, End: 13},
	}, out)
}

func TestSanitizeMergesAdjacent(t *testing.T) {
	windows := []DispatchWindow{
		window(t, "2026-11-17T05:00", "2026-11-17T06:00"),
		window(t, "2026-11-17T06:30", "2026-11-17T06:45"),
		window(t, "2026-11-17T06:45", "2026-11-17T07:00"),
		window(t, "2026-11-17T07:00", "2026-11-17T07:30"),
	}
	out := SanitizeDispatches(windows)

	assert.Equal(t, []sensorstore.SlotRange{
		{Start: 11, End: 12},
		{Start: 13, End: 15},
	}, out)
}

func TestSanitizeRounding(t *testing.T) {
	// starts round down except very close to the next boundary; ends
	// round up except just past one
	out := SanitizeDispatches([]DispatchWindow{
		window(t, "2026-11-17T11:55", "2026-11-17T13:02"),
	})
	assert.Equal(t, []sensorstore.SlotRange{{Start: 24, End: 26}}, out)

	out = SanitizeDispatches([]DispatchWindow{
		window(t, "2026-11-17T11:25", "2026-11-17T12:35"),
	})
	assert.Equal(t, []sensorstore.SlotRange{{Start: 23, End: 26}}, out)
}

func TestSanitizeDropsEmptyWindow(t *testing.T) {
	out := SanitizeDispatches([]DispatchWindow{
		window(t, "2026-11-17T12:01", "2026-11-17T12:03"),
	})
	assert.Empty(t, out)
}

func TestBuildTariffRecordCapsAtThree(t *testing.T) {
	now := time.Unix(1756500000, 0)
	windows := []DispatchWindow{
		window(t, "2026-11-17T08:00", "2026-11-17T08:30"),
		window(t, "2026-11-17T10:00", "2026-11-17T10:30"),
		window(t, "2026-11-17T12:00", "2026-11-17T12:30"),
		window(t, "2026-11-17T14:00", "2026-11-17T14:30"),
	}
	rec := BuildTariffRecord(now, windows)

	assert.Equal(t, uint32(now.Unix()), rec.Timestamp)
	assert.Equal(t, uint8(4), rec.Pending)
	assert.Equal(t, uint8(3), rec.Count)
	assert.Equal(t, sensorstore.SlotRange{Start: 16, End: 17}, rec.Slots[0])
	assert.Equal(t, sensorstore.SlotRange{Start: 20, End: 21}, rec.Slots[1])
	assert.Equal(t, sensorstore.SlotRange{Start: 24, End: 25}, rec.Slots[2])
}
