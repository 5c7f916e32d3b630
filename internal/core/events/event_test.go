package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"givmon/internal/core/service"
	"givmon/pkg/givmodbus"
)

// seeds the tracker so the fast average diverges from the instant value
func shapedSmoother(seed, next float64) *service.Smoother {
	s := service.NewSmootherWithFactors(0.5, 0.1, 0.05)
	s.Update(seed)
	s.Update(next)
	return s
}

func TestTelemetryRecordStoresFastAverages(t *testing.T) {
	snap := &givmodbus.Snapshot{
		At:             time.Unix(1700000000, 0),
		SolarWatt:      4000,
		GridExportWatt: 800,
		BatteryWatt:    -600,
		GenerationWatt: 3400,
		BackupWatt:     120,
		StateOfCharge:  64,
	}

	solar := shapedSmoother(2000, 4000)
	grid := shapedSmoother(0, 800)
	battery := shapedSmoother(-200, -600)
	generation := shapedSmoother(3000, 3400)

	rec := TelemetryRecordFromSnapshot(snap, solar, grid, battery, generation)

	assert.EqualValues(t, 1700000000, rec.Timestamp)
	assert.Equal(t, 4000, rec.Solar)
	assert.Equal(t, 3000, rec.SolarAvg)
	assert.Equal(t, 800, rec.Grid)
	assert.Equal(t, 400, rec.GridAvg)
	assert.Equal(t, -600, rec.Battery)
	assert.Equal(t, -400, rec.BatteryAvg)
	assert.Equal(t, 3400, rec.Generation)
	assert.Equal(t, 3200, rec.GenerationAvg)
	assert.EqualValues(t, 64, rec.StateOfCharge)
	assert.Equal(t, 120, rec.Backup)
}
