// Package events builds the broadcast payloads published on the actor
// system event stream after each dispatch tick.
package events

import (
	"givmon/internal/core/domain"
	"givmon/internal/core/service"
	"givmon/internal/sensorstore"
	"givmon/pkg/givmodbus"
)

// TelemetryRecordFromSnapshot folds an inverter snapshot and the
// running averages into the shared-store telemetry layout. Instant
// values come straight from the snapshot, averaged values from the
// smoothed tracker of each channel.
func TelemetryRecordFromSnapshot(snap *givmodbus.Snapshot, solar, grid, battery, generation *service.Smoother) sensorstore.TelemetryRecord {
	return sensorstore.TelemetryRecord{
		Timestamp:     uint32(snap.At.Unix()),
		Solar:         int(snap.SolarWatt),
		SolarAvg:      int(solar.Fast()),
		Grid:          int(snap.GridExportWatt),
		GridAvg:       int(grid.Fast()),
		Battery:       int(snap.BatteryWatt),
		BatteryAvg:    int(battery.Fast()),
		Generation:    int(snap.GenerationWatt),
		GenerationAvg: int(generation.Fast()),
		StateOfCharge: uint8(snap.StateOfCharge),
		Backup:        int(snap.BackupWatt),
	}
}

// TelemetryPublish pairs the stored record with the control outcome for
// MQTT consumers.
func TelemetryPublish(record sensorstore.TelemetryRecord, snap *givmodbus.Snapshot, targetSoC int, intent domain.ControlIntent) domain.TelemetryPublishEvent {
	return domain.TelemetryPublishEvent{
		Record:        record,
		HeatsinkTemp:  snap.HeatsinkTempC,
		Eco:           intent.Eco,
		Pause:         intent.Pause,
		StateOfCharge: snap.StateOfCharge,
		TargetSoC:     targetSoC,
		DelaySeconds:  intent.DelaySeconds,
	}
}
