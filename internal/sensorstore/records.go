package sensorstore

import (
	"encoding/binary"

	"givmon/internal/util"
)

// EV charger operating modes and car states as reported by the charge
// point poller.
const (
	EVModeFast    = 1
	EVModeEco     = 2
	EVModeEcoPlus = 3
	EVModeStopped = 4

	EVStatusFault     = -1
	EVStatusUnplugged = 0
	EVStatusPlugged   = 1
	EVStatusCharging  = 2
)

// EVChargerRecord mirrors the charge point's CT-clamp readings and state.
type EVChargerRecord struct {
	Timestamp uint32
	Mode      int8
	Status    int8
	CarWatt   int16
	GridWatt  int16
	HeatPumpWatt int16
	Lock      int8
}

func (EVChargerRecord) RecordOffset() int { return OffsetEVCharger }

func (r EVChargerRecord) Encode(b []byte) error {
	putTimestamp(b, r.Timestamp)
	b[4] = byte(r.Mode)
	b[5] = byte(r.Status)
	binary.BigEndian.PutUint16(b[6:8], uint16(r.CarWatt))
	binary.BigEndian.PutUint16(b[8:10], uint16(r.GridWatt))
	binary.BigEndian.PutUint16(b[10:12], uint16(r.HeatPumpWatt))
	b[12] = byte(r.Lock)
	return nil
}

func (r *EVChargerRecord) Decode(b []byte) {
	r.Timestamp = timestamp(b)
	r.Mode = int8(b[4])
	r.Status = int8(b[5])
	r.CarWatt = int16(binary.BigEndian.Uint16(b[6:8]))
	r.GridWatt = int16(binary.BigEndian.Uint16(b[8:10]))
	r.HeatPumpWatt = int16(binary.BigEndian.Uint16(b[10:12]))
	r.Lock = int8(b[12])
}

// TelemetryRecord is the dispatch controller's own output slot: instant and
// fast-averaged powers plus state of charge. Powers are watts; grid and
// battery follow the snapshot sign conventions.
type TelemetryRecord struct {
	Timestamp     uint32
	Solar         int
	SolarAvg      int
	Grid          int
	GridAvg       int
	Battery       int
	BatteryAvg    int
	StateOfCharge uint8
	Generation    int
	GenerationAvg int
	Backup        int
}

func (TelemetryRecord) RecordOffset() int { return OffsetTelemetry }

func (r TelemetryRecord) Encode(b []byte) error {
	putTimestamp(b, r.Timestamp)
	fields := []struct {
		name string
		v    int
		off  int
	}{
		{"solar", r.Solar, 4},
		{"solar_avg", r.SolarAvg, 6},
		{"grid", r.Grid, 8},
		{"grid_avg", r.GridAvg, 10},
		{"battery", r.Battery, 12},
		{"battery_avg", r.BatteryAvg, 14},
		{"generation", r.Generation, 17},
		{"generation_avg", r.GenerationAvg, 19},
		{"backup", r.Backup, 21},
	}
	for _, f := range fields {
		v, err := checkInt16(f.name, f.v)
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint16(b[f.off:f.off+2], uint16(v))
	}
	b[16] = r.StateOfCharge
	return nil
}

func (r *TelemetryRecord) Decode(b []byte) {
	r.Timestamp = timestamp(b)
	r.Solar = int(int16(binary.BigEndian.Uint16(b[4:6])))
	r.SolarAvg = int(int16(binary.BigEndian.Uint16(b[6:8])))
	r.Grid = int(int16(binary.BigEndian.Uint16(b[8:10])))
	r.GridAvg = int(int16(binary.BigEndian.Uint16(b[10:12])))
	r.Battery = int(int16(binary.BigEndian.Uint16(b[12:14])))
	r.BatteryAvg = int(int16(binary.BigEndian.Uint16(b[14:16])))
	r.StateOfCharge = b[16]
	r.Generation = int(int16(binary.BigEndian.Uint16(b[17:19])))
	r.GenerationAvg = int(int16(binary.BigEndian.Uint16(b[19:21])))
	r.Backup = int(int16(binary.BigEndian.Uint16(b[21:23])))
}

// SlotRange is a half-open dispatch-window range in half-hour units of
// local time: 0 = 00:00, 3 = 01:30, 47 = 23:30.
type SlotRange struct {
	Start uint8
	End   uint8
}

// TariffRecord summarises pending smart-tariff dispatch windows: the raw
// pending count from the supplier and up to three sanitised slot ranges
// (those outside the standard cheap rate).
type TariffRecord struct {
	Timestamp uint32
	Pending   uint8
	Count     uint8
	Slots     [3]SlotRange
}

func (TariffRecord) RecordOffset() int { return OffsetTariff }

func (r TariffRecord) Encode(b []byte) error {
	putTimestamp(b, r.Timestamp)
	b[4] = r.Pending
	b[5] = r.Count
	for i, s := range r.Slots {
		b[6+2*i] = s.Start
		b[7+2*i] = s.End
	}
	return nil
}

func (r *TariffRecord) Decode(b []byte) {
	r.Timestamp = timestamp(b)
	r.Pending = b[4]
	r.Count = b[5]
	for i := range r.Slots {
		r.Slots[i] = SlotRange{Start: b[6+2*i], End: b[7+2*i]}
	}
}

// Room temperatures are stored as a signed offset from 20.0 degrees in
// tenths, to keep records integer-only.
func EncodeRoomTemp(t float64) int8 {
	return int8((t - 20.0) * 10.0)
}

func DecodeRoomTemp(v int8) float64 {
	return 20.0 + 0.1*float64(v)
}

// Heat pump weather curve endpoints: leaving-water target falls linearly
// from 45 degrees at -2 outside to 28 degrees at +15.
const (
	weatherCurveX1 = -2
	weatherCurveY1 = 45
	weatherCurveX2 = 15
	weatherCurveY2 = 28
)

// HeatPumpRecord carries the heat pump poller's state.
type HeatPumpRecord struct {
	Timestamp   uint32
	OutdoorTemp int8
	Room        int8 // offset from 20.0 in tenths
	Target      int8 // offset from 20.0 in tenths
	HotWater    uint8
	FlowTemp    uint8
	Offset      int8
}

func (HeatPumpRecord) RecordOffset() int { return OffsetHeatPump }

func (r HeatPumpRecord) Encode(b []byte) error {
	putTimestamp(b, r.Timestamp)
	b[4] = byte(r.OutdoorTemp)
	b[5] = byte(r.Room)
	b[6] = byte(r.Target)
	b[7] = r.HotWater
	b[8] = r.FlowTemp
	b[9] = byte(r.Offset)
	return nil
}

func (r *HeatPumpRecord) Decode(b []byte) {
	r.Timestamp = timestamp(b)
	r.OutdoorTemp = int8(b[4])
	r.Room = int8(b[5])
	r.Target = int8(b[6])
	r.HotWater = b[7]
	r.FlowTemp = b[8]
	r.Offset = int8(b[9])
}

func (r HeatPumpRecord) RoomTemp() float64 {
	return DecodeRoomTemp(r.Room)
}

func (r HeatPumpRecord) TargetTemp() float64 {
	return DecodeRoomTemp(r.Target)
}

// TargetFlowTemp computes the weather-compensated leaving-water target.
func (r HeatPumpRecord) TargetFlowTemp() float64 {
	return util.ClampedLerp(float64(r.OutdoorTemp),
		weatherCurveX1, weatherCurveY1, weatherCurveX2, weatherCurveY2) + float64(r.Offset)
}

// CarBatteryRecord stores the car's state of charge, with both the
// vehicle's own report time and when the poller last checked the server.
type CarBatteryRecord struct {
	Timestamp     uint32
	StateOfCharge uint8
	CheckedAt     uint32
}

func (CarBatteryRecord) RecordOffset() int { return OffsetCarBattery }

func (r CarBatteryRecord) Encode(b []byte) error {
	putTimestamp(b, r.Timestamp)
	b[4] = r.StateOfCharge
	binary.BigEndian.PutUint32(b[5:9], r.CheckedAt)
	return nil
}

func (r *CarBatteryRecord) Decode(b []byte) {
	r.Timestamp = timestamp(b)
	r.StateOfCharge = b[4]
	r.CheckedAt = binary.BigEndian.Uint32(b[5:9])
}

// ForecastRecord stores seven daily greenness scores starting at the
// timestamped day.
type ForecastRecord struct {
	Timestamp uint32
	Scores    [7]uint8
}

func (ForecastRecord) RecordOffset() int { return OffsetForecast }

func (r ForecastRecord) Encode(b []byte) error {
	putTimestamp(b, r.Timestamp)
	copy(b[4:11], r.Scores[:])
	return nil
}

func (r *ForecastRecord) Decode(b []byte) {
	r.Timestamp = timestamp(b)
	copy(r.Scores[:], b[4:11])
}
