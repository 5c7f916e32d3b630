package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"givmon/internal/core/domain"
	"givmon/internal/sensorstore"
	"givmon/pkg/givmodbus"
)

func mkTime(hh, mm int) time.Time {
	return time.Date(2026, 8, 30, hh, mm, 0, 0, time.Local)
}

func steadySmoother(v float64) *Smoother {
	s := NewSmoother()
	for i := 0; i < 100; i++ {
		s.Update(v)
	}
	return s
}

// shapedSmoother builds a smoother with specific instant, fast, slow
// and floor views for scenario tests.
func shapedSmoother(value, fast, slow, floor float64) *Smoother {
	return &Smoother{
		fastFactor:  DefaultFastFactor,
		slowFactor:  DefaultSlowFactor,
		decayFactor: DefaultDecayFactor,
		value:       value,
		fast:        fast,
		slow:        slow,
		floor:       floor,
		seeded:      true,
	}
}

func testSnapshot(now time.Time) *givmodbus.Snapshot {
	return &givmodbus.Snapshot{
		At:              now,
		SolarWatt:       2000,
		GenerationWatt:  1800,
		GridExportWatt:  0,
		BatteryWatt:     0,
		StateOfCharge:   70,
		EcoMode:         true,
		PauseMode:       givmodbus.PauseCharge,
		ChargeTargetSoC: [5]int{70, 70, 70, 50, 30},
		PauseStart:      530,
		PauseEnd:        2330,
		DischargeStart:  900,
		DischargeEnd:    2300,
	}
}

func testInput(now time.Time, snap *givmodbus.Snapshot) EngineInput {
	solar := steadySmoother(snap.SolarWatt)
	return EngineInput{
		Now:        now,
		Snapshot:   snap,
		Solar:      solar,
		Generation: steadySmoother(snap.GenerationWatt),
		Export:     steadySmoother(snap.GridExportWatt),
		Battery:    steadySmoother(snap.BatteryWatt),
	}
}

func testEngine() *Engine {
	return NewEngine(zap.NewNop())
}

func settledState() domain.ControllerState {
	st := domain.NewControllerState(120)
	st.ElapsedSeconds = 10
	return st
}

func TestAdjustHysteresisBand(t *testing.T) {
	// target 70: direction changes only at the +/-5 boundaries, and
	// inside the band an in-progress direction is cleared, never
	// reversed
	assert.Equal(t, domain.AdjustDischarge, nextAdjust(domain.AdjustHold, 1200, 76, 70))
	assert.Equal(t, domain.AdjustHold, nextAdjust(domain.AdjustHold, 1200, 74, 70))
	assert.Equal(t, domain.AdjustDischarge, nextAdjust(domain.AdjustDischarge, 1200, 74, 70))
	assert.Equal(t, domain.AdjustHold, nextAdjust(domain.AdjustHold, 1200, 70, 70))
	assert.Equal(t, domain.AdjustHold, nextAdjust(domain.AdjustCharge, 1200, 70, 70))
	assert.Equal(t, domain.AdjustCharge, nextAdjust(domain.AdjustCharge, 1200, 66, 70))
	assert.Equal(t, domain.AdjustHold, nextAdjust(domain.AdjustHold, 1200, 66, 70))
	assert.Equal(t, domain.AdjustCharge, nextAdjust(domain.AdjustHold, 1200, 64, 70))
}

func TestAdjustNeverFlipsWithoutHold(t *testing.T) {
	// ride SoC from target+6 down to target+4: a discharge must pass
	// through hold before any charge could start
	adjust := domain.AdjustHold
	for _, soc := range []int{76, 75, 74} {
		adjust = nextAdjust(adjust, 1200, soc, 70)
		assert.NotEqual(t, domain.AdjustCharge, adjust)
	}
	// still discharging inside the band
	assert.Equal(t, domain.AdjustDischarge, adjust)

	// only a hold observation clears it
	adjust = nextAdjust(adjust, 1200, 70, 70)
	assert.Equal(t, domain.AdjustHold, adjust)
}

func TestAdjustNoHysteresisAfter2200(t *testing.T) {
	assert.Equal(t, domain.AdjustDischarge, nextAdjust(domain.AdjustHold, 2215, 52, 50))
	assert.Equal(t, domain.AdjustHold, nextAdjust(domain.AdjustDischarge, 2215, 50, 50))
	assert.Equal(t, domain.AdjustHold, nextAdjust(domain.AdjustCharge, 2215, 40, 50))
}

func TestDischargeAboveBand(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)
	snap := testSnapshot(now)
	snap.StateOfCharge = 78

	st, intent := e.Step(settledState(), testInput(now, snap))

	assert.Equal(t, domain.AdjustDischarge, st.Adjust)
	assert.True(t, intent.ForceDischarge)
}

func TestEcoOffOnThreeTimescaleHighSolar(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)
	snap := testSnapshot(now)
	in := testInput(now, snap)
	in.Solar = shapedSmoother(6000, 4500, 3200, 4500)

	_, intent := e.Step(settledState(), in)

	assert.False(t, intent.Eco)
	// eco off means no charge pause
	assert.Equal(t, uint16(givmodbus.PauseNone), intent.Pause)
}

func TestEcoStaysOnWithoutSlowConfirmation(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)
	snap := testSnapshot(now)
	in := testInput(now, snap)
	// instant spike without the slow average catching up
	in.Solar = shapedSmoother(6000, 4500, 2500, 4500)

	_, intent := e.Step(settledState(), in)

	assert.True(t, intent.Eco)
}

func TestPastDischargeWindowBeatsLowSolar(t *testing.T) {
	// telemetry satisfying both the past-window rule and the low-solar
	// rule must take the earlier rule's outcome (eco on either way
	// here, so check via the rule name)
	sched := testSchedule()
	ctx := &ecoContext{
		hhmm:   2310,
		active: true,
		sched:  sched,
		adjust: domain.AdjustHold,
		eco:    false,
		solar:  shapedSmoother(500, 800, 600, 1000),
		gen:    steadySmoother(0),
		export: steadySmoother(0),
		want:   false,
		delay:  300,
	}
	rule := ctx.apply()

	assert.Equal(t, "past-discharge-window", rule)
	assert.True(t, ctx.want)
	// the low-solar rule never ran, so the delay cap stayed put
	assert.Equal(t, 300.0, ctx.delay)
}

func TestOvernightLatchIdle(t *testing.T) {
	e := testEngine()
	now := mkTime(23, 45)
	snap := testSnapshot(now)
	snap.BatteryWatt = 3

	st, intent := e.Step(settledState(), testInput(now, snap))

	assert.Equal(t, domain.LatchIdle, st.NightIdle)
	assert.False(t, intent.Eco)

	// latched: a later burst of battery activity does not change it
	snap.BatteryWatt = 800
	st2, intent2 := e.Step(st, testInput(now, snap))
	assert.Equal(t, domain.LatchIdle, st2.NightIdle)
	assert.False(t, intent2.Eco)
}

func TestOvernightLatchActive(t *testing.T) {
	e := testEngine()
	now := mkTime(23, 45)
	snap := testSnapshot(now)
	snap.BatteryWatt = 400
	snap.EcoMode = false

	st, intent := e.Step(settledState(), testInput(now, snap))

	assert.Equal(t, domain.LatchActive, st.NightIdle)
	assert.True(t, intent.Eco)
}

func TestLatchResetsInTheMorning(t *testing.T) {
	st := settledState()
	st.NightIdle = domain.LatchIdle

	e := testEngine()
	now := mkTime(6, 0)
	snap := testSnapshot(now)

	st2, _ := e.Step(st, testInput(now, snap))
	assert.Equal(t, domain.LatchUnset, st2.NightIdle)
}

func TestMidnightDeadZoneKeepsEco(t *testing.T) {
	e := testEngine()
	now := mkTime(0, 30)

	snap := testSnapshot(now)
	snap.EcoMode = false
	_, intent := e.Step(settledState(), testInput(now, snap))
	assert.False(t, intent.Eco)

	snap.EcoMode = true
	_, intent = e.Step(settledState(), testInput(now, snap))
	assert.True(t, intent.Eco)
}

func TestEVOverridePausesDischarge(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)
	snap := testSnapshot(now)
	snap.StateOfCharge = 78 // would otherwise force discharge

	in := testInput(now, snap)
	in.EV = sensorstore.EVChargerRecord{
		Timestamp: uint32(now.Unix() - 30),
		Status:    sensorstore.EVStatusCharging,
		Mode:      sensorstore.EVModeEcoPlus,
	}

	st, intent := e.Step(settledState(), in)

	assert.Equal(t, uint16(givmodbus.PauseDischarge), intent.Pause)
	assert.LessOrEqual(t, intent.DelaySeconds, 30.0)
	assert.Equal(t, domain.AdjustHold, st.Adjust)
	assert.False(t, intent.ForceDischarge)
}

func TestDispatchSlotOverride(t *testing.T) {
	e := testEngine()
	now := mkTime(14, 10)
	snap := testSnapshot(now)
	snap.SolarWatt = 500
	snap.StateOfCharge = 78

	in := testInput(now, snap)
	in.Solar = steadySmoother(500)
	in.Tariff = sensorstore.TariffRecord{
		Timestamp: uint32(now.Unix() - 60),
		Count:     1,
		Slots:     [3]sensorstore.SlotRange{{Start: 28, End: 30}}, // 14:00-15:00
	}

	st, intent := e.Step(settledState(), in)

	assert.Equal(t, 30.0, intent.DelaySeconds)
	assert.Equal(t, domain.AdjustHold, st.Adjust)
	assert.False(t, intent.ForceDischarge)
}

func TestPendingDispatchCapsDelay(t *testing.T) {
	e := testEngine()
	now := mkTime(10, 0)
	snap := testSnapshot(now)
	snap.SolarWatt = 100

	in := testInput(now, snap)
	in.Solar = steadySmoother(100)
	in.Tariff = sensorstore.TariffRecord{
		Timestamp: uint32(now.Unix() - 60),
		Count:     1,
		Slots:     [3]sensorstore.SlotRange{{Start: 30, End: 32}}, // later today
	}

	_, intent := e.Step(settledState(), in)

	assert.Equal(t, 60.0, intent.DelaySeconds)
}

func TestAdaptiveDelayShape(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)

	// near-zero solar polls about every five minutes
	snap := testSnapshot(now)
	snap.SolarWatt = 0
	in := testInput(now, snap)
	in.Solar = steadySmoother(0)
	_, intent := e.Step(settledState(), in)
	assert.InDelta(t, 300, intent.DelaySeconds, 1)

	// high solar polls at the floor
	snap = testSnapshot(now)
	snap.SolarWatt = 5200
	in = testInput(now, snap)
	in.Solar = shapedSmoother(5200, 5100, 5000, 5100)
	_, intent = e.Step(settledState(), in)
	assert.Equal(t, 30.0, intent.DelaySeconds)
}

func TestUnsettledLoopUsesShortDelay(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)
	snap := testSnapshot(now)
	snap.SolarWatt = 0
	in := testInput(now, snap)
	in.Solar = steadySmoother(0)

	st := domain.NewControllerState(120)
	_, intent := e.Step(st, in)

	assert.Equal(t, 30.0, intent.DelaySeconds)
}

func TestNearTargetAcceleratesPolling(t *testing.T) {
	e := testEngine()
	now := mkTime(12, 0)
	snap := testSnapshot(now)
	snap.SolarWatt = 0
	snap.StateOfCharge = 62 // target 70, charging, 8 away: no cap
	in := testInput(now, snap)
	in.Solar = steadySmoother(0)

	st := settledState()
	st.Adjust = domain.AdjustCharge
	_, intent := e.Step(st, in)
	assert.InDelta(t, 300, intent.DelaySeconds, 1)

	snap.StateOfCharge = 69 // within 2 of target while charging
	st.Adjust = domain.AdjustCharge
	_, intent = e.Step(st, testInput(now, snap))
	assert.Equal(t, 60.0, intent.DelaySeconds)
}

func TestPauseBaselineNeedsSolar(t *testing.T) {
	e := testEngine()
	now := mkTime(7, 0)
	snap := testSnapshot(now)
	snap.SolarWatt = 0

	// winter morning: no solar yet, do not bother pausing charge
	in := testInput(now, snap)
	in.Solar = steadySmoother(0)
	_, intent := e.Step(settledState(), in)
	assert.Equal(t, uint16(givmodbus.PauseNone), intent.Pause)

	// once the slow average wakes up, pause charging again
	in = testInput(now, snap)
	in.Solar = shapedSmoother(400, 350, 200, 350)
	_, intent = e.Step(settledState(), in)
	assert.Equal(t, uint16(givmodbus.PauseCharge), intent.Pause)
}

func TestInactiveWindowForcesEcoOn(t *testing.T) {
	e := testEngine()
	now := mkTime(4, 0)
	snap := testSnapshot(now)
	snap.EcoMode = false

	_, intent := e.Step(settledState(), testInput(now, snap))
	assert.True(t, intent.Eco)
	assert.False(t, intent.ForceDischarge)
}
