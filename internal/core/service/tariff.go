package service

import (
	"sort"
	"time"

	"givmon/internal/sensorstore"
)

// Half-hour slot bounds of the standard overnight cheap rate. Dispatch
// windows inside it carry no extra information, so the sanitizer strips
// them and keeps only the daytime bonus slots.
const (
	cheapRateEndSlot   = 11 // 05:30
	cheapRateStartSlot = 47 // 23:30
)

// DispatchWindow is a raw planned dispatch from the tariff API, in
// local time.
type DispatchWindow struct {
	Start time.Time
	End   time.Time
}

// windowStartSlot rounds a window start down to a half-hour slot,
// except within five minutes of the next boundary. A 23:55 start rounds
// up to 48 rather than wrapping.
func windowStartSlot(t time.Time) int {
	s := t.Hour() * 2
	switch {
	case t.Minute() >= 55:
		s += 2
	case t.Minute() >= 25:
		s++
	}
	return s
}

// windowEndSlot rounds a window end up, unless it is just past the
// boundary.
func windowEndSlot(t time.Time) int {
	e := t.Hour() * 2
	switch {
	case t.Minute() >= 35:
		e += 2
	case t.Minute() >= 5:
		e++
	}
	return e
}

// SanitizeDispatches reduces raw dispatch windows to sorted, merged
// half-hour ranges lying outside the overnight cheap rate. Windows that
// round to nothing, or fall entirely inside the cheap rate, disappear;
// a window straddling 23:30 into the next morning splits into its
// evening and morning daytime parts.
func SanitizeDispatches(windows []DispatchWindow) []sensorstore.SlotRange {
	sorted := make([]DispatchWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var ranges []sensorstore.SlotRange
	for _, w := range sorted {
		a := windowStartSlot(w.Start)
		b := windowEndSlot(w.End)
		switch {
		case a == b:
			// very short dispatch rounded to empty
		case cheapRateEndSlot <= a && a < cheapRateStartSlot:
			switch {
			case cheapRateEndSlot < b && b <= cheapRateStartSlot && a < b:
				ranges = append(ranges, sensorstore.SlotRange{Start: uint8(a), End: uint8(b)})
			case cheapRateEndSlot < b && b <= cheapRateStartSlot:
				// wraps through the cheap rate into the next morning
				ranges = append(ranges,
					sensorstore.SlotRange{Start: uint8(a), End: cheapRateStartSlot},
					sensorstore.SlotRange{Start: cheapRateEndSlot, End: uint8(b)})
			default:
				ranges = append(ranges, sensorstore.SlotRange{Start: uint8(a), End: cheapRateStartSlot})
			}
		case cheapRateEndSlot < b && b <= cheapRateStartSlot:
			ranges = append(ranges, sensorstore.SlotRange{Start: cheapRateEndSlot, End: uint8(b)})
		default:
			// entirely within the cheap rate
		}
	}

	// merge touching or overlapping neighbours
	var merged []sensorstore.SlotRange
	for _, r := range ranges {
		if n := len(merged); n > 0 && merged[n-1].Start <= r.Start && r.Start <= merged[n-1].End {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// BuildTariffRecord folds raw dispatches into the shared-store record:
// the raw pending count plus up to three sanitized daytime ranges.
func BuildTariffRecord(now time.Time, windows []DispatchWindow) sensorstore.TariffRecord {
	ranges := SanitizeDispatches(windows)
	rec := sensorstore.TariffRecord{
		Timestamp: uint32(now.Unix()),
		Pending:   uint8(len(windows)),
	}
	if len(ranges) > 3 {
		ranges = ranges[:3]
	}
	rec.Count = uint8(len(ranges))
	copy(rec.Slots[:], ranges)
	return rec
}
