package leave

import "github.com/shopspring/decimal"

// =============================================================================
// CALENDAR ARITHMETIC - Chargeable days for a date range
// =============================================================================

var halfDay = decimal.NewFromFloat(0.5)

// CalculateDays returns the number of chargeable days for an inclusive date
// range. Only weekdays count; weekend days contribute zero.
//
// Half-day requests must span exactly one calendar day and charge 0.5.
// A half-day on a weekend charges nothing, consistent with the weekday rule.
//
// A zero result is valid here (weekend-only range); the Engine rejects
// zero-day submissions before touching the ledger.
func CalculateDays(start, end Date, isHalfDay bool) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, ErrInvalidDateRange
	}

	if isHalfDay {
		if !start.Equal(end) {
			return decimal.Zero, ErrInvalidHalfDayRange
		}
		if start.IsWeekend() {
			return decimal.Zero, nil
		}
		return halfDay, nil
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if d.IsWorkday() {
			days++
		}
	}
	return decimal.NewFromInt(int64(days)), nil
}
