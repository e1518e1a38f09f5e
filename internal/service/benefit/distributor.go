package benefit

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/shopspring/decimal"
)

// Distribute spreads total hours across the days that have overtime,
// proportionally to each day's overtime. Days are taken in date order; every
// day but the last gets its share rounded to 2 decimals and the last day takes
// the remainder, so the converted hours always sum to exactly
// min(total, sum of overtime). No day is ever converted beyond its overtime.
func Distribute(daily map[time.Time]decimal.Decimal, total decimal.Decimal) []benefit.DistributionEntry {
	if !total.IsPositive() {
		return nil
	}

	dates := make([]time.Time, 0, len(daily))
	sum := decimal.Zero
	for d, hours := range daily {
		if !hours.IsPositive() {
			continue
		}
		dates = append(dates, d)
		sum = sum.Add(hours)
	}
	if len(dates) == 0 {
		return nil
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	actual := decimal.Min(total, sum)
	entries := make([]benefit.DistributionEntry, len(dates))
	assigned := decimal.Zero
	last := len(dates) - 1

	for i, d := range dates {
		original := daily[d]
		var converted decimal.Decimal
		if i == last {
			converted = actual.Sub(assigned)
		} else {
			converted = round2(actual.Mul(original).Div(sum))
		}
		converted = clamp(converted, decimal.Zero, original)
		assigned = assigned.Add(converted)
		entries[i] = benefit.DistributionEntry{Date: d, Original: original, Converted: converted}
	}

	// Clamping the last day can leave a residue when rounding pushed earlier
	// days the other way. Settle it backwards against remaining headroom.
	settle(entries, actual.Sub(assigned))

	for i := range entries {
		entries[i].Remaining = entries[i].Original.Sub(entries[i].Converted)
	}
	return entries
}

func settle(entries []benefit.DistributionEntry, diff decimal.Decimal) {
	for i := len(entries) - 1; i >= 0 && !diff.IsZero(); i-- {
		e := &entries[i]
		if diff.IsPositive() {
			move := decimal.Min(diff, e.Original.Sub(e.Converted))
			e.Converted = e.Converted.Add(move)
			diff = diff.Sub(move)
		} else {
			move := decimal.Min(diff.Neg(), e.Converted)
			e.Converted = e.Converted.Sub(move)
			diff = diff.Add(move)
		}
	}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// SumConverted totals the converted hours of a distribution.
func SumConverted(entries []benefit.DistributionEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Converted)
	}
	return total
}

// AutomaticConversionHours is the overtime above the monthly threshold, or
// zero when automatic conversion is not configured.
func AutomaticConversionHours(monthlyOvertime decimal.Decimal, threshold *decimal.Decimal) decimal.Decimal {
	if threshold == nil {
		return decimal.Zero
	}
	over := monthlyOvertime.Sub(*threshold)
	if over.IsNegative() {
		return decimal.Zero
	}
	return over
}
