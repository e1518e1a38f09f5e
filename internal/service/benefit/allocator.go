package benefit

import (
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/shopspring/decimal"
)

// Allocate re-expresses the reimbursement total r as days at a rate, bounded
// by the per-day ceilings. a30 counts days that already had a meal benefit
// (Low ceiling), a46 days without one (High ceiling).
//
// Rules, in order:
//  1. r fits under Low on every day: spread evenly over all days.
//  2. r fits under High on the a46 days: those days take all of r.
//  3. a46 days saturate at High, the rest goes over a30 days capped at Low.
//
// Intermediates keep full precision; only the returned amounts are rounded.
func Allocate(a30, a46 int, r decimal.Decimal, caps benefit.Caps) benefit.Allocation {
	out := benefit.Allocation{
		TotalAmount:      round2(r),
		DaysWithMeal:     a30,
		DaysWithoutMeal:  a46,
		AmountAtHighRate: decimal.Zero,
		RemainderPerDay:  decimal.Zero,
		RemainderTotal:   decimal.Zero,
	}
	n := a30 + a46
	if n <= 0 || !r.IsPositive() {
		out.Step = benefit.AllocationNone
		return out
	}
	days := decimal.NewFromInt(int64(n))
	high46 := caps.High.Mul(decimal.NewFromInt(int64(a46)))

	switch {
	case r.LessThanOrEqual(caps.Low.Mul(days)):
		perDay := decimal.Min(r.Div(days), caps.Low)
		out.Step = benefit.AllocationEven
		out.RemainderDays = n
		out.RemainderPerDay = round2(perDay)
		out.RemainderTotal = round2(perDay.Mul(days))

	case a46 > 0 && r.LessThanOrEqual(high46):
		out.Step = benefit.AllocationHighOnly
		out.DaysAtHighRate = a46
		out.AmountAtHighRate = round2(r)

	default:
		out.Step = benefit.AllocationSaturated
		out.DaysAtHighRate = a46
		out.AmountAtHighRate = round2(high46)
		if a30 > 0 {
			lowDays := decimal.NewFromInt(int64(a30))
			perDay := decimal.Min(r.Sub(high46).Div(lowDays), caps.Low)
			out.RemainderDays = a30
			out.RemainderPerDay = round2(perDay)
			out.RemainderTotal = round2(perDay.Mul(lowDays))
		}
	}
	return out
}

// Allocated is the amount the allocation actually places on days.
func Allocated(a benefit.Allocation) decimal.Decimal {
	return a.AmountAtHighRate.Add(a.RemainderTotal)
}
