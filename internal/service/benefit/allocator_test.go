package benefit

import (
	"math/rand"
	"testing"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_SaturatesHighThenLow(t *testing.T) {
	a := Allocate(3, 2, dec("200"), benefit.DefaultCaps())

	assert.Equal(t, benefit.AllocationSaturated, a.Step)
	assert.Equal(t, 2, a.DaysAtHighRate)
	assert.True(t, a.AmountAtHighRate.Equal(dec("92.96")), "high %s", a.AmountAtHighRate)
	assert.Equal(t, 3, a.RemainderDays)
	assert.True(t, a.RemainderPerDay.Equal(dec("30.98")), "per day %s", a.RemainderPerDay)
	assert.True(t, a.RemainderTotal.Equal(dec("92.94")), "remainder %s", a.RemainderTotal)
}

func TestAllocate_EvenSpreadUnderLowCeiling(t *testing.T) {
	a := Allocate(2, 2, dec("100"), benefit.DefaultCaps())

	assert.Equal(t, benefit.AllocationEven, a.Step)
	assert.Equal(t, 0, a.DaysAtHighRate)
	assert.Equal(t, 4, a.RemainderDays)
	assert.True(t, a.RemainderPerDay.Equal(dec("25")))
	assert.True(t, a.RemainderTotal.Equal(dec("100")))
}

func TestAllocate_HighOnly(t *testing.T) {
	// 1 day at the low ceiling holds 30.98 at most; 2 high days hold 92.96.
	a := Allocate(0, 2, dec("80"), benefit.DefaultCaps())

	assert.Equal(t, benefit.AllocationHighOnly, a.Step)
	assert.Equal(t, 2, a.DaysAtHighRate)
	assert.True(t, a.AmountAtHighRate.Equal(dec("80")))
	assert.Equal(t, 0, a.RemainderDays)
	assert.True(t, Allocated(a).Equal(dec("80")))
}

func TestAllocate_NoDaysOrNoAmount(t *testing.T) {
	a := Allocate(0, 0, dec("50"), benefit.DefaultCaps())
	assert.Equal(t, benefit.AllocationNone, a.Step)
	assert.True(t, Allocated(a).IsZero())
	assert.True(t, a.TotalAmount.Equal(dec("50")))

	a = Allocate(3, 2, decimal.Zero, benefit.DefaultCaps())
	assert.Equal(t, benefit.AllocationNone, a.Step)
	assert.True(t, Allocated(a).IsZero())
}

func TestAllocate_RoundsOnlyOutputs(t *testing.T) {
	a := Allocate(3, 0, dec("10"), benefit.DefaultCaps())

	assert.Equal(t, benefit.AllocationEven, a.Step)
	assert.True(t, a.RemainderPerDay.Equal(dec("3.33")))
	// 10/3 × 3 keeps full precision before rounding
	assert.True(t, a.RemainderTotal.Equal(dec("10")))
}

func TestAllocate_ConservationAndCeilings(t *testing.T) {
	caps := benefit.DefaultCaps()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		a30 := rng.Intn(12)
		a46 := rng.Intn(12)
		r := decimal.New(int64(rng.Intn(120000)), -2)

		a := Allocate(a30, a46, r, caps)

		allocated := Allocated(a)
		require.True(t, allocated.LessThanOrEqual(r.Add(dec("0.01"))), "case %d: allocated %s above %s", i, allocated, r)
		require.True(t, a.RemainderPerDay.LessThanOrEqual(caps.Low), "case %d: low ceiling", i)
		if a.DaysAtHighRate > 0 {
			perHighDay := a.AmountAtHighRate.Div(decimal.NewFromInt(int64(a.DaysAtHighRate)))
			require.True(t, perHighDay.LessThanOrEqual(caps.High), "case %d: high ceiling", i)
		}

		n := decimal.NewFromInt(int64(a30 + a46))
		capacity := caps.High.Mul(decimal.NewFromInt(int64(a46))).Add(caps.Low.Mul(decimal.NewFromInt(int64(a30))))
		if a30+a46 > 0 && r.LessThanOrEqual(caps.Low.Mul(n)) || (a46 > 0 && r.LessThanOrEqual(caps.High.Mul(decimal.NewFromInt(int64(a46))))) {
			// whatever fits is placed in full, to the cent
			require.True(t, allocated.Sub(r).Abs().LessThanOrEqual(dec("0.01")), "case %d: %s vs %s", i, allocated, r)
		} else if r.GreaterThan(capacity) {
			require.True(t, allocated.LessThanOrEqual(capacity.Add(dec("0.01"))), "case %d", i)
		}
	}
}
