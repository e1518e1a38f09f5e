package benefit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func march(day int) time.Time { return benefit.NewDate(2024, 3, day) }

func TestDistribute_ProportionalSplit(t *testing.T) {
	daily := map[time.Time]decimal.Decimal{
		march(1): dec("4"),
		march(2): dec("2"),
	}

	entries := Distribute(daily, dec("3"))

	require.Len(t, entries, 2)
	assert.Equal(t, march(1), entries[0].Date)
	assert.True(t, entries[0].Converted.Equal(dec("2")), "d1 %s", entries[0].Converted)
	assert.True(t, entries[0].Remaining.Equal(dec("2")))
	assert.Equal(t, march(2), entries[1].Date)
	assert.True(t, entries[1].Converted.Equal(dec("1")), "d2 %s", entries[1].Converted)
	assert.True(t, entries[1].Remaining.Equal(dec("1")))
}

func TestDistribute_Empty(t *testing.T) {
	daily := map[time.Time]decimal.Decimal{march(1): dec("4")}

	assert.Empty(t, Distribute(daily, decimal.Zero))
	assert.Empty(t, Distribute(daily, dec("-1")))
	assert.Empty(t, Distribute(nil, dec("3")))
	assert.Empty(t, Distribute(map[time.Time]decimal.Decimal{march(1): decimal.Zero}, dec("3")))
}

func TestDistribute_RequestAboveAvailableIsCapped(t *testing.T) {
	daily := map[time.Time]decimal.Decimal{
		march(1): dec("1.5"),
		march(2): dec("2"),
	}

	entries := Distribute(daily, dec("10"))

	require.Len(t, entries, 2)
	assert.True(t, entries[0].Converted.Equal(dec("1.5")))
	assert.True(t, entries[1].Converted.Equal(dec("2")))
	assert.True(t, SumConverted(entries).Equal(dec("3.5")))
}

func TestDistribute_LastDayAbsorbsRounding(t *testing.T) {
	daily := map[time.Time]decimal.Decimal{
		march(1): dec("1"),
		march(2): dec("1"),
		march(3): dec("1"),
	}

	entries := Distribute(daily, dec("1"))

	require.Len(t, entries, 3)
	assert.True(t, entries[0].Converted.Equal(dec("0.33")))
	assert.True(t, entries[1].Converted.Equal(dec("0.33")))
	assert.True(t, entries[2].Converted.Equal(dec("0.34")))
	assert.True(t, SumConverted(entries).Equal(dec("1")))
}

func TestDistribute_LastDayCapIsSettledOnEarlierDays(t *testing.T) {
	// Rounding the first days down leaves more than the tiny last day can hold.
	daily := map[time.Time]decimal.Decimal{
		march(1): dec("3.333"),
		march(2): dec("3.333"),
		march(3): dec("0.004"),
	}
	total := dec("6.67")

	entries := Distribute(daily, total)

	require.Len(t, entries, 3)
	assert.True(t, SumConverted(entries).Equal(total), "sum %s", SumConverted(entries))
	for _, e := range entries {
		assert.True(t, e.Converted.LessThanOrEqual(e.Original), "%s: %s > %s", e.Date, e.Converted, e.Original)
		assert.False(t, e.Converted.IsNegative())
	}
}

func TestDistribute_ExactnessProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		daily := make(map[time.Time]decimal.Decimal)
		sum := decimal.Zero
		days := 1 + rng.Intn(20)
		for d := 1; d <= days; d++ {
			hours := decimal.New(int64(rng.Intn(600)), -2)
			daily[march(d)] = hours
			sum = sum.Add(hours)
		}
		total := decimal.New(int64(rng.Intn(4000)), -2)

		entries := Distribute(daily, total)

		if !total.IsPositive() || !sum.IsPositive() {
			assert.Empty(t, entries)
			continue
		}
		want := decimal.Min(total, sum)
		require.True(t, SumConverted(entries).Equal(want), "case %d: sum %s want %s", i, SumConverted(entries), want)
		for _, e := range entries {
			require.True(t, e.Converted.LessThanOrEqual(e.Original), "case %d: over cap", i)
			require.False(t, e.Converted.IsNegative(), "case %d: negative", i)
			require.True(t, e.Remaining.Equal(e.Original.Sub(e.Converted)))
		}
		for j := 1; j < len(entries); j++ {
			require.True(t, entries[j-1].Date.Before(entries[j].Date))
		}
	}
}

func TestAutomaticConversionHours(t *testing.T) {
	assert.True(t, AutomaticConversionHours(dec("12"), nil).IsZero())
	assert.True(t, AutomaticConversionHours(dec("12"), decPtr("10")).Equal(dec("2")))
	assert.True(t, AutomaticConversionHours(dec("8"), decPtr("10")).IsZero())
}
