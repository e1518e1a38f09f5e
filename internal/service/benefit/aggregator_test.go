package benefit

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/company"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-benefits-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeSources(s *memory.Store) Sources {
	return Sources{
		Employees:   s.Employees(),
		Policies:    s.Policies(),
		Attendance:  s.Attendance(),
		Conversions: s.Conversions(),
		Holidays:    s.Holidays(),
	}
}

// seedMarch builds one employee month exercising every bucket:
//
//	Sat 02  08-13  business trip, 5h
//	Mon 04  07-19  11h, 3h overtime
//	Tue 05  08-17  8h, manually converted
//	Wed 06  08-18  9h, 1h overtime
//	Thu 07  annual leave
func seedMarch(t *testing.T, s *memory.Store) employee.Employee {
	t.Helper()
	ctx := context.Background()

	_, err := s.Policies().UpsertCompanyPolicy(ctx, benefit.CompanyPolicy{
		CompanyID: "c1",
		PolicyFields: benefit.PolicyFields{
			BenefitPolicy:                benefitPtr(benefit.BenefitPolicyBoth),
			SaturdayPolicy:               saturdayPtr(benefit.SaturdayPolicyBusinessTrip),
			SaturdayTripHourlyRate:       decPtr("12.50"),
			OvertimeConversionRate:       decPtr("10"),
			AutoConversionThresholdHours: decPtr("2"),
		},
	})
	require.NoError(t, err)

	emp := s.AddEmployee(employee.Employee{
		ID:        "e1",
		CompanyID: "c1",
		FullName:  "Dana Putri",
		HireDate:  benefit.NewDate(2023, 1, 1),
	})

	days := []struct {
		day        int
		start, end int
	}{
		{2, 8, 13},
		{4, 7, 19},
		{5, 8, 17},
		{6, 8, 18},
	}
	for _, d := range days {
		rec := dayRecord(march(d.day), d.start, d.end)
		_, err := s.Attendance().ReplaceDay(ctx, rec)
		require.NoError(t, err)
	}

	s.AddAbsence(attendance.Absence{EmployeeID: "e1", CompanyID: "c1", Date: march(7), Type: "annual", Hours: dec("8")})
	s.AddHoliday(company.Holiday{CompanyID: "c1", Date: march(11), Name: "Nyepi"})

	_, err = s.Conversions().UpsertMealVoucherConversion(ctx, conversion.MealVoucherConversion{
		EmployeeID:           "e1",
		CompanyID:            "c1",
		Date:                 march(5),
		ConvertedToAllowance: true,
	})
	require.NoError(t, err)

	return emp
}

func TestEngine_ComputeMonth(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedMarch(t, store)
	engine := NewEngine(storeSources(store))

	snap, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	agg, err := engine.Compute(ctx, snap)
	require.NoError(t, err)

	require.Empty(t, agg.Failures)
	require.Len(t, agg.Employees, 1)
	assert.Equal(t, "Nyepi", agg.Holidays["2024-03-11"])

	m := agg.Employees[0]
	assert.Equal(t, "Dana Putri", m.EmployeeName)

	assert.Equal(t, benefit.BucketSaturdayTrip, m.Days["2024-03-02"].Bucket)
	assert.True(t, m.Days["2024-03-04"].Overtime.Equal(dec("3")))
	assert.True(t, m.Days["2024-03-07"].Absence.Equal(dec("8")))
	assert.Equal(t, "annual", m.Days["2024-03-07"].AbsenceType)

	assert.True(t, m.Totals.Ordinary.Equal(dec("24")), "ordinary %s", m.Totals.Ordinary)
	assert.True(t, m.Totals.Overtime.Equal(dec("4")))
	assert.True(t, m.Totals.AbsenceByType["annual"].Equal(dec("8")))

	// Mon and Wed only: Sat is under the minimum, Tue was converted.
	assert.Equal(t, 2, m.MealVoucher.Count)
	assert.True(t, m.MealVoucher.Amount.Equal(dec("16")))
	assert.Equal(t, 2, m.DailyAllowance.Days)
	assert.True(t, m.DailyAllowance.Amount.Equal(dec("92.96")))

	assert.True(t, m.SaturdayTrip.Hours.Equal(dec("5")))
	assert.True(t, m.SaturdayTrip.Amount.Equal(dec("62.5")))
	assert.True(t, m.SaturdayTrip.Daily["2024-03-02"].Equal(dec("62.5")))

	assert.Equal(t, 1, m.MealVoucherConversion.Days)
	assert.True(t, m.MealVoucherConversion.Amount.Equal(dec("8")))

	// 4h overtime above a 2h threshold: 2h distributed 3:1 over Mon and Wed.
	ot := m.OvertimeConversion
	assert.True(t, ot.AutomaticHours.Equal(dec("2")))
	assert.True(t, ot.Hours.Equal(dec("2")))
	assert.True(t, ot.Amount.Equal(dec("20")))
	require.Len(t, ot.Distribution, 2)
	assert.True(t, ot.Distribution[0].Converted.Equal(dec("1.5")))
	assert.True(t, ot.Distribution[1].Converted.Equal(dec("0.5")))

	// R = 62.5 + 92.96 + 20 + 8 = 183.46 over A30=2 (Mon, Wed), A46=2 (Sat, Tue)
	ledger := m.Ledger
	assert.True(t, ledger.TotalAmount.Equal(dec("183.46")), "R %s", ledger.TotalAmount)
	assert.Equal(t, 2, ledger.DaysWithMeal)
	assert.Equal(t, 2, ledger.DaysWithoutMeal)
	assert.Equal(t, benefit.AllocationSaturated, ledger.Step)
	assert.True(t, ledger.AmountAtHighRate.Equal(dec("92.96")))
	assert.True(t, ledger.RemainderPerDay.Equal(dec("30.98")))

	// the computed totals were persisted and the hash reflects them
	row, err := store.Conversions().GetOvertimeConversion(ctx, "c1", "e1", 2024, 3)
	require.NoError(t, err)
	assert.True(t, row.TotalHours.Equal(dec("2")))
	assert.True(t, row.Amount.Equal(dec("20")))

	fresh, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	hash, err := fresh.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, agg.SourceHash)
}

func TestEngine_ManualHoursAddToAutomatic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedMarch(t, store)

	_, err := store.Conversions().UpsertOvertimeConversion(ctx, conversion.OvertimeConversion{
		EmployeeID:  "e1",
		CompanyID:   "c1",
		PeriodYear:  2024,
		PeriodMonth: 3,
		ManualHours: dec("1"),
	})
	require.NoError(t, err)

	engine := NewEngine(storeSources(store))
	snap, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	agg, err := engine.Compute(ctx, snap)
	require.NoError(t, err)

	ot := agg.Employees[0].OvertimeConversion
	assert.True(t, ot.ManualHours.Equal(dec("1")))
	assert.True(t, ot.Hours.Equal(dec("3")))
	assert.True(t, ot.Amount.Equal(dec("30")))
}

func TestEngine_MissingPolicyFailsEveryEmployee(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddEmployee(employee.Employee{ID: "e1", CompanyID: "c1", HireDate: benefit.NewDate(2023, 1, 1)})
	store.AddEmployee(employee.Employee{ID: "e2", CompanyID: "c1", HireDate: benefit.NewDate(2023, 1, 1)})

	engine := NewEngine(storeSources(store))
	snap, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	agg, err := engine.Compute(ctx, snap)
	require.NoError(t, err)

	assert.Empty(t, agg.Employees)
	require.Len(t, agg.Failures, 2)
	for _, f := range agg.Failures {
		assert.ErrorIs(t, f.Err, benefit.ErrConfigurationMissing)
	}
	assert.ErrorIs(t, FailureErrors(agg), benefit.ErrConfigurationMissing)
}

func TestEngine_EmployeesOutsideTheMonthAreSkipped(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedMarch(t, store)
	resigned := benefit.NewDate(2024, 2, 15)
	store.AddEmployee(employee.Employee{ID: "e0", CompanyID: "c1", HireDate: benefit.NewDate(2020, 1, 1), ResignationDate: &resigned})
	store.AddEmployee(employee.Employee{ID: "e9", CompanyID: "c1", HireDate: benefit.NewDate(2024, 4, 1)})

	engine := NewEngine(storeSources(store))
	snap, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	require.Len(t, snap.Employees, 1)
	assert.Equal(t, "e1", snap.Employees[0].ID)
}

func TestSnapshot_HashIsStable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedMarch(t, store)
	engine := NewEngine(storeSources(store))

	a, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	b, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	_, err = store.Attendance().ReplaceDay(ctx, dayRecord(march(8), 8, 16))
	require.NoError(t, err)
	c, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	hc, err := c.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestMonthlyCache_FollowsStoreNotifications(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedMarch(t, store)

	engine := NewEngine(storeSources(store), WithClock(func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }))
	cache := NewMonthlyCache(engine, WithDebounce(20*time.Millisecond))
	t.Cleanup(cache.Close)
	store.OnChange(cache.HandleChange)

	first, err := cache.GetOrCompute(ctx, "c1", testMonth)
	require.NoError(t, err)

	// the write-back notification of the first compute settles on its own
	require.Eventually(t, func() bool {
		return cache.State("c1", testMonth) == StateValid
	}, 2*time.Second, 10*time.Millisecond)

	second, err := cache.GetOrCompute(ctx, "c1", testMonth)
	require.NoError(t, err)
	assert.True(t, second.IsFromCache)
	assert.Same(t, first.Payload, second.Payload)

	_, err = store.Attendance().ReplaceDay(ctx, dayRecord(march(8), 8, 17))
	require.NoError(t, err)
	assert.Equal(t, StateInvalid, cache.State("c1", testMonth))

	require.Eventually(t, func() bool {
		return cache.State("c1", testMonth) == StateValid
	}, 2*time.Second, 10*time.Millisecond)

	third, err := cache.GetOrCompute(ctx, "c1", testMonth)
	require.NoError(t, err)
	assert.True(t, third.IsFresh)
	assert.Equal(t, 3, third.Payload.Employees[0].MealVoucher.Count)
}

func TestEngine_DistributionIsRoundedAndBalanced(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.Policies().UpsertCompanyPolicy(ctx, benefit.CompanyPolicy{
		CompanyID: "c1",
		PolicyFields: benefit.PolicyFields{
			OvertimeConversionRate:       decPtr("10"),
			AutoConversionThresholdHours: decPtr("0"),
		},
	})
	require.NoError(t, err)
	store.AddEmployee(employee.Employee{ID: "e1", CompanyID: "c1", FullName: "Dana Putri", HireDate: benefit.NewDate(2023, 1, 1)})

	// 20 minutes of overtime on each day.
	for _, day := range []int{4, 6, 8} {
		rec := dayRecord(march(day), 8, 17)
		rec.End = at(march(day), 17, 20)
		_, err := store.Attendance().ReplaceDay(ctx, rec)
		require.NoError(t, err)
	}

	engine := NewEngine(storeSources(store))
	snap, err := engine.Snapshot(ctx, "c1", testMonth)
	require.NoError(t, err)
	agg, err := engine.Compute(ctx, snap)
	require.NoError(t, err)
	require.Len(t, agg.Employees, 1)

	dist := agg.Employees[0].OvertimeConversion.Distribution
	require.Len(t, dist, 3)
	for _, e := range dist {
		assert.True(t, e.Original.Equal(e.Original.Round(2)), "original %s", e.Original)
		assert.True(t, e.Converted.Equal(e.Converted.Round(2)), "converted %s", e.Converted)
		assert.True(t, e.Remaining.Equal(e.Remaining.Round(2)), "remaining %s", e.Remaining)
		assert.True(t, e.Original.Equal(e.Converted.Add(e.Remaining)), "%s != %s + %s", e.Original, e.Converted, e.Remaining)
		assert.False(t, e.Remaining.IsNegative())
	}
}
