package benefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultComputeWorkers bounds the per-employee fan-out of one month.
const DefaultComputeWorkers = 8

// Engine computes company months from the repositories. It has no cache of
// its own; MonthlyCache sits in front of it.
type Engine struct {
	src     Sources
	caps    benefit.Caps
	workers int
	now     func() time.Time
}

type EngineOption func(*Engine)

func WithCaps(caps benefit.Caps) EngineOption {
	return func(e *Engine) { e.caps = caps }
}

func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(src Sources, opts ...EngineOption) *Engine {
	e := &Engine{
		src:     src,
		caps:    benefit.DefaultCaps(),
		workers: DefaultComputeWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Snapshot(ctx context.Context, companyID string, month benefit.Month) (*Snapshot, error) {
	return FetchSnapshot(ctx, e.src, companyID, month)
}

// Compute builds the aggregate for snap and writes back overtime conversion
// rows whose totals changed. The returned aggregate carries the hash of the
// data as it stands after the write-back.
func (e *Engine) Compute(ctx context.Context, snap *Snapshot) (*benefit.MonthlyAggregate, error) {
	agg, writes := ComputeMonth(snap, e.caps, e.workers)

	if len(writes) > 0 {
		for _, w := range writes {
			if _, err := e.src.Conversions.UpsertOvertimeConversion(ctx, w); err != nil {
				return nil, fmt.Errorf("write overtime conversion for employee %s: %w", w.EmployeeID, err)
			}
		}
		slog.Debug("overtime conversions written back", "company_id", snap.CompanyID, "month", snap.Month.String(), "count", len(writes))

		rows, err := e.src.Conversions.ListOvertimeConversions(ctx, snap.CompanyID, snap.Month.Year, int(snap.Month.Month))
		if err != nil {
			return nil, fmt.Errorf("reload overtime conversions: %w", err)
		}
		snap.OvertimeConversions = rows
		snap.normalize()
	}

	hash, err := snap.Hash()
	if err != nil {
		return nil, err
	}
	agg.SourceHash = hash
	agg.ComputedAt = e.now().UTC()
	return agg, nil
}

// ComputeMonth runs resolver, calculator, distributor and allocator for
// every employee of the snapshot. It is pure: overtime conversion rows that
// need persisting are returned, not written.
func ComputeMonth(snap *Snapshot, caps benefit.Caps, workers int) (*benefit.MonthlyAggregate, []conversion.OvertimeConversion) {
	in := indexSnapshot(snap)

	type result struct {
		month benefit.EmployeeMonth
		write *conversion.OvertimeConversion
		err   error
	}
	results := make([]result, len(snap.Employees))

	var g errgroup.Group
	if workers <= 0 {
		workers = DefaultComputeWorkers
	}
	g.SetLimit(workers)
	for i, emp := range snap.Employees {
		g.Go(func() error {
			m, w, err := computeEmployee(emp, snap.Month, snap.Policy, in.forEmployee(emp.ID), caps)
			results[i] = result{month: m, write: w, err: err}
			return nil
		})
	}
	_ = g.Wait()

	agg := &benefit.MonthlyAggregate{
		CompanyID: snap.CompanyID,
		Month:     snap.Month,
		Employees: make([]benefit.EmployeeMonth, 0, len(results)),
	}
	var writes []conversion.OvertimeConversion
	for i, r := range results {
		if r.err != nil {
			agg.Failures = append(agg.Failures, benefit.EmployeeFailure{
				EmployeeID: snap.Employees[i].ID,
				Error:      r.err.Error(),
				Err:        r.err,
			})
			continue
		}
		agg.Employees = append(agg.Employees, r.month)
		if r.write != nil {
			writes = append(writes, *r.write)
		}
	}

	if len(snap.Holidays) > 0 {
		agg.Holidays = make(map[string]string, len(snap.Holidays))
		for _, h := range snap.Holidays {
			agg.Holidays[benefit.Date(h.Date).Format(benefit.DateLayout)] = h.Name
		}
	}
	return agg, writes
}

type snapshotIndex struct {
	overrides map[string][]benefit.EmployeeOverride
	records   map[string][]attendance.Record
	absences  map[string][]attendance.Absence
	mealConv  map[string][]conversion.MealVoucherConversion
	otConv    map[string]conversion.OvertimeConversion
}

type employeeInputs struct {
	overrides []benefit.EmployeeOverride
	records   []attendance.Record
	absences  []attendance.Absence
	mealConv  []conversion.MealVoucherConversion
	otConv    *conversion.OvertimeConversion
}

func indexSnapshot(snap *Snapshot) snapshotIndex {
	idx := snapshotIndex{
		overrides: groupOverrides(snap.Overrides),
		records:   make(map[string][]attendance.Record),
		absences:  make(map[string][]attendance.Absence),
		mealConv:  make(map[string][]conversion.MealVoucherConversion),
		otConv:    make(map[string]conversion.OvertimeConversion),
	}
	for _, r := range snap.Records {
		idx.records[r.EmployeeID] = append(idx.records[r.EmployeeID], r)
	}
	for _, a := range snap.Absences {
		idx.absences[a.EmployeeID] = append(idx.absences[a.EmployeeID], a)
	}
	for _, c := range snap.MealVoucherConversions {
		idx.mealConv[c.EmployeeID] = append(idx.mealConv[c.EmployeeID], c)
	}
	for _, c := range snap.OvertimeConversions {
		idx.otConv[c.EmployeeID] = c
	}
	return idx
}

func (idx snapshotIndex) forEmployee(id string) employeeInputs {
	in := employeeInputs{
		overrides: idx.overrides[id],
		records:   idx.records[id],
		absences:  idx.absences[id],
		mealConv:  idx.mealConv[id],
	}
	if c, ok := idx.otConv[id]; ok {
		in.otConv = &c
	}
	return in
}

// computeEmployee folds one employee's month. Day-level values keep full
// precision until the summary is built.
func computeEmployee(
	emp employee.Employee,
	month benefit.Month,
	policy *benefit.CompanyPolicy,
	in employeeInputs,
	caps benefit.Caps,
) (benefit.EmployeeMonth, *conversion.OvertimeConversion, error) {
	if err := ValidateOverrides(in.overrides); err != nil {
		// Overlaps are resolved deterministically, so only log them.
		slog.Warn("overlapping overrides", "employee_id", emp.ID, "error", err)
	}

	monthSettings, err := ResolveSettings(policy, in.overrides, month.Start())
	if err != nil {
		return benefit.EmployeeMonth{}, nil, err
	}

	out := benefit.EmployeeMonth{
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName,
		Days:         make(map[string]benefit.DayHours),
	}
	ordinary, overtime := decimal.Zero, decimal.Zero
	absenceByType := make(map[string]decimal.Decimal)

	mvAmount := decimal.Zero
	tripHours, tripAmount := decimal.Zero, decimal.Zero
	tripDaily := make(map[string]decimal.Decimal)
	allowanceAmount := decimal.Zero
	allowanceDaily := make(map[string]decimal.Decimal)
	overtimeDaily := make(map[time.Time]decimal.Decimal)
	var a30, a46 int

	conversions := make(map[time.Time]*conversion.MealVoucherConversion, len(in.mealConv))
	for i := range in.mealConv {
		c := &in.mealConv[i]
		if month.Contains(c.Date) {
			conversions[benefit.Date(c.Date)] = c
		}
	}

	for _, rec := range in.records {
		if !month.Contains(rec.Date) {
			continue
		}
		date := benefit.Date(rec.Date)
		key := date.Format(benefit.DateLayout)

		settings, err := ResolveSettings(policy, in.overrides, date)
		if err != nil {
			return benefit.EmployeeMonth{}, nil, err
		}
		day := ComputeDay(rec, settings, conversions[date])

		if day.Absent {
			out.Days[key] = benefit.DayHours{
				Ordinary:    decimal.Zero,
				Overtime:    decimal.Zero,
				Absence:     round2(day.AbsentHours),
				AbsenceType: day.AbsenceType,
				Bucket:      benefit.BucketAbsence,
			}
			absenceByType[day.AbsenceType] = absenceByType[day.AbsenceType].Add(day.AbsentHours)
			continue
		}

		out.Days[key] = benefit.DayHours{
			Ordinary: round2(day.OrdinaryHours),
			Overtime: round2(day.OvertimeHours),
			Absence:  decimal.Zero,
			Bucket:   day.Bucket,
		}
		ordinary = ordinary.Add(day.OrdinaryHours)
		overtime = overtime.Add(day.OvertimeHours)
		if day.OvertimeHours.IsPositive() {
			overtimeDaily[date] = day.OvertimeHours
		}

		if day.Bucket == benefit.BucketSaturdayTrip {
			tripHours = tripHours.Add(day.SaturdayTripHours)
			tripAmount = tripAmount.Add(day.SaturdayTripAmount)
			tripDaily[key] = round2(day.SaturdayTripAmount)
		}
		if day.MealVoucher {
			out.MealVoucher.Count++
			mvAmount = mvAmount.Add(settings.MealVoucherAmount)
		}
		if day.DailyAllowance {
			out.DailyAllowance.Days++
			allowanceAmount = allowanceAmount.Add(settings.DailyAllowanceAmount)
			allowanceDaily[key] = round2(settings.DailyAllowanceAmount)
		}

		if day.WorkedHours.IsPositive() {
			// Manual conversion days have no meal benefit and count as A46.
			if day.MealVoucher {
				a30++
			} else {
				a46++
			}
		}
	}

	for _, a := range in.absences {
		if !month.Contains(a.Date) {
			continue
		}
		key := benefit.Date(a.Date).Format(benefit.DateLayout)
		hours := a.Hours
		dh, ok := out.Days[key]
		if !ok {
			dh = benefit.DayHours{Ordinary: decimal.Zero, Overtime: decimal.Zero, Bucket: benefit.BucketAbsence}
		}
		if dh.Bucket == benefit.BucketAbsence && !dh.Absence.IsZero() {
			// The attendance record already booked this day as absent.
			prev := absenceByType[dh.AbsenceType].Sub(dh.Absence)
			absenceByType[dh.AbsenceType] = prev
		}
		dh.Absence = round2(hours)
		dh.AbsenceType = a.Type
		out.Days[key] = dh
		absenceByType[a.Type] = absenceByType[a.Type].Add(hours)
	}

	mvcAmount := decimal.Zero
	mvcDaily := make(map[string]decimal.Decimal)
	for date, c := range conversions {
		if !c.ConvertedToAllowance {
			continue
		}
		settings, err := ResolveSettings(policy, in.overrides, date)
		if err != nil {
			return benefit.EmployeeMonth{}, nil, err
		}
		out.MealVoucherConversion.Days++
		mvcAmount = mvcAmount.Add(settings.MealVoucherConversionAmount)
		mvcDaily[date.Format(benefit.DateLayout)] = round2(settings.MealVoucherConversionAmount)
	}

	manual := decimal.Zero
	if in.otConv != nil {
		manual = in.otConv.ManualHours
	}
	automatic := AutomaticConversionHours(overtime, monthSettings.AutoConversionThresholdHours)
	requested := manual.Add(automatic)
	distribution := Distribute(overtimeDaily, requested)
	converted := SumConverted(distribution)
	otAmount := converted.Mul(monthSettings.OvertimeConversionRate)

	// Remaining is derived so each rounded day still balances.
	for i := range distribution {
		distribution[i].Original = round2(distribution[i].Original)
		distribution[i].Converted = round2(distribution[i].Converted)
		distribution[i].Remaining = distribution[i].Original.Sub(distribution[i].Converted)
	}

	out.Totals = benefit.Totals{
		Ordinary:      round2(ordinary),
		Overtime:      round2(overtime),
		AbsenceByType: roundAll(absenceByType),
	}
	out.MealVoucher.Amount = round2(mvAmount)
	out.SaturdayTrip = benefit.SaturdayTripSummary{
		Hours:  round2(tripHours),
		Amount: round2(tripAmount),
		Daily:  tripDaily,
	}
	out.DailyAllowance.Amount = round2(allowanceAmount)
	out.DailyAllowance.Daily = allowanceDaily
	out.OvertimeConversion = benefit.OvertimeConversionSummary{
		ManualHours:    round2(manual),
		AutomaticHours: round2(automatic),
		Hours:          round2(converted),
		Amount:         round2(otAmount),
		Distribution:   distribution,
	}
	out.MealVoucherConversion.Amount = round2(mvcAmount)
	out.MealVoucherConversion.Daily = mvcDaily

	r := tripAmount.Add(allowanceAmount).Add(otAmount).Add(mvcAmount)
	out.Ledger = Allocate(a30, a46, r, caps)

	write := overtimeWriteBack(emp, month, in.otConv, manual, requested, out.OvertimeConversion.Amount)
	return out, write, nil
}

// overtimeWriteBack returns the row to persist, or nil when the stored row
// already holds these totals.
func overtimeWriteBack(
	emp employee.Employee,
	month benefit.Month,
	existing *conversion.OvertimeConversion,
	manual, total, amount decimal.Decimal,
) *conversion.OvertimeConversion {
	next := conversion.OvertimeConversion{
		EmployeeID:  emp.ID,
		CompanyID:   emp.CompanyID,
		PeriodYear:  month.Year,
		PeriodMonth: int(month.Month),
		ManualHours: round2(manual),
		TotalHours:  round2(total),
		Amount:      amount,
	}
	if existing == nil {
		if next.TotalHours.IsZero() && next.Amount.IsZero() {
			return nil
		}
		return &next
	}
	if existing.SameTotals(next) {
		return nil
	}
	next.ID = existing.ID
	return &next
}

func roundAll(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		if v.IsZero() {
			continue
		}
		out[k] = round2(v)
	}
	return out
}

// FailureErrors joins the per-employee failures of an aggregate.
func FailureErrors(agg *benefit.MonthlyAggregate) error {
	if agg == nil || len(agg.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(agg.Failures))
	for _, f := range agg.Failures {
		errs = append(errs, fmt.Errorf("employee %s: %w", f.EmployeeID, f.Err))
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}
