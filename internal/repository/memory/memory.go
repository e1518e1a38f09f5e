// Package memory provides in-memory repositories for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/company"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - shared state behind every repository view
// =============================================================================

type Store struct {
	mu sync.RWMutex

	companies map[string]company.Company
	employees map[string]employee.Employee
	holidays  map[string]company.Holiday

	policies  map[string]benefit.CompanyPolicy // by company
	overrides map[string]benefit.EmployeeOverride

	records  map[dayKey]attendance.Record
	absences map[string]attendance.Absence

	mealConv map[dayKey]conversion.MealVoucherConversion
	otConv   map[monthKey]conversion.OvertimeConversion

	listeners []func(benefit.ChangeEvent)
	now       func() time.Time
}

type dayKey struct {
	EmployeeID string
	Date       time.Time
}

type monthKey struct {
	EmployeeID string
	Year       int
	Month      int
}

func NewStore() *Store {
	return &Store{
		companies: make(map[string]company.Company),
		employees: make(map[string]employee.Employee),
		holidays:  make(map[string]company.Holiday),
		policies:  make(map[string]benefit.CompanyPolicy),
		overrides: make(map[string]benefit.EmployeeOverride),
		records:   make(map[dayKey]attendance.Record),
		absences:  make(map[string]attendance.Absence),
		mealConv:  make(map[dayKey]conversion.MealVoucherConversion),
		otConv:    make(map[monthKey]conversion.OvertimeConversion),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers fn to receive a change event after every write, the
// way database triggers feed the notification channel.
func (s *Store) OnChange(fn func(benefit.ChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) emit(ev benefit.ChangeEvent) {
	s.mu.RLock()
	listeners := append([]func(benefit.ChangeEvent){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func dayEvent(table benefit.SourceTable, op, companyID, employeeID string, date time.Time) benefit.ChangeEvent {
	d := benefit.Date(date)
	return benefit.ChangeEvent{Table: table, Op: op, CompanyID: companyID, EmployeeID: employeeID, Date: &d}
}

// Repository views. Each satisfies one domain interface.

func (s *Store) Companies() company.CompanyRepository   { return companyRepo{s} }
func (s *Store) Holidays() company.HolidayRepository    { return holidayRepo{s} }
func (s *Store) Employees() employee.EmployeeRepository { return employeeRepo{s} }
func (s *Store) Policies() benefit.PolicyRepository     { return policyRepo{s} }
func (s *Store) Attendance() attendance.Repository      { return attendanceRepo{s} }
func (s *Store) Conversions() conversion.Repository     { return conversionRepo{s} }

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) AddCompany(c company.Company) company.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.companies[c.ID] = c
	return c
}

func (s *Store) AddEmployee(e employee.Employee) employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EmploymentStatus == "" {
		e.EmploymentStatus = employee.EmploymentStatusActive
	}
	s.employees[e.ID] = e
	return e
}

func (s *Store) AddHoliday(h company.Holiday) company.Holiday {
	s.mu.Lock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.Date = benefit.Date(h.Date)
	s.holidays[h.ID] = h
	s.mu.Unlock()

	s.emit(dayEvent(benefit.TableHolidays, "INSERT", h.CompanyID, "", h.Date))
	return h
}

func (s *Store) AddAbsence(a attendance.Absence) attendance.Absence {
	s.mu.Lock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Date = benefit.Date(a.Date)
	s.absences[a.ID] = a
	s.mu.Unlock()

	s.emit(dayEvent(benefit.TableAbsences, "INSERT", a.CompanyID, a.EmployeeID, a.Date))
	return a
}

func wanted(ids []string) func(string) bool {
	if len(ids) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && d.Before(to)
}

// =============================================================================
// COMPANIES & HOLIDAYS
// =============================================================================

type companyRepo struct{ s *Store }

func (r companyRepo) GetByID(_ context.Context, id string) (company.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.companies[id]
	if !ok {
		return company.Company{}, company.ErrCompanyNotFound
	}
	return c, nil
}

type holidayRepo struct{ s *Store }

func (r holidayRepo) ListByCompanyAndRange(_ context.Context, companyID string, from, to time.Time) ([]company.Holiday, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []company.Holiday
	for _, h := range r.s.holidays {
		if h.CompanyID == companyID && inRange(h.Date, from, to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type employeeRepo struct{ s *Store }

func (r employeeRepo) GetByID(_ context.Context, id string, companyID string) (employee.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.employees[id]
	if !ok || e.CompanyID != companyID || e.DeletedAt != nil {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r employeeRepo) ListForPeriod(_ context.Context, companyID string, from, to time.Time) ([]employee.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []employee.Employee
	for _, e := range r.s.employees {
		if e.CompanyID == companyID && e.DeletedAt == nil && e.ActiveDuring(from, to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// POLICIES & OVERRIDES
// =============================================================================

type policyRepo struct{ s *Store }

func (r policyRepo) GetCompanyPolicy(_ context.Context, companyID string) (benefit.CompanyPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.policies[companyID]
	if !ok {
		return benefit.CompanyPolicy{}, benefit.ErrConfigurationMissing
	}
	return p, nil
}

func (r policyRepo) UpsertCompanyPolicy(_ context.Context, policy benefit.CompanyPolicy) (benefit.CompanyPolicy, error) {
	r.s.mu.Lock()
	now := r.s.now()
	if existing, ok := r.s.policies[policy.CompanyID]; ok {
		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
	} else {
		policy.ID = uuid.NewString()
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	r.s.policies[policy.CompanyID] = policy
	r.s.mu.Unlock()

	r.s.emit(benefit.ChangeEvent{Table: benefit.TableCompanyPolicies, Op: "UPDATE", CompanyID: policy.CompanyID})
	return policy, nil
}

func (r policyRepo) ListOverrides(_ context.Context, companyID, employeeID string) ([]benefit.EmployeeOverride, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []benefit.EmployeeOverride
	for _, o := range r.s.overrides {
		if o.CompanyID == companyID && o.EmployeeID == employeeID {
			out = append(out, o)
		}
	}
	sortOverrides(out)
	return out, nil
}

func (r policyRepo) ListOverridesByCompany(_ context.Context, companyID string, from, to time.Time) ([]benefit.EmployeeOverride, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []benefit.EmployeeOverride
	for _, o := range r.s.overrides {
		if o.CompanyID != companyID {
			continue
		}
		if !o.ValidFrom.Before(to) {
			continue
		}
		if o.ValidTo != nil && !o.ValidTo.After(from) {
			continue
		}
		out = append(out, o)
	}
	sortOverrides(out)
	return out, nil
}

func (r policyRepo) CreateOverride(_ context.Context, override benefit.EmployeeOverride) (benefit.EmployeeOverride, error) {
	r.s.mu.Lock()
	now := r.s.now()
	override.ValidFrom = benefit.Date(override.ValidFrom)
	for id, o := range r.s.overrides {
		if o.CompanyID == override.CompanyID && o.EmployeeID == override.EmployeeID &&
			o.ValidTo == nil && o.ValidFrom.Before(override.ValidFrom) {
			to := override.ValidFrom
			o.ValidTo = &to
			o.UpdatedAt = now
			r.s.overrides[id] = o
		}
	}
	override.ID = uuid.NewString()
	override.CreatedAt = now
	override.UpdatedAt = now
	r.s.overrides[override.ID] = override
	r.s.mu.Unlock()

	r.s.emit(benefit.ChangeEvent{
		Table:      benefit.TableEmployeeOverrides,
		Op:         "INSERT",
		CompanyID:  override.CompanyID,
		EmployeeID: override.EmployeeID,
	})
	return override, nil
}

func sortOverrides(list []benefit.EmployeeOverride) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].EmployeeID != list[j].EmployeeID {
			return list[i].EmployeeID < list[j].EmployeeID
		}
		return list[i].ValidFrom.Before(list[j].ValidFrom)
	})
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type attendanceRepo struct{ s *Store }

func (r attendanceRepo) ListByCompanyAndRange(_ context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]attendance.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	keep := wanted(employeeIDs)
	var out []attendance.Record
	for _, rec := range r.s.records {
		if rec.CompanyID == companyID && keep(rec.EmployeeID) && inRange(rec.Date, from, to) {
			rec.Sessions = append([]attendance.WorkSession(nil), rec.Sessions...)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (r attendanceRepo) ListAbsencesByCompanyAndRange(_ context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]attendance.Absence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	keep := wanted(employeeIDs)
	var out []attendance.Absence
	for _, a := range r.s.absences {
		if a.CompanyID == companyID && keep(a.EmployeeID) && inRange(a.Date, from, to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// ReplaceDay keeps the record ID of an existing (employee, date) row and
// rebuilds its sessions.
func (r attendanceRepo) ReplaceDay(_ context.Context, record attendance.Record) (attendance.Record, error) {
	r.s.mu.Lock()
	now := r.s.now()
	record.Date = benefit.Date(record.Date)
	k := dayKey{EmployeeID: record.EmployeeID, Date: record.Date}
	op := "INSERT"
	if existing, ok := r.s.records[k]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		op = "UPDATE"
	} else {
		record.ID = uuid.NewString()
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	sessions := make([]attendance.WorkSession, len(record.Sessions))
	for i, ws := range record.Sessions {
		ws.ID = uuid.NewString()
		ws.RecordID = record.ID
		if ws.Order == 0 {
			ws.Order = i + 1
		}
		sessions[i] = ws
	}
	record.Sessions = sessions
	r.s.records[k] = record
	r.s.mu.Unlock()

	r.s.emit(dayEvent(benefit.TableAttendance, op, record.CompanyID, record.EmployeeID, record.Date))
	return record, nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

type conversionRepo struct{ s *Store }

func (r conversionRepo) ListMealVoucherConversions(_ context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]conversion.MealVoucherConversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	keep := wanted(employeeIDs)
	var out []conversion.MealVoucherConversion
	for _, c := range r.s.mealConv {
		if c.CompanyID == companyID && keep(c.EmployeeID) && inRange(c.Date, from, to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (r conversionRepo) UpsertMealVoucherConversion(_ context.Context, conv conversion.MealVoucherConversion) (conversion.MealVoucherConversion, error) {
	r.s.mu.Lock()
	now := r.s.now()
	conv.Date = benefit.Date(conv.Date)
	k := dayKey{EmployeeID: conv.EmployeeID, Date: conv.Date}
	if existing, ok := r.s.mealConv[k]; ok {
		conv.ID = existing.ID
		conv.CreatedAt = existing.CreatedAt
	} else {
		conv.ID = uuid.NewString()
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	r.s.mealConv[k] = conv
	r.s.mu.Unlock()

	r.s.emit(dayEvent(benefit.TableMealVoucherConversions, "UPSERT", conv.CompanyID, conv.EmployeeID, conv.Date))
	return conv, nil
}

func (r conversionRepo) DeleteMealVoucherConversion(_ context.Context, companyID, employeeID string, date time.Time) error {
	r.s.mu.Lock()
	date = benefit.Date(date)
	k := dayKey{EmployeeID: employeeID, Date: date}
	existing, ok := r.s.mealConv[k]
	if !ok || existing.CompanyID != companyID {
		r.s.mu.Unlock()
		return conversion.ErrMealVoucherConversionGone
	}
	delete(r.s.mealConv, k)
	r.s.mu.Unlock()

	r.s.emit(dayEvent(benefit.TableMealVoucherConversions, "DELETE", companyID, employeeID, date))
	return nil
}

func (r conversionRepo) ListOvertimeConversions(_ context.Context, companyID string, year, month int) ([]conversion.OvertimeConversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []conversion.OvertimeConversion
	for k, c := range r.s.otConv {
		if c.CompanyID == companyID && k.Year == year && k.Month == month {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (r conversionRepo) GetOvertimeConversion(_ context.Context, companyID, employeeID string, year, month int) (conversion.OvertimeConversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.otConv[monthKey{EmployeeID: employeeID, Year: year, Month: month}]
	if !ok || c.CompanyID != companyID {
		return conversion.OvertimeConversion{}, conversion.ErrOvertimeConversionMissing
	}
	return c, nil
}

func (r conversionRepo) AdjustManualOvertime(_ context.Context, companyID, employeeID string, year, month int, delta decimal.Decimal) (conversion.OvertimeConversion, error) {
	r.s.mu.Lock()
	now := r.s.now()
	k := monthKey{EmployeeID: employeeID, Year: year, Month: month}
	conv, ok := r.s.otConv[k]
	if ok && conv.CompanyID != companyID {
		r.s.mu.Unlock()
		return conversion.OvertimeConversion{}, conversion.ErrOvertimeConversionMissing
	}
	if !ok {
		conv = conversion.OvertimeConversion{
			ID:          uuid.NewString(),
			EmployeeID:  employeeID,
			CompanyID:   companyID,
			PeriodYear:  year,
			PeriodMonth: month,
			ManualHours: decimal.Zero,
			TotalHours:  decimal.Zero,
			Amount:      decimal.Zero,
			CreatedAt:   now,
		}
	}
	manual, err := conversion.ApplyDelta(conv.ManualHours, delta)
	if err != nil {
		r.s.mu.Unlock()
		return conversion.OvertimeConversion{}, err
	}
	conv.ManualHours = manual
	conv.UpdatedAt = now
	r.s.otConv[k] = conv
	r.s.mu.Unlock()

	m := benefit.NewMonth(year, time.Month(month))
	r.s.emit(benefit.ChangeEvent{
		Table:      benefit.TableOvertimeConversions,
		Op:         "UPDATE",
		CompanyID:  companyID,
		EmployeeID: employeeID,
		Month:      &m,
	})
	return conv, nil
}

func (r conversionRepo) UpsertOvertimeConversion(_ context.Context, conv conversion.OvertimeConversion) (conversion.OvertimeConversion, error) {
	r.s.mu.Lock()
	now := r.s.now()
	k := monthKey{EmployeeID: conv.EmployeeID, Year: conv.PeriodYear, Month: conv.PeriodMonth}
	if existing, ok := r.s.otConv[k]; ok {
		conv.ID = existing.ID
		conv.ManualHours = existing.ManualHours
		conv.CreatedAt = existing.CreatedAt
	} else {
		conv.ID = uuid.NewString()
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	r.s.otConv[k] = conv
	r.s.mu.Unlock()

	m := benefit.NewMonth(conv.PeriodYear, time.Month(conv.PeriodMonth))
	r.s.emit(benefit.ChangeEvent{
		Table:      benefit.TableOvertimeConversions,
		Op:         "UPSERT",
		CompanyID:  conv.CompanyID,
		EmployeeID: conv.EmployeeID,
		Month:      &m,
	})
	return conv, nil
}
