package benefit

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyAggregate is the cached result of computing one company month.
type MonthlyAggregate struct {
	CompanyID  string            `json:"company_id"`
	Month      Month             `json:"month"`
	Employees  []EmployeeMonth   `json:"employees"`
	Failures   []EmployeeFailure `json:"failures,omitempty"`
	Holidays   map[string]string `json:"holidays,omitempty"` // date -> name
	SourceHash string            `json:"source_hash"`
	ComputedAt time.Time         `json:"computed_at"`
}

// EmployeeFailure reports an employee whose month could not be computed.
// Other employees of the batch are unaffected.
type EmployeeFailure struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
	Err        error  `json:"-"`
}

// EmployeeMonth is the per-employee payload consumed by the presentation layer.
type EmployeeMonth struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`

	Days   map[string]DayHours `json:"days"` // YYYY-MM-DD -> hours
	Totals Totals              `json:"totals"`

	MealVoucher           MealVoucherSummary           `json:"meal_voucher"`
	SaturdayTrip          SaturdayTripSummary          `json:"saturday_trip"`
	DailyAllowance        DailyAllowanceSummary        `json:"daily_allowance"`
	OvertimeConversion    OvertimeConversionSummary    `json:"overtime_conversion"`
	MealVoucherConversion MealVoucherConversionSummary `json:"meal_voucher_conversion"`
	Ledger                Allocation                   `json:"ledger"`
}

type DayHours struct {
	Ordinary    decimal.Decimal `json:"ordinary"`
	Overtime    decimal.Decimal `json:"overtime"`
	Absence     decimal.Decimal `json:"absence"`
	AbsenceType string          `json:"absence_type,omitempty"`
	Bucket      DayBucket       `json:"bucket"`
}

type Totals struct {
	Ordinary      decimal.Decimal            `json:"ordinary"`
	Overtime      decimal.Decimal            `json:"overtime"`
	AbsenceByType map[string]decimal.Decimal `json:"absence_by_type"`
}

type MealVoucherSummary struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type SaturdayTripSummary struct {
	Hours  decimal.Decimal            `json:"hours"`
	Amount decimal.Decimal            `json:"amount"`
	Daily  map[string]decimal.Decimal `json:"daily"`
}

type DailyAllowanceSummary struct {
	Days   int                        `json:"days"`
	Amount decimal.Decimal            `json:"amount"`
	Daily  map[string]decimal.Decimal `json:"daily"`
}

type OvertimeConversionSummary struct {
	ManualHours    decimal.Decimal     `json:"manual_hours"`
	AutomaticHours decimal.Decimal     `json:"automatic_hours"`
	Hours          decimal.Decimal     `json:"hours"`
	Amount         decimal.Decimal     `json:"amount"`
	Distribution   []DistributionEntry `json:"distribution,omitempty"`
}

type MealVoucherConversionSummary struct {
	Days   int                        `json:"days"`
	Amount decimal.Decimal            `json:"amount"`
	Daily  map[string]decimal.Decimal `json:"daily"`
}

// DistributionEntry is one day of an overtime conversion distribution.
type DistributionEntry struct {
	Date      time.Time       `json:"date"`
	Original  decimal.Decimal `json:"original"`
	Converted decimal.Decimal `json:"converted"`
	Remaining decimal.Decimal `json:"remaining"`
}

// AllocationStep records which rule of the tiered scheme produced the result.
type AllocationStep int

const (
	AllocationNone AllocationStep = iota
	AllocationEven
	AllocationHighOnly
	AllocationSaturated
)

// Allocation re-expresses a reimbursement total as "N days at rate X".
type Allocation struct {
	Step             AllocationStep  `json:"step"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DaysWithMeal     int             `json:"days_with_meal"`
	DaysWithoutMeal  int             `json:"days_without_meal"`
	DaysAtHighRate   int             `json:"days_at_high_rate"`
	AmountAtHighRate decimal.Decimal `json:"amount_at_high_rate"`
	RemainderDays    int             `json:"remainder_days"`
	RemainderPerDay  decimal.Decimal `json:"remainder_per_day"`
	RemainderTotal   decimal.Decimal `json:"remainder_total"`
}
