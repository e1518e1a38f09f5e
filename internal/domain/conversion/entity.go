package conversion

import (
	"time"

	"github.com/shopspring/decimal"
)

// MealVoucherConversion - Manual per-day override. When ConvertedToAllowance
// is set, automatic voucher and allowance are both suppressed for that day.
type MealVoucherConversion struct {
	ID                   string
	EmployeeID           string
	CompanyID            string
	Date                 time.Time
	ConvertedToAllowance bool
	Notes                *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OvertimeConversion - Monthly conversion ledger, one row per employee+month.
// TotalHours is manual plus automatic; Amount is the converted hours times
// the conversion rate.
type OvertimeConversion struct {
	ID          string
	EmployeeID  string
	CompanyID   string
	PeriodYear  int
	PeriodMonth int
	ManualHours decimal.Decimal
	TotalHours  decimal.Decimal
	Amount      decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SameTotals reports whether a recomputation would leave the row unchanged.
func (o OvertimeConversion) SameTotals(other OvertimeConversion) bool {
	return o.ManualHours.Equal(other.ManualHours) &&
		o.TotalHours.Equal(other.TotalHours) &&
		o.Amount.Equal(other.Amount)
}
