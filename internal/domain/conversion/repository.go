package conversion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines data access for conversion records.
// All methods include companyID parameter to prevent cross-company data access attacks.
type Repository interface {
	// Meal voucher conversions
	ListMealVoucherConversions(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]MealVoucherConversion, error)
	UpsertMealVoucherConversion(ctx context.Context, conv MealVoucherConversion) (MealVoucherConversion, error)
	DeleteMealVoucherConversion(ctx context.Context, companyID, employeeID string, date time.Time) error

	// Overtime conversions
	ListOvertimeConversions(ctx context.Context, companyID string, year, month int) ([]OvertimeConversion, error)
	GetOvertimeConversion(ctx context.Context, companyID, employeeID string, year, month int) (OvertimeConversion, error)
	// UpsertOvertimeConversion writes computed totals. An existing row keeps
	// its manual hours, which only AdjustManualOvertime changes.
	UpsertOvertimeConversion(ctx context.Context, conv OvertimeConversion) (OvertimeConversion, error)
	// AdjustManualOvertime moves the manual hours by delta while holding the
	// row, creating it when missing. A de-conversion beyond the stored manual
	// hours fails with ErrDistributionOverflow and changes nothing.
	AdjustManualOvertime(ctx context.Context, companyID, employeeID string, year, month int, delta decimal.Decimal) (OvertimeConversion, error)
}
