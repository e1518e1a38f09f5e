package conversion

import (
	"fmt"

	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ManualOvertimeRequest adds (positive) or removes (negative) manually
// converted overtime hours for one employee and month.
type ManualOvertimeRequest struct {
	CompanyID  string          `json:"-"`
	EmployeeID string          `json:"employee_id"`
	Month      string          `json:"month"` // YYYY-MM
	DeltaHours decimal.Decimal `json:"delta_hours"`
}

func (r *ManualOvertimeRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	if !validator.IsValidMonth(r.Month) {
		errs = append(errs, validator.ValidationError{
			Field:   "month",
			Message: "month must be in YYYY-MM format",
		})
	}

	if r.DeltaHours.IsZero() {
		errs = append(errs, validator.ValidationError{
			Field:   "delta_hours",
			Message: "delta_hours must not be zero",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type MealVoucherConversionRequest struct {
	CompanyID            string  `json:"-"`
	EmployeeID           string  `json:"employee_id"`
	Date                 string  `json:"date"` // YYYY-MM-DD
	ConvertedToAllowance bool    `json:"converted_to_allowance"`
	Notes                *string `json:"notes,omitempty"`
}

func (r *MealVoucherConversionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	if _, valid := validator.IsValidDate(r.Date); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}

	if r.Notes != nil && len(*r.Notes) > 500 {
		errs = append(errs, validator.ValidationError{
			Field:   "notes",
			Message: "notes must not exceed 500 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type OvertimeConversionResponse struct {
	EmployeeID  string          `json:"employee_id"`
	Month       string          `json:"month"`
	ManualHours decimal.Decimal `json:"manual_hours"`
	TotalHours  decimal.Decimal `json:"total_hours"`
	Amount      decimal.Decimal `json:"amount"`
}

// ValidateDelta rejects a de-conversion larger than what was manually
// converted before. It must run before any distribution.
func ValidateDelta(previousManual, delta decimal.Decimal) error {
	if delta.IsNegative() && delta.Neg().GreaterThan(previousManual) {
		return ErrDistributionOverflow
	}
	return nil
}

// ApplyDelta returns the manual hours after delta. The error wraps
// ErrDistributionOverflow and names both amounts.
func ApplyDelta(previousManual, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateDelta(previousManual, delta); err != nil {
		return previousManual, fmt.Errorf("%w: %s hours converted, %s requested back",
			err, previousManual.StringFixed(2), delta.Neg().StringFixed(2))
	}
	return previousManual.Add(delta), nil
}
