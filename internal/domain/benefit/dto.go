package benefit

import (
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========================================
// POLICY DTOs
// ========================================

// PolicyRequest carries the nullable policy fields shared by the company
// policy and employee override requests.
type PolicyRequest struct {
	LunchPolicy                  *string          `json:"lunch_policy,omitempty"`
	BenefitPolicy                *string          `json:"benefit_policy,omitempty"`
	MealVoucherMinHours          *decimal.Decimal `json:"meal_voucher_min_hours,omitempty"`
	MealVoucherAmount            *decimal.Decimal `json:"meal_voucher_amount,omitempty"`
	DailyAllowanceMinHours       *decimal.Decimal `json:"daily_allowance_min_hours,omitempty"`
	DailyAllowanceAmount         *decimal.Decimal `json:"daily_allowance_amount,omitempty"`
	SaturdayPolicy               *string          `json:"saturday_policy,omitempty"`
	SaturdayTripHourlyRate       *decimal.Decimal `json:"saturday_trip_hourly_rate,omitempty"`
	StandardDailyHours           *decimal.Decimal `json:"standard_daily_hours,omitempty"`
	OvertimeConversionRate       *decimal.Decimal `json:"overtime_conversion_rate,omitempty"`
	MealVoucherConversionAmount  *decimal.Decimal `json:"meal_voucher_conversion_amount,omitempty"`
	AutoConversionThresholdHours *decimal.Decimal `json:"auto_conversion_threshold_hours,omitempty"`
}

func (r *PolicyRequest) validate(errs validator.ValidationErrors) validator.ValidationErrors {
	if r.LunchPolicy != nil && !validator.IsInSlice(*r.LunchPolicy, LunchPolicyValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "lunch_policy",
			Message: "lunch_policy must be one of: none, short, standard, extended",
		})
	}
	if r.BenefitPolicy != nil && !validator.IsInSlice(*r.BenefitPolicy, BenefitPolicyValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "benefit_policy",
			Message: "benefit_policy must be one of: disabled, voucher_only, allowance_only, both",
		})
	}
	if r.SaturdayPolicy != nil && !validator.IsInSlice(*r.SaturdayPolicy, SaturdayPolicyValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "saturday_policy",
			Message: "saturday_policy must be one of: overtime, business_trip",
		})
	}

	amounts := map[string]*decimal.Decimal{
		"meal_voucher_min_hours":          r.MealVoucherMinHours,
		"meal_voucher_amount":             r.MealVoucherAmount,
		"daily_allowance_min_hours":       r.DailyAllowanceMinHours,
		"daily_allowance_amount":          r.DailyAllowanceAmount,
		"saturday_trip_hourly_rate":       r.SaturdayTripHourlyRate,
		"standard_daily_hours":            r.StandardDailyHours,
		"overtime_conversion_rate":        r.OvertimeConversionRate,
		"meal_voucher_conversion_amount":  r.MealVoucherConversionAmount,
		"auto_conversion_threshold_hours": r.AutoConversionThresholdHours,
	}
	for field, v := range amounts {
		if !validator.IsNonNegative(v) {
			errs = append(errs, validator.ValidationError{
				Field:   field,
				Message: field + " must not be negative",
			})
		}
	}
	if r.StandardDailyHours != nil && r.StandardDailyHours.IsZero() {
		errs = append(errs, validator.ValidationError{
			Field:   "standard_daily_hours",
			Message: "standard_daily_hours must be greater than zero",
		})
	}
	return errs
}

// Fields converts the request into PolicyFields. Call Validate first.
func (r *PolicyRequest) Fields() PolicyFields {
	f := PolicyFields{
		MealVoucherMinHours:          r.MealVoucherMinHours,
		MealVoucherAmount:            r.MealVoucherAmount,
		DailyAllowanceMinHours:       r.DailyAllowanceMinHours,
		DailyAllowanceAmount:         r.DailyAllowanceAmount,
		SaturdayTripHourlyRate:       r.SaturdayTripHourlyRate,
		StandardDailyHours:           r.StandardDailyHours,
		OvertimeConversionRate:       r.OvertimeConversionRate,
		MealVoucherConversionAmount:  r.MealVoucherConversionAmount,
		AutoConversionThresholdHours: r.AutoConversionThresholdHours,
	}
	if r.LunchPolicy != nil {
		p := LunchPolicy(*r.LunchPolicy)
		f.LunchPolicy = &p
	}
	if r.BenefitPolicy != nil {
		p := BenefitPolicy(*r.BenefitPolicy)
		f.BenefitPolicy = &p
	}
	if r.SaturdayPolicy != nil {
		p := SaturdayPolicy(*r.SaturdayPolicy)
		f.SaturdayPolicy = &p
	}
	return f
}

type UpsertCompanyPolicyRequest struct {
	CompanyID string `json:"-"`
	PolicyRequest
}

func (r *UpsertCompanyPolicyRequest) Validate() error {
	errs := r.PolicyRequest.validate(nil)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CreateOverrideRequest struct {
	CompanyID  string  `json:"-"`
	EmployeeID string  `json:"employee_id"`
	ValidFrom  string  `json:"valid_from"`         // YYYY-MM-DD
	ValidTo    *string `json:"valid_to,omitempty"` // YYYY-MM-DD, exclusive
	PolicyRequest
}

func (r *CreateOverrideRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	from, validFrom := validator.IsValidDate(r.ValidFrom)
	if !validFrom {
		errs = append(errs, validator.ValidationError{
			Field:   "valid_from",
			Message: "valid_from must be in YYYY-MM-DD format",
		})
	}

	if r.ValidTo != nil {
		to, valid := validator.IsValidDate(*r.ValidTo)
		if !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "valid_to",
				Message: "valid_to must be in YYYY-MM-DD format",
			})
		} else if validFrom && !to.After(from) {
			errs = append(errs, validator.ValidationError{
				Field:   "valid_to",
				Message: "valid_to must be after valid_from",
			})
		}
	}

	errs = r.PolicyRequest.validate(errs)

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type CompanyPolicyResponse struct {
	CompanyID string `json:"company_id"`
	PolicyFields
	UpdatedAt string `json:"updated_at,omitempty"`
}

type OverrideResponse struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	ValidFrom  string  `json:"valid_from"`
	ValidTo    *string `json:"valid_to,omitempty"`
	PolicyFields
}

type EffectiveSettingsResponse struct {
	EmployeeID                   string           `json:"employee_id"`
	Date                         string           `json:"date"`
	LunchPolicy                  LunchPolicy      `json:"lunch_policy"`
	BenefitPolicy                BenefitPolicy    `json:"benefit_policy"`
	MealVoucherMinHours          decimal.Decimal  `json:"meal_voucher_min_hours"`
	MealVoucherAmount            decimal.Decimal  `json:"meal_voucher_amount"`
	DailyAllowanceMinHours       decimal.Decimal  `json:"daily_allowance_min_hours"`
	DailyAllowanceAmount         decimal.Decimal  `json:"daily_allowance_amount"`
	SaturdayPolicy               SaturdayPolicy   `json:"saturday_policy"`
	SaturdayTripHourlyRate       decimal.Decimal  `json:"saturday_trip_hourly_rate"`
	StandardDailyHours           decimal.Decimal  `json:"standard_daily_hours"`
	OvertimeConversionRate       decimal.Decimal  `json:"overtime_conversion_rate"`
	MealVoucherConversionAmount  decimal.Decimal  `json:"meal_voucher_conversion_amount"`
	AutoConversionThresholdHours *decimal.Decimal `json:"auto_conversion_threshold_hours,omitempty"`
	OverrideID                   *string          `json:"override_id,omitempty"`
}

// ========================================
// MONTHLY SUMMARY DTOs
// ========================================

type MonthlySummaryResponse struct {
	CompanyID   string            `json:"company_id"`
	Month       string            `json:"month"`
	IsFromCache bool              `json:"is_from_cache"`
	IsFresh     bool              `json:"is_fresh"`
	ComputedAt  time.Time         `json:"computed_at"`
	Aggregate   *MonthlyAggregate `json:"aggregate,omitempty"`
}
