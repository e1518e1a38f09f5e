package benefit

import (
	"time"

	"github.com/shopspring/decimal"
)

// PolicyFields holds every configurable benefit field. A nil field means
// "not set at this level" and falls through to the next level.
type PolicyFields struct {
	LunchPolicy                  *LunchPolicy     `json:"lunch_policy,omitempty"`
	BenefitPolicy                *BenefitPolicy   `json:"benefit_policy,omitempty"`
	MealVoucherMinHours          *decimal.Decimal `json:"meal_voucher_min_hours,omitempty"`
	MealVoucherAmount            *decimal.Decimal `json:"meal_voucher_amount,omitempty"`
	DailyAllowanceMinHours       *decimal.Decimal `json:"daily_allowance_min_hours,omitempty"`
	DailyAllowanceAmount         *decimal.Decimal `json:"daily_allowance_amount,omitempty"`
	SaturdayPolicy               *SaturdayPolicy  `json:"saturday_policy,omitempty"`
	SaturdayTripHourlyRate       *decimal.Decimal `json:"saturday_trip_hourly_rate,omitempty"`
	StandardDailyHours           *decimal.Decimal `json:"standard_daily_hours,omitempty"`
	OvertimeConversionRate       *decimal.Decimal `json:"overtime_conversion_rate,omitempty"`
	MealVoucherConversionAmount  *decimal.Decimal `json:"meal_voucher_conversion_amount,omitempty"`
	AutoConversionThresholdHours *decimal.Decimal `json:"auto_conversion_threshold_hours,omitempty"`
}

// CompanyPolicy - Company-wide benefit defaults. One live row per company.
type CompanyPolicy struct {
	ID        string
	CompanyID string
	PolicyFields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmployeeOverride - Time-versioned exception to the company policy.
// The interval is [ValidFrom, ValidTo); a nil ValidTo is open-ended.
type EmployeeOverride struct {
	ID         string
	EmployeeID string
	CompanyID  string
	ValidFrom  time.Time
	ValidTo    *time.Time
	PolicyFields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether the override interval contains date.
func (o EmployeeOverride) Covers(date time.Time) bool {
	if o.ValidFrom.After(date) {
		return false
	}
	return o.ValidTo == nil || o.ValidTo.After(date)
}

// EffectiveSettings is the fully resolved configuration for one employee on
// one date. Every field is set.
type EffectiveSettings struct {
	LunchPolicy                 LunchPolicy
	BenefitPolicy               BenefitPolicy
	MealVoucherMinHours         decimal.Decimal
	MealVoucherAmount           decimal.Decimal
	DailyAllowanceMinHours      decimal.Decimal
	DailyAllowanceAmount        decimal.Decimal
	SaturdayPolicy              SaturdayPolicy
	SaturdayTripHourlyRate      decimal.Decimal
	StandardDailyHours          decimal.Decimal
	OvertimeConversionRate      decimal.Decimal
	MealVoucherConversionAmount decimal.Decimal

	// AutoConversionThresholdHours is nil when automatic conversion is off.
	AutoConversionThresholdHours *decimal.Decimal

	// OverrideID is the override that supplied at least the interval, if any.
	OverrideID *string
}

// DefaultSettings returns the built-in constants used when neither the
// employee override nor the company policy sets a field.
func DefaultSettings() EffectiveSettings {
	return EffectiveSettings{
		LunchPolicy:                 LunchPolicyStandard,
		BenefitPolicy:               BenefitPolicyVoucherOnly,
		MealVoucherMinHours:         decimal.NewFromInt(6),
		MealVoucherAmount:           decimal.RequireFromString("8.00"),
		DailyAllowanceMinHours:      decimal.NewFromInt(6),
		DailyAllowanceAmount:        decimal.RequireFromString("46.48"),
		SaturdayPolicy:              SaturdayPolicyOvertime,
		SaturdayTripHourlyRate:      decimal.Zero,
		StandardDailyHours:          decimal.NewFromInt(8),
		OvertimeConversionRate:      decimal.Zero,
		MealVoucherConversionAmount: decimal.RequireFromString("8.00"),
	}
}

// Caps are the two per-day ceilings of the tiered reimbursement scheme.
// Low applies to days that already received a meal benefit.
type Caps struct {
	High decimal.Decimal
	Low  decimal.Decimal
}

func DefaultCaps() Caps {
	return Caps{
		High: decimal.RequireFromString("46.48"),
		Low:  decimal.RequireFromString("30.98"),
	}
}
