package benefit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/shopspring/decimal"
)

// ResolveSettings merges the company policy with the employee override
// covering date. For each field the covering override wins when it sets the
// field, then the company policy, then the built-in default. When several
// overrides cover date, the one with the latest ValidFrom is used.
func ResolveSettings(policy *benefit.CompanyPolicy, overrides []benefit.EmployeeOverride, date time.Time) (benefit.EffectiveSettings, error) {
	if policy == nil {
		return benefit.EffectiveSettings{}, benefit.ErrConfigurationMissing
	}
	date = benefit.Date(date)

	var active *benefit.EmployeeOverride
	for i := range overrides {
		o := &overrides[i]
		if !o.Covers(date) {
			continue
		}
		if active == nil || o.ValidFrom.After(active.ValidFrom) {
			active = o
		}
	}

	var override benefit.PolicyFields
	s := benefit.DefaultSettings()
	if active != nil {
		override = active.PolicyFields
		id := active.ID
		s.OverrideID = &id
	}
	company := policy.PolicyFields

	s.LunchPolicy = pick(override.LunchPolicy, company.LunchPolicy, s.LunchPolicy)
	s.BenefitPolicy = pick(override.BenefitPolicy, company.BenefitPolicy, s.BenefitPolicy)
	s.SaturdayPolicy = pick(override.SaturdayPolicy, company.SaturdayPolicy, s.SaturdayPolicy)
	s.MealVoucherMinHours = pick(override.MealVoucherMinHours, company.MealVoucherMinHours, s.MealVoucherMinHours)
	s.MealVoucherAmount = pick(override.MealVoucherAmount, company.MealVoucherAmount, s.MealVoucherAmount)
	s.DailyAllowanceMinHours = pick(override.DailyAllowanceMinHours, company.DailyAllowanceMinHours, s.DailyAllowanceMinHours)
	s.DailyAllowanceAmount = pick(override.DailyAllowanceAmount, company.DailyAllowanceAmount, s.DailyAllowanceAmount)
	s.SaturdayTripHourlyRate = pick(override.SaturdayTripHourlyRate, company.SaturdayTripHourlyRate, s.SaturdayTripHourlyRate)
	s.StandardDailyHours = pick(override.StandardDailyHours, company.StandardDailyHours, s.StandardDailyHours)
	s.OvertimeConversionRate = pick(override.OvertimeConversionRate, company.OvertimeConversionRate, s.OvertimeConversionRate)
	s.MealVoucherConversionAmount = pick(override.MealVoucherConversionAmount, company.MealVoucherConversionAmount, s.MealVoucherConversionAmount)

	switch {
	case override.AutoConversionThresholdHours != nil:
		s.AutoConversionThresholdHours = copyDecimal(override.AutoConversionThresholdHours)
	case company.AutoConversionThresholdHours != nil:
		s.AutoConversionThresholdHours = copyDecimal(company.AutoConversionThresholdHours)
	}

	return s, nil
}

func pick[T any](override, company *T, fallback T) T {
	if override != nil {
		return *override
	}
	if company != nil {
		return *company
	}
	return fallback
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	v := *d
	return &v
}

// ValidateOverrides checks that one employee's intervals are sorted by
// ValidFrom and do not overlap.
func ValidateOverrides(overrides []benefit.EmployeeOverride) error {
	for i := 1; i < len(overrides); i++ {
		prev, cur := overrides[i-1], overrides[i]
		if cur.ValidFrom.Before(prev.ValidFrom) {
			return fmt.Errorf("%w: override %s starts before %s", benefit.ErrOverlappingOverrides, cur.ID, prev.ID)
		}
		if prev.ValidTo == nil || prev.ValidTo.After(cur.ValidFrom) {
			return fmt.Errorf("%w: override %s still open when %s starts", benefit.ErrOverlappingOverrides, prev.ID, cur.ID)
		}
	}
	return nil
}

// groupOverrides splits company-wide overrides by employee, each list sorted
// by ValidFrom.
func groupOverrides(overrides []benefit.EmployeeOverride) map[string][]benefit.EmployeeOverride {
	byEmployee := make(map[string][]benefit.EmployeeOverride)
	for _, o := range overrides {
		byEmployee[o.EmployeeID] = append(byEmployee[o.EmployeeID], o)
	}
	for id := range byEmployee {
		list := byEmployee[id]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ValidFrom.Before(list[j].ValidFrom) })
	}
	return byEmployee
}

// Resolver fetches configuration and resolves it for single lookups.
type Resolver struct {
	policyRepo benefit.PolicyRepository
}

func NewResolver(policyRepo benefit.PolicyRepository) *Resolver {
	return &Resolver{policyRepo: policyRepo}
}

func (r *Resolver) Resolve(ctx context.Context, companyID, employeeID string, date time.Time) (benefit.EffectiveSettings, error) {
	policy, err := r.policyRepo.GetCompanyPolicy(ctx, companyID)
	if err != nil {
		return benefit.EffectiveSettings{}, err
	}

	overrides, err := r.policyRepo.ListOverrides(ctx, companyID, employeeID)
	if err != nil {
		return benefit.EffectiveSettings{}, fmt.Errorf("failed to list overrides: %w", err)
	}

	return ResolveSettings(&policy, overrides, date)
}
