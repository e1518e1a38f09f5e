package benefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
)

type BenefitServiceImpl struct {
	cache          *MonthlyCache
	resolver       *Resolver
	policyRepo     benefit.PolicyRepository
	conversionRepo conversion.Repository
	employeeRepo   employee.EmployeeRepository
}

func NewBenefitService(
	cache *MonthlyCache,
	policyRepo benefit.PolicyRepository,
	conversionRepo conversion.Repository,
	employeeRepo employee.EmployeeRepository,
) benefit.Service {
	return &BenefitServiceImpl{
		cache:          cache,
		resolver:       NewResolver(policyRepo),
		policyRepo:     policyRepo,
		conversionRepo: conversionRepo,
		employeeRepo:   employeeRepo,
	}
}

// ========== MONTHLY SUMMARY ==========

// GetMonthlySummary returns the cached aggregate. When a recompute failed
// but a stale aggregate exists, both the stale response and the error are
// returned.
func (s *BenefitServiceImpl) GetMonthlySummary(ctx context.Context, companyID, month string) (benefit.MonthlySummaryResponse, error) {
	m, err := parseMonth(month)
	if err != nil {
		return benefit.MonthlySummaryResponse{}, err
	}

	res, err := s.cache.GetOrCompute(ctx, companyID, m)
	return summaryResponse(companyID, m, res), err
}

func (s *BenefitServiceImpl) Recalculate(ctx context.Context, companyID, month string) (benefit.MonthlySummaryResponse, error) {
	m, err := parseMonth(month)
	if err != nil {
		return benefit.MonthlySummaryResponse{}, err
	}

	res, err := s.cache.RecalculateCompany(ctx, companyID, m)
	return summaryResponse(companyID, m, res), err
}

func (s *BenefitServiceImpl) Invalidate(ctx context.Context, companyID, month string) error {
	m, err := parseMonth(month)
	if err != nil {
		return err
	}
	s.cache.InvalidateCompany(companyID, m)
	return nil
}

func parseMonth(month string) (benefit.Month, error) {
	m, err := benefit.ParseMonth(month)
	if err != nil {
		return benefit.Month{}, err
	}
	if err := m.Validate(); err != nil {
		return benefit.Month{}, err
	}
	return m, nil
}

func summaryResponse(companyID string, m benefit.Month, res Result) benefit.MonthlySummaryResponse {
	return benefit.MonthlySummaryResponse{
		CompanyID:   companyID,
		Month:       m.String(),
		IsFromCache: res.IsFromCache,
		IsFresh:     res.IsFresh,
		ComputedAt:  res.ComputedAt,
		Aggregate:   res.Payload,
	}
}

// ========== SETTINGS ==========

func (s *BenefitServiceImpl) ResolveSettings(ctx context.Context, companyID, employeeID, date string) (benefit.EffectiveSettingsResponse, error) {
	d, err := benefit.ParseDate(date)
	if err != nil {
		return benefit.EffectiveSettingsResponse{}, err
	}

	if _, err := s.employeeRepo.GetByID(ctx, employeeID, companyID); err != nil {
		return benefit.EffectiveSettingsResponse{}, err
	}

	settings, err := s.resolver.Resolve(ctx, companyID, employeeID, d)
	if err != nil {
		return benefit.EffectiveSettingsResponse{}, err
	}

	return benefit.EffectiveSettingsResponse{
		EmployeeID:                   employeeID,
		Date:                         d.Format(benefit.DateLayout),
		LunchPolicy:                  settings.LunchPolicy,
		BenefitPolicy:                settings.BenefitPolicy,
		MealVoucherMinHours:          settings.MealVoucherMinHours,
		MealVoucherAmount:            settings.MealVoucherAmount,
		DailyAllowanceMinHours:       settings.DailyAllowanceMinHours,
		DailyAllowanceAmount:         settings.DailyAllowanceAmount,
		SaturdayPolicy:               settings.SaturdayPolicy,
		SaturdayTripHourlyRate:       settings.SaturdayTripHourlyRate,
		StandardDailyHours:           settings.StandardDailyHours,
		OvertimeConversionRate:       settings.OvertimeConversionRate,
		MealVoucherConversionAmount:  settings.MealVoucherConversionAmount,
		AutoConversionThresholdHours: settings.AutoConversionThresholdHours,
		OverrideID:                   settings.OverrideID,
	}, nil
}

func (s *BenefitServiceImpl) GetCompanyPolicy(ctx context.Context, companyID string) (benefit.CompanyPolicyResponse, error) {
	policy, err := s.policyRepo.GetCompanyPolicy(ctx, companyID)
	if err != nil {
		return benefit.CompanyPolicyResponse{}, err
	}
	return policyResponse(policy), nil
}

func (s *BenefitServiceImpl) UpsertCompanyPolicy(ctx context.Context, req benefit.UpsertCompanyPolicyRequest) (benefit.CompanyPolicyResponse, error) {
	if err := req.Validate(); err != nil {
		return benefit.CompanyPolicyResponse{}, err
	}

	current, err := s.policyRepo.GetCompanyPolicy(ctx, req.CompanyID)
	if err != nil && !errors.Is(err, benefit.ErrConfigurationMissing) {
		return benefit.CompanyPolicyResponse{}, err
	}
	current.CompanyID = req.CompanyID
	current.PolicyFields = req.Fields()

	saved, err := s.policyRepo.UpsertCompanyPolicy(ctx, current)
	if err != nil {
		return benefit.CompanyPolicyResponse{}, fmt.Errorf("failed to save company policy: %w", err)
	}

	s.cache.InvalidateAll(req.CompanyID)
	slog.Info("company benefit policy updated", "company_id", req.CompanyID)

	return policyResponse(saved), nil
}

func policyResponse(p benefit.CompanyPolicy) benefit.CompanyPolicyResponse {
	resp := benefit.CompanyPolicyResponse{
		CompanyID:    p.CompanyID,
		PolicyFields: p.PolicyFields,
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *BenefitServiceImpl) ListOverrides(ctx context.Context, companyID, employeeID string) ([]benefit.OverrideResponse, error) {
	overrides, err := s.policyRepo.ListOverrides(ctx, companyID, employeeID)
	if err != nil {
		return nil, err
	}

	responses := make([]benefit.OverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		responses = append(responses, overrideResponse(o))
	}
	return responses, nil
}

// CreateOverride adds a new interval for the employee. The previous open
// interval is closed at the new ValidFrom; anything else that would overlap
// is rejected.
func (s *BenefitServiceImpl) CreateOverride(ctx context.Context, req benefit.CreateOverrideRequest) (benefit.OverrideResponse, error) {
	if err := req.Validate(); err != nil {
		return benefit.OverrideResponse{}, err
	}

	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID, req.CompanyID); err != nil {
		return benefit.OverrideResponse{}, err
	}

	from, err := benefit.ParseDate(req.ValidFrom)
	if err != nil {
		return benefit.OverrideResponse{}, err
	}
	override := benefit.EmployeeOverride{
		EmployeeID:   req.EmployeeID,
		CompanyID:    req.CompanyID,
		ValidFrom:    from,
		PolicyFields: req.Fields(),
	}
	if req.ValidTo != nil {
		to, err := benefit.ParseDate(*req.ValidTo)
		if err != nil {
			return benefit.OverrideResponse{}, err
		}
		override.ValidTo = &to
	}

	existing, err := s.policyRepo.ListOverrides(ctx, req.CompanyID, req.EmployeeID)
	if err != nil {
		return benefit.OverrideResponse{}, fmt.Errorf("failed to list overrides: %w", err)
	}
	if err := ValidateOverrides(planOverrides(existing, override)); err != nil {
		return benefit.OverrideResponse{}, err
	}

	created, err := s.policyRepo.CreateOverride(ctx, override)
	if err != nil {
		return benefit.OverrideResponse{}, err
	}

	s.cache.InvalidateAll(req.CompanyID)
	slog.Info("benefit override created",
		"company_id", req.CompanyID,
		"employee_id", req.EmployeeID,
		"valid_from", req.ValidFrom,
	)

	return overrideResponse(created), nil
}

// planOverrides returns the interval list as it will look after next is
// written: the open interval starting before next is closed at its ValidFrom.
func planOverrides(existing []benefit.EmployeeOverride, next benefit.EmployeeOverride) []benefit.EmployeeOverride {
	planned := make([]benefit.EmployeeOverride, 0, len(existing)+1)
	for _, o := range existing {
		if o.ValidTo == nil && o.ValidFrom.Before(next.ValidFrom) {
			to := next.ValidFrom
			o.ValidTo = &to
		}
		planned = append(planned, o)
	}
	planned = append(planned, next)
	sort.SliceStable(planned, func(i, j int) bool { return planned[i].ValidFrom.Before(planned[j].ValidFrom) })
	return planned
}

func overrideResponse(o benefit.EmployeeOverride) benefit.OverrideResponse {
	resp := benefit.OverrideResponse{
		ID:           o.ID,
		EmployeeID:   o.EmployeeID,
		ValidFrom:    o.ValidFrom.Format(benefit.DateLayout),
		PolicyFields: o.PolicyFields,
	}
	if o.ValidTo != nil {
		to := o.ValidTo.Format(benefit.DateLayout)
		resp.ValidTo = &to
	}
	return resp
}

// ========== CONVERSIONS ==========

// ApplyManualOvertime adjusts the manually converted hours of the month and
// recomputes it so the response carries the distributed totals.
func (s *BenefitServiceImpl) ApplyManualOvertime(ctx context.Context, req conversion.ManualOvertimeRequest) (conversion.OvertimeConversionResponse, error) {
	if err := req.Validate(); err != nil {
		return conversion.OvertimeConversionResponse{}, err
	}
	m, err := parseMonth(req.Month)
	if err != nil {
		return conversion.OvertimeConversionResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID, req.CompanyID)
	if err != nil {
		return conversion.OvertimeConversionResponse{}, err
	}

	saved, err := s.conversionRepo.AdjustManualOvertime(ctx, req.CompanyID, emp.ID, m.Year, int(m.Month), req.DeltaHours)
	if err != nil {
		if errors.Is(err, conversion.ErrDistributionOverflow) {
			return conversion.OvertimeConversionResponse{}, err
		}
		return conversion.OvertimeConversionResponse{}, fmt.Errorf("failed to save overtime conversion: %w", err)
	}

	resp := conversion.OvertimeConversionResponse{
		EmployeeID:  saved.EmployeeID,
		Month:       m.String(),
		ManualHours: saved.ManualHours,
		TotalHours:  saved.TotalHours,
		Amount:      saved.Amount,
	}

	res, err := s.cache.RecalculateCompany(ctx, req.CompanyID, m)
	if err != nil {
		slog.Warn("recompute after manual overtime failed", "company_id", req.CompanyID, "month", m.String(), "error", err)
		return resp, nil
	}
	if res.Payload != nil {
		for _, e := range res.Payload.Employees {
			if e.EmployeeID != req.EmployeeID {
				continue
			}
			resp.ManualHours = e.OvertimeConversion.ManualHours
			resp.TotalHours = e.OvertimeConversion.ManualHours.Add(e.OvertimeConversion.AutomaticHours)
			resp.Amount = e.OvertimeConversion.Amount
		}
	}
	return resp, nil
}

func (s *BenefitServiceImpl) SetMealVoucherConversion(ctx context.Context, req conversion.MealVoucherConversionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	d, err := benefit.ParseDate(req.Date)
	if err != nil {
		return err
	}

	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID, req.CompanyID); err != nil {
		return err
	}

	_, err = s.conversionRepo.UpsertMealVoucherConversion(ctx, conversion.MealVoucherConversion{
		EmployeeID:           req.EmployeeID,
		CompanyID:            req.CompanyID,
		Date:                 d,
		ConvertedToAllowance: req.ConvertedToAllowance,
		Notes:                req.Notes,
	})
	if err != nil {
		return fmt.Errorf("failed to save meal voucher conversion: %w", err)
	}

	s.cache.InvalidateCompany(req.CompanyID, benefit.MonthOf(d))
	return nil
}

func (s *BenefitServiceImpl) ClearMealVoucherConversion(ctx context.Context, companyID, employeeID, date string) error {
	d, err := benefit.ParseDate(date)
	if err != nil {
		return err
	}

	if err := s.conversionRepo.DeleteMealVoucherConversion(ctx, companyID, employeeID, d); err != nil {
		return err
	}

	s.cache.InvalidateCompany(companyID, benefit.MonthOf(d))
	return nil
}
