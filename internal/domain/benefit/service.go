package benefit

import (
	"context"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
)

// Service defines the benefits engine operations exposed to handlers and the CLI.
type Service interface {
	// GetMonthlySummary returns the cached aggregate, computing it on first use.
	// A stale payload may come back together with ErrCacheRecomputeFailure.
	GetMonthlySummary(ctx context.Context, companyID, month string) (MonthlySummaryResponse, error)

	// Recalculate forces a full recomputation of the company month.
	Recalculate(ctx context.Context, companyID, month string) (MonthlySummaryResponse, error)

	// Invalidate marks the company month stale and schedules a recompute.
	Invalidate(ctx context.Context, companyID, month string) error

	// ResolveSettings returns the effective configuration of one employee on one date.
	ResolveSettings(ctx context.Context, companyID, employeeID, date string) (EffectiveSettingsResponse, error)

	// Policy administration
	GetCompanyPolicy(ctx context.Context, companyID string) (CompanyPolicyResponse, error)
	UpsertCompanyPolicy(ctx context.Context, req UpsertCompanyPolicyRequest) (CompanyPolicyResponse, error)
	ListOverrides(ctx context.Context, companyID, employeeID string) ([]OverrideResponse, error)
	CreateOverride(ctx context.Context, req CreateOverrideRequest) (OverrideResponse, error)

	// Conversions
	ApplyManualOvertime(ctx context.Context, req conversion.ManualOvertimeRequest) (conversion.OvertimeConversionResponse, error)
	SetMealVoucherConversion(ctx context.Context, req conversion.MealVoucherConversionRequest) error
	ClearMealVoucherConversion(ctx context.Context, companyID, employeeID, date string) error
}
