package benefit

import (
	"context"
	"time"
)

// PolicyRepository defines data access for company policies and employee overrides.
// All methods include companyID parameter to prevent cross-company data access attacks.
type PolicyRepository interface {
	// GetCompanyPolicy returns ErrConfigurationMissing when the company has no policy row.
	GetCompanyPolicy(ctx context.Context, companyID string) (CompanyPolicy, error)
	UpsertCompanyPolicy(ctx context.Context, policy CompanyPolicy) (CompanyPolicy, error)

	// ListOverrides returns one employee's overrides sorted by ValidFrom.
	ListOverrides(ctx context.Context, companyID, employeeID string) ([]EmployeeOverride, error)

	// ListOverridesByCompany returns overrides overlapping [from, to), sorted
	// by employee then ValidFrom.
	ListOverridesByCompany(ctx context.Context, companyID string, from, to time.Time) ([]EmployeeOverride, error)

	// CreateOverride closes the employee's open interval at the new ValidFrom
	// and inserts the new override.
	CreateOverride(ctx context.Context, override EmployeeOverride) (EmployeeOverride, error)
}
