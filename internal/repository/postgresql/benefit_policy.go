package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type policyRepositoryImpl struct {
	db *database.DB
}

func NewPolicyRepository(db *database.DB) benefit.PolicyRepository {
	return &policyRepositoryImpl{db: db}
}

const policyColumns = `lunch_policy, benefit_policy, meal_voucher_min_hours, meal_voucher_amount,
	daily_allowance_min_hours, daily_allowance_amount, saturday_policy, saturday_trip_hourly_rate,
	standard_daily_hours, overtime_conversion_rate, meal_voucher_conversion_amount,
	auto_conversion_threshold_hours`

// policyRow is the nullable column set shared by company policies and
// employee overrides.
type policyRow struct {
	lunch, benefit, saturday                   *string
	mvMin, mvAmount, daMin, daAmount, tripRate decimal.NullDecimal
	standard, otRate, mvcAmount, threshold     decimal.NullDecimal
}

func (r *policyRow) targets() []any {
	return []any{
		&r.lunch, &r.benefit, &r.mvMin, &r.mvAmount,
		&r.daMin, &r.daAmount, &r.saturday, &r.tripRate,
		&r.standard, &r.otRate, &r.mvcAmount,
		&r.threshold,
	}
}

func (r *policyRow) fields() (benefit.PolicyFields, error) {
	var f benefit.PolicyFields
	if r.lunch != nil {
		p, err := benefit.ParseLunchPolicy(*r.lunch)
		if err != nil {
			return f, err
		}
		f.LunchPolicy = &p
	}
	if r.benefit != nil {
		p, err := benefit.ParseBenefitPolicy(*r.benefit)
		if err != nil {
			return f, err
		}
		f.BenefitPolicy = &p
	}
	if r.saturday != nil {
		p, err := benefit.ParseSaturdayPolicy(*r.saturday)
		if err != nil {
			return f, err
		}
		f.SaturdayPolicy = &p
	}
	f.MealVoucherMinHours = fromNull(r.mvMin)
	f.MealVoucherAmount = fromNull(r.mvAmount)
	f.DailyAllowanceMinHours = fromNull(r.daMin)
	f.DailyAllowanceAmount = fromNull(r.daAmount)
	f.SaturdayTripHourlyRate = fromNull(r.tripRate)
	f.StandardDailyHours = fromNull(r.standard)
	f.OvertimeConversionRate = fromNull(r.otRate)
	f.MealVoucherConversionAmount = fromNull(r.mvcAmount)
	f.AutoConversionThresholdHours = fromNull(r.threshold)
	return f, nil
}

func policyArgs(f benefit.PolicyFields) []any {
	var lunch, ben, saturday *string
	if f.LunchPolicy != nil {
		s := string(*f.LunchPolicy)
		lunch = &s
	}
	if f.BenefitPolicy != nil {
		s := string(*f.BenefitPolicy)
		ben = &s
	}
	if f.SaturdayPolicy != nil {
		s := string(*f.SaturdayPolicy)
		saturday = &s
	}
	return []any{
		lunch, ben, toNull(f.MealVoucherMinHours), toNull(f.MealVoucherAmount),
		toNull(f.DailyAllowanceMinHours), toNull(f.DailyAllowanceAmount), saturday, toNull(f.SaturdayTripHourlyRate),
		toNull(f.StandardDailyHours), toNull(f.OvertimeConversionRate), toNull(f.MealVoucherConversionAmount),
		toNull(f.AutoConversionThresholdHours),
	}
}

func fromNull(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func toNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

// GetCompanyPolicy implements benefit.PolicyRepository.
func (p *policyRepositoryImpl) GetCompanyPolicy(ctx context.Context, companyID string) (benefit.CompanyPolicy, error) {
	q := GetQuerier(ctx, p.db)

	query := `SELECT id, company_id, ` + policyColumns + `, created_at, updated_at
		FROM benefit_company_policies
		WHERE company_id = $1
	`

	var (
		policy benefit.CompanyPolicy
		row    policyRow
	)
	dest := append([]any{&policy.ID, &policy.CompanyID}, row.targets()...)
	dest = append(dest, &policy.CreatedAt, &policy.UpdatedAt)

	if err := q.QueryRow(ctx, query, companyID).Scan(dest...); err != nil {
		if err == pgx.ErrNoRows {
			return benefit.CompanyPolicy{}, benefit.ErrConfigurationMissing
		}
		return benefit.CompanyPolicy{}, fmt.Errorf("failed to get company policy: %w", err)
	}

	fields, err := row.fields()
	if err != nil {
		return benefit.CompanyPolicy{}, fmt.Errorf("company policy %s: %w", policy.ID, err)
	}
	policy.PolicyFields = fields
	return policy, nil
}

// UpsertCompanyPolicy implements benefit.PolicyRepository.
func (p *policyRepositoryImpl) UpsertCompanyPolicy(ctx context.Context, policy benefit.CompanyPolicy) (benefit.CompanyPolicy, error) {
	q := GetQuerier(ctx, p.db)

	query := `
		INSERT INTO benefit_company_policies (company_id, ` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (company_id) DO UPDATE SET
			lunch_policy = EXCLUDED.lunch_policy,
			benefit_policy = EXCLUDED.benefit_policy,
			meal_voucher_min_hours = EXCLUDED.meal_voucher_min_hours,
			meal_voucher_amount = EXCLUDED.meal_voucher_amount,
			daily_allowance_min_hours = EXCLUDED.daily_allowance_min_hours,
			daily_allowance_amount = EXCLUDED.daily_allowance_amount,
			saturday_policy = EXCLUDED.saturday_policy,
			saturday_trip_hourly_rate = EXCLUDED.saturday_trip_hourly_rate,
			standard_daily_hours = EXCLUDED.standard_daily_hours,
			overtime_conversion_rate = EXCLUDED.overtime_conversion_rate,
			meal_voucher_conversion_amount = EXCLUDED.meal_voucher_conversion_amount,
			auto_conversion_threshold_hours = EXCLUDED.auto_conversion_threshold_hours,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	args := append([]any{policy.CompanyID}, policyArgs(policy.PolicyFields)...)
	if err := q.QueryRow(ctx, query, args...).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt); err != nil {
		return benefit.CompanyPolicy{}, fmt.Errorf("failed to upsert company policy: %w", err)
	}
	return policy, nil
}

const overrideSelect = `SELECT id, employee_id, company_id, valid_from, valid_to, ` + policyColumns + `, created_at, updated_at
	FROM benefit_employee_overrides`

func (p *policyRepositoryImpl) queryOverrides(ctx context.Context, query string, args ...any) ([]benefit.EmployeeOverride, error) {
	q := GetQuerier(ctx, p.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []benefit.EmployeeOverride
	for rows.Next() {
		var (
			o   benefit.EmployeeOverride
			row policyRow
		)
		dest := append([]any{&o.ID, &o.EmployeeID, &o.CompanyID, &o.ValidFrom, &o.ValidTo}, row.targets()...)
		dest = append(dest, &o.CreatedAt, &o.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		fields, err := row.fields()
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", o.ID, err)
		}
		o.PolicyFields = fields
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overrides: %w", err)
	}
	return overrides, nil
}

// ListOverrides implements benefit.PolicyRepository.
func (p *policyRepositoryImpl) ListOverrides(ctx context.Context, companyID, employeeID string) ([]benefit.EmployeeOverride, error) {
	return p.queryOverrides(ctx, overrideSelect+`
		WHERE company_id = $1 AND employee_id = $2
		ORDER BY valid_from, created_at
	`, companyID, employeeID)
}

// ListOverridesByCompany implements benefit.PolicyRepository.
func (p *policyRepositoryImpl) ListOverridesByCompany(ctx context.Context, companyID string, from, to time.Time) ([]benefit.EmployeeOverride, error) {
	return p.queryOverrides(ctx, overrideSelect+`
		WHERE company_id = $1
		  AND valid_from < $3
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY employee_id, valid_from, created_at
	`, companyID, from, to)
}

// CreateOverride implements benefit.PolicyRepository.
func (p *policyRepositoryImpl) CreateOverride(ctx context.Context, override benefit.EmployeeOverride) (benefit.EmployeeOverride, error) {
	err := WithTransaction(ctx, p.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE benefit_employee_overrides
			SET valid_to = $3, updated_at = NOW()
			WHERE company_id = $1 AND employee_id = $2
			  AND valid_to IS NULL AND valid_from < $3
		`, override.CompanyID, override.EmployeeID, override.ValidFrom)
		if err != nil {
			return fmt.Errorf("failed to close open override: %w", err)
		}

		query := `
			INSERT INTO benefit_employee_overrides (employee_id, company_id, valid_from, valid_to, ` + policyColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id, created_at, updated_at
		`
		args := append([]any{override.EmployeeID, override.CompanyID, override.ValidFrom, override.ValidTo}, policyArgs(override.PolicyFields)...)
		if err := tx.QueryRow(ctx, query, args...).Scan(&override.ID, &override.CreatedAt, &override.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create override: %w", err)
		}
		return nil
	})
	if err != nil {
		return benefit.EmployeeOverride{}, err
	}
	return override, nil
}
