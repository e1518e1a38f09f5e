package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type conversionRepositoryImpl struct {
	db *database.DB
}

func NewConversionRepository(db *database.DB) conversion.Repository {
	return &conversionRepositoryImpl{db: db}
}

// ListMealVoucherConversions implements conversion.Repository.
func (c *conversionRepositoryImpl) ListMealVoucherConversions(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]conversion.MealVoucherConversion, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		SELECT id, employee_id, company_id, date, converted_to_allowance, notes, created_at, updated_at
		FROM meal_voucher_conversions
		WHERE company_id = $1
		  AND date >= $2 AND date < $3
		  AND ($4::uuid[] IS NULL OR employee_id = ANY($4))
		ORDER BY employee_id, date
	`

	rows, err := q.Query(ctx, query, companyID, from, to, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal voucher conversions: %w", err)
	}
	defer rows.Close()

	var convs []conversion.MealVoucherConversion
	for rows.Next() {
		var mv conversion.MealVoucherConversion
		if err := rows.Scan(&mv.ID, &mv.EmployeeID, &mv.CompanyID, &mv.Date, &mv.ConvertedToAllowance, &mv.Notes, &mv.CreatedAt, &mv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal voucher conversion: %w", err)
		}
		convs = append(convs, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meal voucher conversions: %w", err)
	}
	return convs, nil
}

// UpsertMealVoucherConversion implements conversion.Repository.
func (c *conversionRepositoryImpl) UpsertMealVoucherConversion(ctx context.Context, conv conversion.MealVoucherConversion) (conversion.MealVoucherConversion, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		INSERT INTO meal_voucher_conversions (employee_id, company_id, date, converted_to_allowance, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id, date) DO UPDATE SET
			converted_to_allowance = EXCLUDED.converted_to_allowance,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query, conv.EmployeeID, conv.CompanyID, conv.Date, conv.ConvertedToAllowance, conv.Notes).
		Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return conversion.MealVoucherConversion{}, fmt.Errorf("failed to upsert meal voucher conversion: %w", err)
	}
	return conv, nil
}

// DeleteMealVoucherConversion implements conversion.Repository.
func (c *conversionRepositoryImpl) DeleteMealVoucherConversion(ctx context.Context, companyID, employeeID string, date time.Time) error {
	q := GetQuerier(ctx, c.db)

	tag, err := q.Exec(ctx, `
		DELETE FROM meal_voucher_conversions
		WHERE company_id = $1 AND employee_id = $2 AND date = $3
	`, companyID, employeeID, date)
	if err != nil {
		return fmt.Errorf("failed to delete meal voucher conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversion.ErrMealVoucherConversionGone
	}
	return nil
}

const overtimeColumns = `id, employee_id, company_id, period_year, period_month,
	manual_hours, total_hours, amount, created_at, updated_at`

func scanOvertime(row pgx.Row) (conversion.OvertimeConversion, error) {
	var ot conversion.OvertimeConversion
	err := row.Scan(
		&ot.ID, &ot.EmployeeID, &ot.CompanyID, &ot.PeriodYear, &ot.PeriodMonth,
		&ot.ManualHours, &ot.TotalHours, &ot.Amount, &ot.CreatedAt, &ot.UpdatedAt,
	)
	return ot, err
}

// ListOvertimeConversions implements conversion.Repository.
func (c *conversionRepositoryImpl) ListOvertimeConversions(ctx context.Context, companyID string, year, month int) ([]conversion.OvertimeConversion, error) {
	q := GetQuerier(ctx, c.db)

	query := `SELECT ` + overtimeColumns + `
		FROM overtime_conversions
		WHERE company_id = $1 AND period_year = $2 AND period_month = $3
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, companyID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list overtime conversions: %w", err)
	}
	defer rows.Close()

	var convs []conversion.OvertimeConversion
	for rows.Next() {
		ot, err := scanOvertime(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan overtime conversion: %w", err)
		}
		convs = append(convs, ot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overtime conversions: %w", err)
	}
	return convs, nil
}

// GetOvertimeConversion implements conversion.Repository.
func (c *conversionRepositoryImpl) GetOvertimeConversion(ctx context.Context, companyID, employeeID string, year, month int) (conversion.OvertimeConversion, error) {
	q := GetQuerier(ctx, c.db)

	query := `SELECT ` + overtimeColumns + `
		FROM overtime_conversions
		WHERE company_id = $1 AND employee_id = $2 AND period_year = $3 AND period_month = $4
	`

	ot, err := scanOvertime(q.QueryRow(ctx, query, companyID, employeeID, year, month))
	if err != nil {
		if err == pgx.ErrNoRows {
			return conversion.OvertimeConversion{}, conversion.ErrOvertimeConversionMissing
		}
		return conversion.OvertimeConversion{}, fmt.Errorf("failed to get overtime conversion: %w", err)
	}
	return ot, nil
}

// UpsertOvertimeConversion implements conversion.Repository.
func (c *conversionRepositoryImpl) UpsertOvertimeConversion(ctx context.Context, conv conversion.OvertimeConversion) (conversion.OvertimeConversion, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		INSERT INTO overtime_conversions (employee_id, company_id, period_year, period_month, manual_hours, total_hours, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (employee_id, period_year, period_month) DO UPDATE SET
			total_hours = EXCLUDED.total_hours,
			amount = EXCLUDED.amount,
			updated_at = NOW()
		RETURNING id, manual_hours, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		conv.EmployeeID, conv.CompanyID, conv.PeriodYear, conv.PeriodMonth,
		conv.ManualHours, conv.TotalHours, conv.Amount,
	).Scan(&conv.ID, &conv.ManualHours, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return conversion.OvertimeConversion{}, fmt.Errorf("failed to upsert overtime conversion: %w", err)
	}
	return conv, nil
}

// AdjustManualOvertime implements conversion.Repository.
func (c *conversionRepositoryImpl) AdjustManualOvertime(ctx context.Context, companyID, employeeID string, year, month int, delta decimal.Decimal) (conversion.OvertimeConversion, error) {
	var out conversion.OvertimeConversion
	err := WithTransaction(ctx, c.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO overtime_conversions (employee_id, company_id, period_year, period_month)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (employee_id, period_year, period_month) DO NOTHING
		`, employeeID, companyID, year, month)
		if err != nil {
			return fmt.Errorf("failed to ensure overtime conversion: %w", err)
		}

		query := `SELECT ` + overtimeColumns + `
			FROM overtime_conversions
			WHERE company_id = $1 AND employee_id = $2 AND period_year = $3 AND period_month = $4
			FOR UPDATE
		`
		current, err := scanOvertime(tx.QueryRow(ctx, query, companyID, employeeID, year, month))
		if err != nil {
			if err == pgx.ErrNoRows {
				return conversion.ErrOvertimeConversionMissing
			}
			return fmt.Errorf("failed to lock overtime conversion: %w", err)
		}

		manual, err := conversion.ApplyDelta(current.ManualHours, delta)
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			UPDATE overtime_conversions
			SET manual_hours = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, current.ID, manual).Scan(&current.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update overtime conversion: %w", err)
		}
		current.ManualHours = manual
		out = current
		return nil
	})
	if err != nil {
		return conversion.OvertimeConversion{}, err
	}
	return out, nil
}
