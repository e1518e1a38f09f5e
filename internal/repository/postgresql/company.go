package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/company"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type companyRepositoryImpl struct {
	db *database.DB
}

func NewCompanyRepository(db *database.DB) company.CompanyRepository {
	return &companyRepositoryImpl{db: db}
}

// GetByID implements company.CompanyRepository.
func (c *companyRepositoryImpl) GetByID(ctx context.Context, id string) (company.Company, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		SELECT id, name, username, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	var comp company.Company
	err := q.QueryRow(ctx, query, id).Scan(&comp.ID, &comp.Name, &comp.Username, &comp.CreatedAt, &comp.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return company.Company{}, company.ErrCompanyNotFound
		}
		return company.Company{}, fmt.Errorf("failed to get company with id %s: %w", id, err)
	}
	return comp, nil
}

type holidayRepositoryImpl struct {
	db *database.DB
}

func NewHolidayRepository(db *database.DB) company.HolidayRepository {
	return &holidayRepositoryImpl{db: db}
}

// ListByCompanyAndRange implements company.HolidayRepository.
func (h *holidayRepositoryImpl) ListByCompanyAndRange(ctx context.Context, companyID string, from, to time.Time) ([]company.Holiday, error) {
	q := GetQuerier(ctx, h.db)

	query := `
		SELECT id, company_id, date, name, created_at, updated_at
		FROM holidays
		WHERE company_id = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`

	rows, err := q.Query(ctx, query, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []company.Holiday
	for rows.Next() {
		var hol company.Holiday
		if err := rows.Scan(&hol.ID, &hol.CompanyID, &hol.Date, &hol.Name, &hol.CreatedAt, &hol.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, hol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holidays: %w", err)
	}
	return holidays, nil
}
