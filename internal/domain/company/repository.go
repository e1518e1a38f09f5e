package company

import (
	"context"
	"time"
)

type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (Company, error)
}

type HolidayRepository interface {
	ListByCompanyAndRange(ctx context.Context, companyID string, from, to time.Time) ([]Holiday, error)
}
