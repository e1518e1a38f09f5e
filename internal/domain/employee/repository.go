package employee

import (
	"context"
	"time"
)

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)

	// ListForPeriod returns employees of the company employed during [from, to),
	// ordered by ID.
	ListForPeriod(ctx context.Context, companyID string, from, to time.Time) ([]Employee, error)
}
