package attendance

import (
	"context"
	"time"
)

// Repository defines data access methods for attendance and absences.
// All methods include companyID parameter to prevent cross-company data access attacks.
type Repository interface {
	// ListByCompanyAndRange returns records with their sessions for [from, to).
	ListByCompanyAndRange(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]Record, error)

	// ListAbsencesByCompanyAndRange returns absences for [from, to).
	ListAbsencesByCompanyAndRange(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]Absence, error)

	// ReplaceDay upserts the record keyed by (employee, date) and rebuilds its
	// sessions wholesale. Running it twice with the same input is a no-op.
	ReplaceDay(ctx context.Context, record Record) (Record, error)
}
