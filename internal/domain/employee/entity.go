package employee

import (
	"time"
)

type Employee struct {
	ID               string
	CompanyID        string
	EmployeeCode     string
	FullName         string
	HireDate         time.Time
	ResignationDate  *time.Time
	EmploymentStatus EmploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// ActiveDuring reports whether the employee was employed on any day of [from, to).
func (e Employee) ActiveDuring(from, to time.Time) bool {
	if !e.HireDate.IsZero() && !e.HireDate.Before(to) {
		return false
	}
	if e.ResignationDate != nil && e.ResignationDate.Before(from) {
		return false
	}
	return true
}
