package company

import "time"

type Company struct {
	ID        string
	Name      string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Holiday annotates a company date. It never changes the computation.
type Holiday struct {
	ID        string
	CompanyID string
	Date      time.Time
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
