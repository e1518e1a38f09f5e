package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionType classifies a work session inside a day.
type SessionType string

const (
	SessionTypeWork  SessionType = "work"
	SessionTypeLunch SessionType = "lunch"
	SessionTypeOther SessionType = "other"
)

var SessionTypeValues = []string{
	string(SessionTypeWork),
	string(SessionTypeLunch),
	string(SessionTypeOther),
}

// Record is one employee's attendance for one day.
// (EmployeeID, Date) is the stable key used by imports.
type Record struct {
	ID         string
	EmployeeID string
	CompanyID  string
	Date       time.Time
	Start      *time.Time
	End        *time.Time
	Sessions   []WorkSession

	// Lunch is taken from the explicit window first, then LunchMinutes.
	LunchStart   *time.Time
	LunchEnd     *time.Time
	LunchMinutes *int

	IsAbsent    bool
	AbsenceType *string

	// Derived values persisted by the clock-in flow; informational only.
	TotalMinutes    *int
	OvertimeMinutes *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkSession is an ordered sub-interval of a day, owned by one Record.
type WorkSession struct {
	ID       string
	RecordID string
	Order    int
	Start    time.Time
	End      time.Time
	Type     SessionType
}

func (s WorkSession) Duration() time.Duration {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Absence is a non-worked day recorded independently of attendance.
type Absence struct {
	ID         string
	EmployeeID string
	CompanyID  string
	Date       time.Time
	Type       string
	Hours      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
