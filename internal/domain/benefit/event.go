package benefit

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceTable names a table whose rows feed the monthly computation.
type SourceTable string

const (
	TableAttendance             SourceTable = "attendances"
	TableWorkSessions           SourceTable = "work_sessions"
	TableAbsences               SourceTable = "absences"
	TableCompanyPolicies        SourceTable = "benefit_company_policies"
	TableEmployeeOverrides      SourceTable = "benefit_employee_overrides"
	TableMealVoucherConversions SourceTable = "meal_voucher_conversions"
	TableOvertimeConversions    SourceTable = "overtime_conversions"
	TableHolidays               SourceTable = "holidays"
)

// ChangeEvent is one create/update/delete notification from a source table.
// Every event is treated the same way: it invalidates the affected months.
type ChangeEvent struct {
	Table      SourceTable `json:"table"`
	Op         string      `json:"op"`
	CompanyID  string      `json:"company_id,omitempty"`
	EmployeeID string      `json:"employee_id,omitempty"`

	// Date pins the event to one month. Nil affects every cached month
	// (policy and override changes).
	Date *time.Time `json:"date,omitempty"`

	// Month is used by month-scoped rows such as overtime conversions.
	Month *Month `json:"month,omitempty"`
}

// AffectedMonth returns the month touched by the event, if it is month-scoped.
func (e ChangeEvent) AffectedMonth() (Month, bool) {
	if e.Month != nil {
		return *e.Month, true
	}
	if e.Date != nil {
		return MonthOf(*e.Date), true
	}
	return Month{}, false
}

type changePayload struct {
	Table      string  `json:"table"`
	Op         string  `json:"op"`
	CompanyID  string  `json:"company_id"`
	EmployeeID string  `json:"employee_id"`
	Date       *string `json:"date"`
	Month      *string `json:"month"`
}

// ParseChangeEvent decodes a NOTIFY payload.
func ParseChangeEvent(raw string) (ChangeEvent, error) {
	var p changePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change payload: %w", err)
	}

	ev := ChangeEvent{
		Table:      SourceTable(p.Table),
		Op:         p.Op,
		CompanyID:  p.CompanyID,
		EmployeeID: p.EmployeeID,
	}
	if p.Date != nil && *p.Date != "" {
		// triggers emit date columns as YYYY-MM-DD
		d, err := ParseDate((*p.Date)[:min(len(*p.Date), len(DateLayout))])
		if err != nil {
			return ChangeEvent{}, err
		}
		ev.Date = &d
	}
	if p.Month != nil && *p.Month != "" {
		m, err := ParseMonth(*p.Month)
		if err != nil {
			return ChangeEvent{}, err
		}
		ev.Month = &m
	}
	return ev, nil
}
