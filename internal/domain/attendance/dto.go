package attendance

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/validator"
)

// ========================================
// IMPORT DTOs
// ========================================

// PunchDirection marks a clock event as entering or leaving work.
type PunchDirection string

const (
	PunchIn  PunchDirection = "in"
	PunchOut PunchDirection = "out"
)

type Punch struct {
	Time      string         `json:"time"` // RFC3339
	Direction PunchDirection `json:"direction"`
}

// ImportRow is the aggregated shape a spreadsheet import must produce for
// one employee and one day.
type ImportRow struct {
	EmployeeID   string  `json:"employee_id"`
	Date         string  `json:"date"` // YYYY-MM-DD
	Punches      []Punch `json:"punches"`
	LunchMinutes *int    `json:"lunch_minutes,omitempty"`
	AbsenceType  *string `json:"absence_type,omitempty"`
}

func (r *ImportRow) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	if _, valid := validator.IsValidDate(r.Date); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}

	for i, p := range r.Punches {
		if _, valid := validator.IsValidDateTime(p.Time); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("punches[%d].time", i),
				Message: "time must be an RFC3339 timestamp",
			})
		}
		dir := strings.ToLower(string(p.Direction))
		if dir != string(PunchIn) && dir != string(PunchOut) {
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("punches[%d].direction", i),
				Message: "direction must be one of: in, out",
			})
		}
	}

	if r.LunchMinutes != nil && (*r.LunchMinutes < 0 || *r.LunchMinutes > 240) {
		errs = append(errs, validator.ValidationError{
			Field:   "lunch_minutes",
			Message: "lunch_minutes must be between 0 and 240",
		})
	}

	if r.AbsenceType == nil && len(r.Punches) == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "punches",
			Message: "punches are required when the row is not an absence",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ImportRequest struct {
	CompanyID string      `json:"-"`
	Rows      []ImportRow `json:"rows"`
}

// RowError reports why one import row was skipped.
type RowError struct {
	Row        int    `json:"row"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d (%s %s): %s", e.Row, e.EmployeeID, e.Date, e.Message)
}

func (e RowError) Unwrap() error { return e.Err }

type ImportResponse struct {
	Imported  int        `json:"imported"`
	Skipped   int        `json:"skipped"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}
