package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
)

type ImportServiceImpl struct {
	attendanceRepo attendance.Repository
	employeeRepo   employee.EmployeeRepository
}

func NewImportService(attendanceRepo attendance.Repository, employeeRepo employee.EmployeeRepository) attendance.ImportService {
	return &ImportServiceImpl{
		attendanceRepo: attendanceRepo,
		employeeRepo:   employeeRepo,
	}
}

// Import writes every row that pairs cleanly. Each row replaces the stored
// day for (employee, date), so running the same import twice is harmless.
func (s *ImportServiceImpl) Import(ctx context.Context, req attendance.ImportRequest) (attendance.ImportResponse, error) {
	if len(req.Rows) == 0 {
		return attendance.ImportResponse{}, attendance.ErrEmptyImport
	}

	var resp attendance.ImportResponse
	known := make(map[string]bool)

	for i, row := range req.Rows {
		rowErr := func(err error) {
			resp.Skipped++
			resp.RowErrors = append(resp.RowErrors, attendance.RowError{
				Row:        i + 1,
				EmployeeID: row.EmployeeID,
				Date:       row.Date,
				Message:    err.Error(),
				Err:        err,
			})
		}

		if err := row.Validate(); err != nil {
			rowErr(err)
			continue
		}

		ok, seen := known[row.EmployeeID]
		if !seen {
			_, err := s.employeeRepo.GetByID(ctx, row.EmployeeID, req.CompanyID)
			switch {
			case errors.Is(err, employee.ErrEmployeeNotFound):
				ok = false
			case err != nil:
				return resp, fmt.Errorf("failed to look up employee %s: %w", row.EmployeeID, err)
			default:
				ok = true
			}
			known[row.EmployeeID] = ok
		}
		if !ok {
			rowErr(employee.ErrEmployeeNotFound)
			continue
		}

		record, err := BuildRecord(req.CompanyID, row)
		if err != nil {
			rowErr(err)
			continue
		}

		if _, err := s.attendanceRepo.ReplaceDay(ctx, record); err != nil {
			return resp, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
		resp.Imported++
	}

	slog.Info("attendance import finished",
		"company_id", req.CompanyID,
		"imported", resp.Imported,
		"skipped", resp.Skipped,
	)
	return resp, nil
}

// BuildRecord turns one aggregated row into an attendance record. Validate
// the row first.
func BuildRecord(companyID string, row attendance.ImportRow) (attendance.Record, error) {
	date, err := benefit.ParseDate(row.Date)
	if err != nil {
		return attendance.Record{}, err
	}

	rec := attendance.Record{
		EmployeeID:   row.EmployeeID,
		CompanyID:    companyID,
		Date:         date,
		LunchMinutes: row.LunchMinutes,
	}

	if row.AbsenceType != nil && len(row.Punches) == 0 {
		rec.IsAbsent = true
		rec.AbsenceType = row.AbsenceType
		return rec, nil
	}

	sessions, err := PairPunches(row.Punches)
	if err != nil {
		return attendance.Record{}, err
	}
	rec.Sessions = sessions

	var first, last *time.Time
	for _, ws := range sessions {
		if ws.Type != attendance.SessionTypeWork {
			continue
		}
		if first == nil {
			start := ws.Start
			first = &start
		}
		end := ws.End
		last = &end
	}
	rec.Start, rec.End = first, last

	total := 0
	for _, ws := range sessions {
		if ws.Type == attendance.SessionTypeWork {
			total += int(ws.Duration().Minutes())
		}
	}
	rec.TotalMinutes = &total

	return rec, nil
}

// PairPunches sorts clock events and pairs each "in" with the following
// "out". The gap between two work sessions is recorded as a lunch session.
// Unequal counts or an "out" without a preceding "in" are ambiguous.
func PairPunches(punches []attendance.Punch) ([]attendance.WorkSession, error) {
	type event struct {
		at  time.Time
		dir attendance.PunchDirection
	}

	events := make([]event, 0, len(punches))
	ins, outs := 0, 0
	for _, p := range punches {
		at, err := time.Parse(time.RFC3339, p.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid time %q", attendance.ErrInvalidSession, p.Time)
		}
		dir := attendance.PunchDirection(strings.ToLower(string(p.Direction)))
		switch dir {
		case attendance.PunchIn:
			ins++
		case attendance.PunchOut:
			outs++
		default:
			return nil, fmt.Errorf("%w: unknown direction %q", attendance.ErrInvalidSession, p.Direction)
		}
		events = append(events, event{at: at.UTC(), dir: dir})
	}

	if ins != outs {
		return nil, fmt.Errorf("%w: %d in and %d out events", attendance.ErrSessionPairingAmbiguous, ins, outs)
	}
	if ins == 0 {
		return nil, fmt.Errorf("%w: no clock events", attendance.ErrSessionPairingAmbiguous)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	var sessions []attendance.WorkSession
	order := 1
	for i := 0; i < len(events); i += 2 {
		in, out := events[i], events[i+1]
		if in.dir != attendance.PunchIn || out.dir != attendance.PunchOut {
			return nil, fmt.Errorf("%w: events out of order at %s", attendance.ErrSessionPairingAmbiguous, in.at.Format(time.RFC3339))
		}
		if !out.at.After(in.at) {
			return nil, fmt.Errorf("%w: zero-length session at %s", attendance.ErrSessionPairingAmbiguous, in.at.Format(time.RFC3339))
		}

		if len(sessions) > 0 {
			prev := sessions[len(sessions)-1]
			if in.at.After(prev.End) {
				sessions = append(sessions, attendance.WorkSession{
					Order: order,
					Start: prev.End,
					End:   in.at,
					Type:  attendance.SessionTypeLunch,
				})
				order++
			}
		}
		sessions = append(sessions, attendance.WorkSession{
			Order: order,
			Start: in.at,
			End:   out.at,
			Type:  attendance.SessionTypeWork,
		})
		order++
	}
	return sessions, nil
}
