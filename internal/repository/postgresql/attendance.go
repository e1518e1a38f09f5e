package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// ListByCompanyAndRange implements attendance.Repository.
func (a *attendanceRepository) ListByCompanyAndRange(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, employee_id, company_id, date, clock_in, clock_out,
			   lunch_start, lunch_end, lunch_minutes, is_absent, absence_type,
			   work_hours_in_minutes, overtime_minutes, created_at, updated_at
		FROM attendances
		WHERE company_id = $1
		  AND date >= $2 AND date < $3
		  AND ($4::uuid[] IS NULL OR employee_id = ANY($4))
		ORDER BY employee_id, date
	`

	rows, err := q.Query(ctx, query, companyID, from, to, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	index := make(map[string]int)
	for rows.Next() {
		var rec attendance.Record
		err := rows.Scan(
			&rec.ID, &rec.EmployeeID, &rec.CompanyID, &rec.Date, &rec.Start, &rec.End,
			&rec.LunchStart, &rec.LunchEnd, &rec.LunchMinutes, &rec.IsAbsent, &rec.AbsenceType,
			&rec.TotalMinutes, &rec.OvertimeMinutes, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendances: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	sessionQuery := `
		SELECT id, attendance_id, session_order, start_time, end_time, session_type
		FROM work_sessions
		WHERE attendance_id = ANY($1)
		ORDER BY attendance_id, session_order
	`

	sessionRows, err := q.Query(ctx, sessionQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var ws attendance.WorkSession
		if err := sessionRows.Scan(&ws.ID, &ws.RecordID, &ws.Order, &ws.Start, &ws.End, &ws.Type); err != nil {
			return nil, fmt.Errorf("failed to scan work session: %w", err)
		}
		i := index[ws.RecordID]
		records[i].Sessions = append(records[i].Sessions, ws)
	}
	if err := sessionRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work sessions: %w", err)
	}

	return records, nil
}

// ListAbsencesByCompanyAndRange implements attendance.Repository.
func (a *attendanceRepository) ListAbsencesByCompanyAndRange(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) ([]attendance.Absence, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, employee_id, company_id, date, type, hours, created_at, updated_at
		FROM absences
		WHERE company_id = $1
		  AND date >= $2 AND date < $3
		  AND ($4::uuid[] IS NULL OR employee_id = ANY($4))
		ORDER BY employee_id, date
	`

	rows, err := q.Query(ctx, query, companyID, from, to, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list absences: %w", err)
	}
	defer rows.Close()

	var absences []attendance.Absence
	for rows.Next() {
		var abs attendance.Absence
		if err := rows.Scan(&abs.ID, &abs.EmployeeID, &abs.CompanyID, &abs.Date, &abs.Type, &abs.Hours, &abs.CreatedAt, &abs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		absences = append(absences, abs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating absences: %w", err)
	}
	return absences, nil
}

// ReplaceDay implements attendance.Repository.
func (a *attendanceRepository) ReplaceDay(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	err := WithTransaction(ctx, a.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO attendances (
				employee_id, company_id, date, clock_in, clock_out,
				lunch_start, lunch_end, lunch_minutes, is_absent, absence_type,
				work_hours_in_minutes, overtime_minutes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (employee_id, date) DO UPDATE SET
				clock_in = EXCLUDED.clock_in,
				clock_out = EXCLUDED.clock_out,
				lunch_start = EXCLUDED.lunch_start,
				lunch_end = EXCLUDED.lunch_end,
				lunch_minutes = EXCLUDED.lunch_minutes,
				is_absent = EXCLUDED.is_absent,
				absence_type = EXCLUDED.absence_type,
				work_hours_in_minutes = EXCLUDED.work_hours_in_minutes,
				overtime_minutes = EXCLUDED.overtime_minutes,
				updated_at = NOW()
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			record.EmployeeID, record.CompanyID, record.Date, record.Start, record.End,
			record.LunchStart, record.LunchEnd, record.LunchMinutes, record.IsAbsent, record.AbsenceType,
			record.TotalMinutes, record.OvertimeMinutes,
		).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert attendance: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM work_sessions WHERE attendance_id = $1`, record.ID); err != nil {
			return fmt.Errorf("failed to clear work sessions: %w", err)
		}

		for i := range record.Sessions {
			ws := &record.Sessions[i]
			ws.RecordID = record.ID
			ws.Order = i + 1
			if ws.Type == "" {
				ws.Type = attendance.SessionTypeWork
			}
			err := tx.QueryRow(ctx, `
				INSERT INTO work_sessions (attendance_id, session_order, start_time, end_time, session_type)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, ws.RecordID, ws.Order, ws.Start, ws.End, ws.Type).Scan(&ws.ID)
			if err != nil {
				return fmt.Errorf("failed to insert work session %d: %w", ws.Order, err)
			}
		}
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}
	return record, nil
}
