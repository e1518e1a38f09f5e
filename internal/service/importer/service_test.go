package importer

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-benefits-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func punch(clock string, dir attendance.PunchDirection) attendance.Punch {
	return attendance.Punch{Time: "2024-03-04T" + clock + ":00Z", Direction: dir}
}

func TestPairPunches_SplitDay(t *testing.T) {
	sessions, err := PairPunches([]attendance.Punch{
		punch("13:00", attendance.PunchIn),
		punch("08:00", attendance.PunchIn),
		punch("12:00", attendance.PunchOut),
		punch("17:00", attendance.PunchOut),
	})
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, attendance.SessionTypeWork, sessions[0].Type)
	assert.Equal(t, 4*time.Hour, sessions[0].Duration())
	assert.Equal(t, attendance.SessionTypeLunch, sessions[1].Type)
	assert.Equal(t, time.Hour, sessions[1].Duration())
	assert.Equal(t, attendance.SessionTypeWork, sessions[2].Type)
	assert.Equal(t, 4*time.Hour, sessions[2].Duration())
	for i, s := range sessions {
		assert.Equal(t, i+1, s.Order)
	}
}

func TestPairPunches_Ambiguous(t *testing.T) {
	tests := []struct {
		name    string
		punches []attendance.Punch
	}{
		{"unequal counts", []attendance.Punch{
			punch("08:00", attendance.PunchIn),
			punch("12:00", attendance.PunchOut),
			punch("13:00", attendance.PunchIn),
		}},
		{"out before in", []attendance.Punch{
			punch("08:00", attendance.PunchOut),
			punch("17:00", attendance.PunchIn),
		}},
		{"two ins in a row", []attendance.Punch{
			punch("08:00", attendance.PunchIn),
			punch("09:00", attendance.PunchIn),
			punch("12:00", attendance.PunchOut),
			punch("17:00", attendance.PunchOut),
		}},
		{"no events", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PairPunches(tt.punches)
			assert.ErrorIs(t, err, attendance.ErrSessionPairingAmbiguous)
		})
	}
}

func TestBuildRecord_Absence(t *testing.T) {
	sick := "sick"
	rec, err := BuildRecord("c1", attendance.ImportRow{EmployeeID: "e1", Date: "2024-03-04", AbsenceType: &sick})
	require.NoError(t, err)

	assert.True(t, rec.IsAbsent)
	assert.Equal(t, "sick", *rec.AbsenceType)
	assert.Nil(t, rec.Start)
	assert.Empty(t, rec.Sessions)
}

func TestBuildRecord_StartEndFromSessions(t *testing.T) {
	rec, err := BuildRecord("c1", attendance.ImportRow{
		EmployeeID: "e1",
		Date:       "2024-03-04",
		Punches: []attendance.Punch{
			punch("08:00", attendance.PunchIn),
			punch("12:00", attendance.PunchOut),
			punch("12:30", attendance.PunchIn),
			punch("17:00", attendance.PunchOut),
		},
	})
	require.NoError(t, err)

	require.NotNil(t, rec.Start)
	require.NotNil(t, rec.End)
	assert.Equal(t, 8, rec.Start.Hour())
	assert.Equal(t, 17, rec.End.Hour())
	assert.Equal(t, benefit.NewDate(2024, 3, 4), rec.Date)
	require.NotNil(t, rec.TotalMinutes)
	assert.Equal(t, 510, *rec.TotalMinutes)
}

func TestImportService_Import(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddEmployee(employee.Employee{ID: "e1", CompanyID: "c1", HireDate: benefit.NewDate(2023, 1, 1)})
	svc := NewImportService(store.Attendance(), store.Employees())

	req := attendance.ImportRequest{
		CompanyID: "c1",
		Rows: []attendance.ImportRow{
			{EmployeeID: "e1", Date: "2024-03-04", Punches: []attendance.Punch{
				punch("08:00", attendance.PunchIn),
				punch("17:00", attendance.PunchOut),
			}},
			{EmployeeID: "e1", Date: "2024-03-05", Punches: []attendance.Punch{
				punch("08:00", attendance.PunchIn),
			}},
			{EmployeeID: "ghost", Date: "2024-03-04", Punches: []attendance.Punch{
				punch("08:00", attendance.PunchIn),
				punch("17:00", attendance.PunchOut),
			}},
			{EmployeeID: "e1", Date: "04/03/2024"},
		},
	}

	resp, err := svc.Import(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Imported)
	assert.Equal(t, 3, resp.Skipped)
	require.Len(t, resp.RowErrors, 3)
	assert.Equal(t, 2, resp.RowErrors[0].Row)
	assert.ErrorIs(t, resp.RowErrors[0], attendance.ErrSessionPairingAmbiguous)
	assert.ErrorIs(t, resp.RowErrors[1], employee.ErrEmployeeNotFound)
	assert.Equal(t, 4, resp.RowErrors[2].Row)

	// re-running the same import keeps one record per day
	_, err = svc.Import(ctx, req)
	require.NoError(t, err)

	records, err := store.Attendance().ListByCompanyAndRange(ctx, "c1", nil, benefit.NewDate(2024, 3, 1), benefit.NewDate(2024, 4, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Sessions, 1)
}

func TestImportService_EmptyImport(t *testing.T) {
	store := memory.NewStore()
	svc := NewImportService(store.Attendance(), store.Employees())

	_, err := svc.Import(context.Background(), attendance.ImportRequest{CompanyID: "c1"})
	assert.ErrorIs(t, err, attendance.ErrEmptyImport)
}
