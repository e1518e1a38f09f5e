package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/company"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-benefits-go/internal/repository/memory"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires an App whose engine reads from an in-memory store.
func testApp(t *testing.T, store *memory.Store) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	app := &App{
		Caps:    benefit.DefaultCaps(),
		Workers: 2,
		Out:     out,
		OpenEngine: func(ctx context.Context) (Engine, func(), error) {
			if store == nil {
				return nil, nil, errors.New("no database in this test")
			}
			engine := benefitService.NewEngine(benefitService.Sources{
				Companies:   store.Companies(),
				Employees:   store.Employees(),
				Policies:    store.Policies(),
				Attendance:  store.Attendance(),
				Conversions: store.Conversions(),
				Holidays:    store.Holidays(),
			})
			return engine, func() {}, nil
		},
	}
	return app, out
}

func execute(t *testing.T, app *App, args ...string) error {
	t.Helper()
	cmd := NewRootCmd(app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func seedCompany(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store.AddCompany(company.Company{ID: "c1", Name: "Acme"})

	rate := decimal.RequireFromString("10")
	threshold := decimal.RequireFromString("2")
	_, err := store.Policies().UpsertCompanyPolicy(ctx, benefit.CompanyPolicy{
		CompanyID: "c1",
		PolicyFields: benefit.PolicyFields{
			OvertimeConversionRate:       &rate,
			AutoConversionThresholdHours: &threshold,
		},
	})
	require.NoError(t, err)

	store.AddEmployee(employee.Employee{ID: "e1", CompanyID: "c1", FullName: "Dana Putri", HireDate: benefit.NewDate(2023, 1, 1)})

	day := benefit.NewDate(2024, 3, 4)
	start := day.Add(7 * time.Hour)
	end := day.Add(19 * time.Hour)
	_, err = store.Attendance().ReplaceDay(ctx, attendance.Record{
		EmployeeID: "e1",
		CompanyID:  "c1",
		Date:       day,
		Start:      &start,
		End:        &end,
	})
	require.NoError(t, err)
}

func TestDistributeCmd(t *testing.T) {
	app, out := testApp(t, nil)

	err := execute(t, app, "distribute", "--total", "2", "--day", "2024-03-04=3", "--day", "2024-03-06=1")
	require.NoError(t, err)

	var got struct {
		Converted    decimal.Decimal             `json:"converted"`
		Distribution []benefit.DistributionEntry `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Converted.Equal(decimal.NewFromInt(2)))
	require.Len(t, got.Distribution, 2)
	assert.True(t, got.Distribution[0].Converted.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, got.Distribution[1].Converted.Equal(decimal.RequireFromString("0.5")))
}

func TestDistributeCmd_BadDay(t *testing.T) {
	app, _ := testApp(t, nil)

	err := execute(t, app, "distribute", "--total", "1", "--day", "2024-03-04")
	assert.Error(t, err)

	err = execute(t, app, "distribute", "--total", "1", "--day", "03/04/2024=2")
	assert.ErrorIs(t, err, benefit.ErrInvalidDateRange)
}

func TestAllocateCmd(t *testing.T) {
	app, out := testApp(t, nil)

	err := execute(t, app, "allocate", "--with-meal", "2", "--without-meal", "2", "--amount", "183.46")
	require.NoError(t, err)

	var got benefit.Allocation
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, benefit.AllocationSaturated, got.Step)
	assert.True(t, got.AmountAtHighRate.Equal(decimal.RequireFromString("92.96")))
	assert.True(t, got.RemainderPerDay.Equal(decimal.RequireFromString("30.98")))
}

func TestAllocateCmd_InvalidCaps(t *testing.T) {
	app, _ := testApp(t, nil)

	err := execute(t, app, "allocate", "--amount", "10", "--cap-high", "20", "--cap-low", "25")
	assert.ErrorIs(t, err, benefit.ErrInvalidCaps)
}

func TestComputeCmd_DryRunDoesNotWrite(t *testing.T) {
	store := memory.NewStore()
	seedCompany(t, store)
	app, out := testApp(t, store)

	err := execute(t, app, "compute", "--company", "c1", "--month", "2024-03")
	require.NoError(t, err)

	var agg benefit.MonthlyAggregate
	require.NoError(t, json.Unmarshal(out.Bytes(), &agg))
	require.Len(t, agg.Employees, 1)
	assert.NotEmpty(t, agg.SourceHash)
	assert.True(t, agg.Employees[0].OvertimeConversion.AutomaticHours.Equal(decimal.NewFromInt(1)))

	_, err = store.Conversions().GetOvertimeConversion(context.Background(), "c1", "e1", 2024, 3)
	assert.ErrorIs(t, err, conversion.ErrOvertimeConversionMissing)
}

func TestComputeCmd_WritePersists(t *testing.T) {
	store := memory.NewStore()
	seedCompany(t, store)
	app, _ := testApp(t, store)

	err := execute(t, app, "compute", "--company", "c1", "--month", "2024-03", "--write")
	require.NoError(t, err)

	row, err := store.Conversions().GetOvertimeConversion(context.Background(), "c1", "e1", 2024, 3)
	require.NoError(t, err)
	assert.True(t, row.TotalHours.Equal(decimal.NewFromInt(1)))
	assert.True(t, row.Amount.Equal(decimal.NewFromInt(10)))
}

func TestComputeCmd_Errors(t *testing.T) {
	t.Run("invalid month", func(t *testing.T) {
		app, _ := testApp(t, memory.NewStore())
		err := execute(t, app, "compute", "--company", "c1", "--month", "2024-13")
		assert.ErrorIs(t, err, benefit.ErrInvalidDateRange)
	})

	t.Run("missing policy", func(t *testing.T) {
		store := memory.NewStore()
		store.AddCompany(company.Company{ID: "c1"})
		store.AddEmployee(employee.Employee{ID: "e1", CompanyID: "c1", HireDate: benefit.NewDate(2023, 1, 1)})
		app, _ := testApp(t, store)
		err := execute(t, app, "compute", "--company", "c1", "--month", "2024-03")
		assert.ErrorIs(t, err, benefit.ErrConfigurationMissing)
	})

	t.Run("unknown company", func(t *testing.T) {
		app, _ := testApp(t, memory.NewStore())
		err := execute(t, app, "compute", "--company", "nope", "--month", "2024-03")
		assert.ErrorIs(t, err, company.ErrCompanyNotFound)
	})

	t.Run("engine unavailable", func(t *testing.T) {
		app, _ := testApp(t, nil)
		err := execute(t, app, "compute", "--company", "c1", "--month", "2024-03")
		assert.ErrorContains(t, err, "opening engine")
	})
}
