package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
)

// TestDatabaseSetup holds the connection to the test database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL. The schema from
// migrations/ must already be applied.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.NewPostgreSQLDB(context.Background(), dsn, database.WithPoolSize(4, 1))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	setup := &TestDatabaseSetup{DB: db}
	if err := setup.TruncateAllTables(context.Background()); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables empties every table the benefit computation reads.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"holidays",
		"overtime_conversions",
		"meal_voucher_conversions",
		"benefit_employee_overrides",
		"benefit_company_policies",
		"absences",
		"work_sessions",
		"attendances",
		"employees",
		"companies",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// SeedCompany inserts a company and one employee hired on 2023-01-01.
func (t *TestDatabaseSetup) SeedCompany(ctx context.Context) (companyID, employeeID string, err error) {
	err = t.DB.QueryRow(ctx, `
		INSERT INTO companies (name, username) VALUES ('Acme', 'acme') RETURNING id
	`).Scan(&companyID)
	if err != nil {
		return "", "", err
	}

	err = t.DB.QueryRow(ctx, `
		INSERT INTO employees (company_id, employee_code, full_name, hire_date)
		VALUES ($1, 'E-001', 'Dana Putri', '2023-01-01') RETURNING id
	`, companyID).Scan(&employeeID)
	return companyID, employeeID, err
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
