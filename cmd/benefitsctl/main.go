package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmlabs-hris/hris-benefits-go/internal/cli"
	"github.com/cmlabs-hris/hris-benefits-go/internal/config"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-benefits-go/internal/repository/postgresql"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	// distribute and allocate run without a database, so a missing
	// configuration only matters once a command asks for the engine.
	cfg, cfgErr := config.Load()

	app := &cli.App{
		Caps:    benefit.DefaultCaps(),
		Workers: 4,
		Out:     os.Stdout,
	}
	if cfgErr == nil {
		app.Caps = benefit.Caps{High: cfg.Benefits.CapHigh, Low: cfg.Benefits.CapLow}
		app.Workers = cfg.Benefits.ComputeWorkers
	}

	app.OpenEngine = func(ctx context.Context) (cli.Engine, func(), error) {
		if cfgErr != nil {
			return nil, nil, fmt.Errorf("loading config: %w", cfgErr)
		}

		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.WithPoolSize(cfg.Database.MaxConns, cfg.Database.MinConns))
		if err != nil {
			return nil, nil, err
		}

		engine := benefitService.NewEngine(benefitService.Sources{
			Companies:   postgresql.NewCompanyRepository(db),
			Employees:   postgresql.NewEmployeeRepository(db),
			Policies:    postgresql.NewPolicyRepository(db),
			Attendance:  postgresql.NewAttendanceRepository(db),
			Conversions: postgresql.NewConversionRepository(db),
			Holidays:    postgresql.NewHolidayRepository(db),
		},
			benefitService.WithCaps(app.Caps),
			benefitService.WithWorkers(app.Workers),
		)
		return engine, db.Close, nil
	}

	return cli.NewRootCmd(app).Execute()
}
