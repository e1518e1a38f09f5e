package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/config"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	appHTTP "github.com/cmlabs-hris/hris-benefits-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-benefits-go/internal/repository/postgresql"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/service/importer"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.WithPoolSize(cfg.Database.MaxConns, cfg.Database.MinConns))
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	policyRepo := postgresql.NewPolicyRepository(db)
	conversionRepo := postgresql.NewConversionRepository(db)
	holidayRepo := postgresql.NewHolidayRepository(db)

	caps := benefit.Caps{High: cfg.Benefits.CapHigh, Low: cfg.Benefits.CapLow}
	engine := benefitService.NewEngine(benefitService.Sources{
		Companies:   postgresql.NewCompanyRepository(db),
		Employees:   employeeRepo,
		Policies:    policyRepo,
		Attendance:  attendanceRepo,
		Conversions: conversionRepo,
		Holidays:    holidayRepo,
	},
		benefitService.WithCaps(caps),
		benefitService.WithWorkers(cfg.Benefits.ComputeWorkers),
	)

	hub := sse.NewHub()
	cache := benefitService.NewMonthlyCache(engine,
		benefitService.WithDebounce(cfg.Benefits.CacheDebounce),
		benefitService.WithRetention(cfg.Benefits.CacheRetention),
		benefitService.WithRecomputeTimeout(cfg.Benefits.RecomputeTimeout),
		benefitService.WithPublisher(hub),
	)
	defer cache.Close()

	changes := make(chan benefit.ChangeEvent, 256)
	go cache.Run(ctx, changes)

	listener := database.NewListener(db, database.DefaultNotifyChannel)
	go func() {
		err := listener.Listen(ctx, func(payload string) {
			ev, err := benefit.ParseChangeEvent(payload)
			if err != nil {
				slog.Warn("ignoring malformed change notification", "payload", payload, "error", err)
				return
			}
			select {
			case changes <- ev:
			case <-ctx.Done():
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("notification listener stopped", "error", err)
		}
	}()

	scheduler := cron.NewScheduler()
	cron.NewBenefitJobs(cache, cfg.Benefits.RetryInterval).RegisterJobs(scheduler)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	benefitSvc := benefitService.NewBenefitService(cache, policyRepo, conversionRepo, employeeRepo)
	importSvc := importer.NewImportService(attendanceRepo, employeeRepo)

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		Env:            cfg.App.Env,
		Version:        version,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       cfg.SlogLevel(),
	}, JWTService, appHTTP.NewBenefitHandler(benefitSvc, importSvc, JWTService, hub))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
