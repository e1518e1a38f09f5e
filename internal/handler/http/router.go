package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/hris-benefits-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterConfig carries the deployment values the router needs.
type RouterConfig struct {
	Env            string
	Version        string
	AllowedOrigins []string
	LogLevel       slog.Level
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, benefitHandler BenefitHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-benefits"),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		// EventSource cannot send headers; the stream checks its own token.
		r.Get("/benefits/events", benefitHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(middleware.TokenAccess))
			r.Use(middleware.RequireCompany)

			r.Route("/benefits", func(r chi.Router) {
				r.Get("/events/token", benefitHandler.GetSSEToken)

				r.Route("/summary/{month}", func(r chi.Router) {
					r.Get("/", benefitHandler.GetMonthlySummary)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireManager)
						r.Post("/recalculate", benefitHandler.Recalculate)
						r.Post("/invalidate", benefitHandler.Invalidate)
					})
				})

				r.Get("/settings/{employeeID}", benefitHandler.ResolveSettings)
				r.Get("/policy", benefitHandler.GetCompanyPolicy)
				r.Get("/overrides/{employeeID}", benefitHandler.ListOverrides)

				// Manager only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager)
					r.Put("/policy", benefitHandler.UpsertCompanyPolicy)
					r.Post("/overrides", benefitHandler.CreateOverride)

					r.Route("/conversions", func(r chi.Router) {
						r.Post("/overtime", benefitHandler.ApplyManualOvertime)
						r.Put("/meal-voucher", benefitHandler.SetMealVoucherConversion)
						r.Delete("/meal-voucher/{employeeID}/{date}", benefitHandler.ClearMealVoucherConversion)
					})

					r.Post("/attendance/import", benefitHandler.ImportAttendance)
				})
			})
		})
	})
	return r
}
