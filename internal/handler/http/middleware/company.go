package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/hris-benefits-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

type ctxKey int

const companyIDKey ctxKey = iota

// RequireCompany rejects tokens without a company and stores the company ID
// on the request context. Every benefit query is scoped by it.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, "Invalid token")
			return
		}

		companyID, ok := claims["company_id"].(string)
		if !ok || companyID == "" {
			response.Forbidden(w, "Company membership required")
			return
		}

		ctx := context.WithValue(r.Context(), companyIDKey, companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CompanyID returns the company stored by RequireCompany.
func CompanyID(ctx context.Context) string {
	id, _ := ctx.Value(companyIDKey).(string)
	return id
}
