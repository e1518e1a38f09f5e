package middleware

import (
	"net/http"
	"slices"

	"github.com/cmlabs-hris/hris-benefits-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
)

// RequireRole lets the request through only when the "role" claim is one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			role, _ := claims["role"].(string)
			if err != nil || !slices.Contains(roles, role) {
				response.Forbidden(w, "Manager access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireManager guards every write to benefit configuration and conversions.
var RequireManager = RequireRole(RoleOwner, RoleManager)
