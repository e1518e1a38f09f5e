package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/hris-benefits-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

// TokenAccess is the "type" claim of tokens accepted on the API routes.
const TokenAccess = "access"

// AuthRequired runs after jwtauth.Verifier and rejects requests whose token
// failed verification or carries a different "type" claim.
func AuthRequired(tokenType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			switch {
			case err != nil:
				response.Unauthorized(w, err.Error())
				return
			case token == nil:
				response.Unauthorized(w, "Invalid token")
				return
			}

			if t, _ := claims["type"].(string); t != tokenType {
				response.Unauthorized(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
