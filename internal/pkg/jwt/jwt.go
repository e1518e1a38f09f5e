package jwt

import (
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are the fields this service reads from an HRIS access token.
type Claims struct {
	UserID    string
	CompanyID string
	Role      string
}

type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	GenerateAccessToken(claims Claims, ttl time.Duration) (token string, expiresAt int64, err error)
	GenerateSSEToken(claims Claims) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (Claims, error)
}

type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// GenerateAccessToken signs an access token. Tokens normally come from the
// HRIS auth service; this is used by tooling and tests.
func (j *JWTService) GenerateAccessToken(claims Claims, ttl time.Duration) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(ttl).Unix()

	_, token, err = j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"role":       claims.Role,
		"type":       "access",
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}
	return token, expiresAt, nil
}

// GenerateSSEToken generates a short-lived token for SSE connections
func (j *JWTService) GenerateSSEToken(claims Claims) (token string, expiresIn int, err error) {
	expiresIn = 300
	expiresAt := time.Now().Add(5 * time.Minute).Unix()

	_, token, err = j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"type":       "sse",
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}
	return token, expiresIn, nil
}

// ValidateSSEToken verifies the signature and expiry of an SSE token and
// returns its claims.
func (j *JWTService) ValidateSSEToken(tokenString string) (Claims, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return Claims{}, err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "sse" {
		return Claims{}, jwt.ErrInvalidJWT()
	}

	userID, _ := stringClaim(token, "user_id")
	companyID, ok := stringClaim(token, "company_id")
	if !ok || companyID == "" {
		return Claims{}, jwt.ErrInvalidJWT()
	}

	return Claims{UserID: userID, CompanyID: companyID}, nil
}

func stringClaim(token jwt.Token, key string) (string, bool) {
	v, ok := token.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
