package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-benefits-go/internal/repository/memory"
	benefitService "github.com/cmlabs-hris/hris-benefits-go/internal/service/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/service/importer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type testServer struct {
	handler http.Handler
	store   *memory.Store
	jwt     jwt.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.AddEmployee(employee.Employee{ID: "e1", CompanyID: "c1", FullName: "Dana Putri", HireDate: benefit.NewDate(2023, 1, 1)})

	rate := decimal.RequireFromString("10")
	_, err := store.Policies().UpsertCompanyPolicy(context.Background(), benefit.CompanyPolicy{
		CompanyID:    "c1",
		PolicyFields: benefit.PolicyFields{OvertimeConversionRate: &rate},
	})
	require.NoError(t, err)

	engine := benefitService.NewEngine(benefitService.Sources{
		Employees:   store.Employees(),
		Policies:    store.Policies(),
		Attendance:  store.Attendance(),
		Conversions: store.Conversions(),
		Holidays:    store.Holidays(),
	})
	hub := sse.NewHub()
	cache := benefitService.NewMonthlyCache(engine,
		benefitService.WithDebounce(20*time.Millisecond),
		benefitService.WithPublisher(hub),
	)
	t.Cleanup(cache.Close)
	store.OnChange(cache.HandleChange)

	svc := benefitService.NewBenefitService(cache, store.Policies(), store.Conversions(), store.Employees())
	imports := importer.NewImportService(store.Attendance(), store.Employees())
	jwtService := jwt.NewJWTService(handlerTestSecret)

	router := NewRouter(RouterConfig{Env: "test"}, jwtService, NewBenefitHandler(svc, imports, jwtService, hub))
	return &testServer{handler: router, store: store, jwt: jwtService}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(jwt.Claims{UserID: "u1", CompanyID: "c1", Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var payload map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	return rec, payload
}

func TestBenefitHandler_RequiresToken(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/benefits/summary/2024-03", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBenefitHandler_GetMonthlySummary(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "employee")

	rec, payload := srv.do(t, http.MethodGet, "/api/v1/benefits/summary/2024-03", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, "2024-03", data["month"])
	assert.Equal(t, false, data["is_from_cache"])
	agg := data["aggregate"].(map[string]interface{})
	assert.Len(t, agg["employees"], 1)

	rec, payload = srv.do(t, http.MethodGet, "/api/v1/benefits/summary/2024-03", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["data"].(map[string]interface{})["is_from_cache"])
}

func TestBenefitHandler_InvalidMonth(t *testing.T) {
	srv := newTestServer(t)

	rec, payload := srv.do(t, http.MethodGet, "/api/v1/benefits/summary/2024-13", srv.token(t, "employee"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_DATE_RANGE", payload["error"].(map[string]interface{})["code"])
}

func TestBenefitHandler_ManagerOnlyRoutes(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]interface{}{"benefit_policy": "both"}

	rec, _ := srv.do(t, http.MethodPut, "/api/v1/benefits/policy", srv.token(t, "employee"), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, payload := srv.do(t, http.MethodPut, "/api/v1/benefits/policy", srv.token(t, "owner"), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "both", payload["data"].(map[string]interface{})["benefit_policy"])
}

func TestBenefitHandler_PolicyValidation(t *testing.T) {
	srv := newTestServer(t)

	rec, payload := srv.do(t, http.MethodPut, "/api/v1/benefits/policy", srv.token(t, "owner"), map[string]interface{}{
		"lunch_policy": "siesta",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	details := payload["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "lunch_policy")
}

func TestBenefitHandler_DeConversionOverflow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "manager")

	rec, _ := srv.do(t, http.MethodPost, "/api/v1/benefits/conversions/overtime", token, map[string]interface{}{
		"employee_id": "e1",
		"month":       "2024-03",
		"delta_hours": "2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, payload := srv.do(t, http.MethodPost, "/api/v1/benefits/conversions/overtime", token, map[string]interface{}{
		"employee_id": "e1",
		"month":       "2024-03",
		"delta_hours": "-3",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", payload["error"].(map[string]interface{})["code"])
}

func TestBenefitHandler_UnknownEmployee(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/benefits/settings/ghost?date=2024-03-04", srv.token(t, "employee"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBenefitHandler_ResolveSettings(t *testing.T) {
	srv := newTestServer(t)

	rec, payload := srv.do(t, http.MethodGet, "/api/v1/benefits/settings/e1?date=2024-03-04", srv.token(t, "employee"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, "standard", data["lunch_policy"])
	assert.Equal(t, "10", data["overtime_conversion_rate"])
}

func TestBenefitHandler_ImportAttendance(t *testing.T) {
	srv := newTestServer(t)

	rec, payload := srv.do(t, http.MethodPost, "/api/v1/benefits/attendance/import", srv.token(t, "manager"), map[string]interface{}{
		"rows": []map[string]interface{}{
			{
				"employee_id": "e1",
				"date":        "2024-03-04",
				"punches": []map[string]string{
					{"time": "2024-03-04T08:00:00Z", "direction": "in"},
					{"time": "2024-03-04T17:00:00Z", "direction": "out"},
				},
			},
			{
				"employee_id": "e1",
				"date":        "2024-03-05",
				"punches": []map[string]string{
					{"time": "2024-03-05T08:00:00Z", "direction": "in"},
				},
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["imported"])
	assert.Equal(t, float64(1), data["skipped"])
}

func TestBenefitHandler_StreamRejectsAccessToken(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/benefits/events?token="+srv.token(t, "owner"), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
