package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-benefits-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type BenefitHandler interface {
	// Monthly summary
	GetMonthlySummary(w http.ResponseWriter, r *http.Request)
	Recalculate(w http.ResponseWriter, r *http.Request)
	Invalidate(w http.ResponseWriter, r *http.Request)

	// Settings and policy
	ResolveSettings(w http.ResponseWriter, r *http.Request)
	GetCompanyPolicy(w http.ResponseWriter, r *http.Request)
	UpsertCompanyPolicy(w http.ResponseWriter, r *http.Request)
	ListOverrides(w http.ResponseWriter, r *http.Request)
	CreateOverride(w http.ResponseWriter, r *http.Request)

	// Conversions
	ApplyManualOvertime(w http.ResponseWriter, r *http.Request)
	SetMealVoucherConversion(w http.ResponseWriter, r *http.Request)
	ClearMealVoucherConversion(w http.ResponseWriter, r *http.Request)

	// Attendance
	ImportAttendance(w http.ResponseWriter, r *http.Request)

	// SSE
	GetSSEToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type benefitHandlerImpl struct {
	benefitService benefit.Service
	importService  attendance.ImportService
	jwtService     jwt.Service
	hub            *sse.Hub
}

func NewBenefitHandler(benefitService benefit.Service, importService attendance.ImportService, jwtService jwt.Service, hub *sse.Hub) BenefitHandler {
	return &benefitHandlerImpl{
		benefitService: benefitService,
		importService:  importService,
		jwtService:     jwtService,
		hub:            hub,
	}
}

// writeSummary serves a stale aggregate with 200 when a recompute failed
// after an earlier success. Without a payload the failure maps to 503.
func writeSummary(w http.ResponseWriter, res benefit.MonthlySummaryResponse, err error) {
	if err != nil {
		if errors.Is(err, benefit.ErrCacheRecomputeFailure) && res.Aggregate != nil {
			slog.Warn("serving stale monthly summary", "company_id", res.CompanyID, "month", res.Month, "error", err)
			response.Stale(w, "Recompute failed, serving the last computed summary", res, response.RetryAfterSeconds)
			return
		}
		response.HandleError(w, err)
		return
	}
	response.Success(w, res)
}

// GetMonthlySummary handles GET /benefits/summary/{month}
func (h *benefitHandlerImpl) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyID(r.Context())
	month := chi.URLParam(r, "month")

	res, err := h.benefitService.GetMonthlySummary(r.Context(), companyID, month)
	writeSummary(w, res, err)
}

// Recalculate handles POST /benefits/summary/{month}/recalculate
func (h *benefitHandlerImpl) Recalculate(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyID(r.Context())
	month := chi.URLParam(r, "month")

	res, err := h.benefitService.Recalculate(r.Context(), companyID, month)
	writeSummary(w, res, err)
}

// Invalidate handles POST /benefits/summary/{month}/invalidate
func (h *benefitHandlerImpl) Invalidate(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyID(r.Context())
	month := chi.URLParam(r, "month")

	if err := h.benefitService.Invalidate(r.Context(), companyID, month); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Monthly summary scheduled for recompute", nil)
}

// ResolveSettings handles GET /benefits/settings/{employeeID}?date=YYYY-MM-DD
func (h *benefitHandlerImpl) ResolveSettings(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(benefit.DateLayout)
	}

	res, err := h.benefitService.ResolveSettings(r.Context(), companyID, employeeID, date)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, res)
}

// GetCompanyPolicy handles GET /benefits/policy
func (h *benefitHandlerImpl) GetCompanyPolicy(w http.ResponseWriter, r *http.Request) {
	res, err := h.benefitService.GetCompanyPolicy(r.Context(), middleware.CompanyID(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, res)
}

// UpsertCompanyPolicy handles PUT /benefits/policy
func (h *benefitHandlerImpl) UpsertCompanyPolicy(w http.ResponseWriter, r *http.Request) {
	var req benefit.UpsertCompanyPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("UpsertCompanyPolicy decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())

	res, err := h.benefitService.UpsertCompanyPolicy(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Company policy saved", res)
}

// ListOverrides handles GET /benefits/overrides/{employeeID}
func (h *benefitHandlerImpl) ListOverrides(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")

	res, err := h.benefitService.ListOverrides(r.Context(), companyID, employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, res)
}

// CreateOverride handles POST /benefits/overrides
func (h *benefitHandlerImpl) CreateOverride(w http.ResponseWriter, r *http.Request) {
	var req benefit.CreateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("CreateOverride decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())

	res, err := h.benefitService.CreateOverride(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Employee override created", res)
}

// ApplyManualOvertime handles POST /benefits/conversions/overtime
func (h *benefitHandlerImpl) ApplyManualOvertime(w http.ResponseWriter, r *http.Request) {
	var req conversion.ManualOvertimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("ApplyManualOvertime decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())

	res, err := h.benefitService.ApplyManualOvertime(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Overtime conversion applied", res)
}

// SetMealVoucherConversion handles PUT /benefits/conversions/meal-voucher
func (h *benefitHandlerImpl) SetMealVoucherConversion(w http.ResponseWriter, r *http.Request) {
	var req conversion.MealVoucherConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("SetMealVoucherConversion decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())

	if err := h.benefitService.SetMealVoucherConversion(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Meal voucher conversion saved", nil)
}

// ClearMealVoucherConversion handles DELETE /benefits/conversions/meal-voucher/{employeeID}/{date}
func (h *benefitHandlerImpl) ClearMealVoucherConversion(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")
	date := chi.URLParam(r, "date")

	if err := h.benefitService.ClearMealVoucherConversion(r.Context(), companyID, employeeID, date); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Meal voucher conversion removed", nil)
}

// ImportAttendance handles POST /benefits/attendance/import
func (h *benefitHandlerImpl) ImportAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendance.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("ImportAttendance decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = middleware.CompanyID(r.Context())

	res, err := h.importService.Import(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Attendance imported", res)
}

// GetSSEToken issues a short-lived token for the event stream
func (h *benefitHandlerImpl) GetSSEToken(w http.ResponseWriter, r *http.Request) {
	_, claims, _ := jwtauth.FromContext(r.Context())
	userID, _ := claims["user_id"].(string)

	token, expiresIn, err := h.jwtService.GenerateSSEToken(jwt.Claims{
		UserID:    userID,
		CompanyID: middleware.CompanyID(r.Context()),
	})
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}
	response.Success(w, map[string]interface{}{
		"token":      token,
		"expires_in": expiresIn,
	})
}

// Stream pushes aggregate invalidated/ready/failed events for the token's
// company.
func (h *benefitHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(claims.CompanyID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"company_id\":%q}\n\n", claims.CompanyID)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
