package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/company"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-benefits-go/internal/pkg/validator"
)

// RetryAfterSeconds is sent with 503 responses while a recompute is pending.
const RetryAfterSeconds = 5

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Benefit domain errors
	case errors.Is(err, benefit.ErrInvalidDateRange):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_DATE_RANGE", err.Error())
	case errors.Is(err, benefit.ErrUnknownPolicyValue):
		writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_POLICY_VALUE", err.Error())
	case errors.Is(err, benefit.ErrConfigurationMissing):
		writeError(w, http.StatusUnprocessableEntity, "CONFIGURATION_MISSING", "Company benefit policy is not configured")
	case errors.Is(err, benefit.ErrOverlappingOverrides):
		Conflict(w, "Employee overrides overlap")
	case errors.Is(err, benefit.ErrOverrideNotFound):
		NotFound(w, "Employee override not found")
	case errors.Is(err, benefit.ErrCacheRecomputeFailure):
		ServiceUnavailable(w, "Monthly summary is being recomputed, retry later", RetryAfterSeconds)

	// Conversion domain errors
	case errors.Is(err, conversion.ErrDistributionOverflow):
		Conflict(w, "De-conversion exceeds previously converted hours")
	case errors.Is(err, conversion.ErrOvertimeConversionMissing):
		NotFound(w, "Overtime conversion not found")
	case errors.Is(err, conversion.ErrMealVoucherConversionGone):
		NotFound(w, "Meal voucher conversion not found")

	// Attendance domain errors
	case errors.Is(err, attendance.ErrEmptyImport):
		BadRequest(w, "Import contains no rows", nil)
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")

	// Employee and company
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, company.ErrCompanyNotFound):
		NotFound(w, "Company not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
