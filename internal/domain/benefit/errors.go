package benefit

import "errors"

var (
	ErrConfigurationMissing  = errors.New("company benefit policy not configured")
	ErrInvalidDateRange      = errors.New("invalid date range")
	ErrCacheRecomputeFailure = errors.New("monthly aggregate recompute failed, retry later")
	ErrUnknownPolicyValue    = errors.New("unknown policy value")
	ErrOverlappingOverrides  = errors.New("employee overrides overlap")
	ErrOverrideNotFound      = errors.New("employee override not found")
	ErrInvalidCaps           = errors.New("low ceiling must be positive and below the high ceiling")
)
