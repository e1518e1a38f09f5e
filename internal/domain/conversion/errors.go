package conversion

import "errors"

var (
	ErrDistributionOverflow      = errors.New("de-conversion exceeds previously converted hours")
	ErrOvertimeConversionMissing = errors.New("overtime conversion record not found")
	ErrMealVoucherConversionGone = errors.New("meal voucher conversion record not found")
)
