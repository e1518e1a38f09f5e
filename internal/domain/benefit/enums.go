package benefit

import "fmt"

// LunchPolicy selects the default lunch deduction applied when an attendance
// record carries no explicit lunch information.
type LunchPolicy string

const (
	LunchPolicyNone     LunchPolicy = "none"
	LunchPolicyShort    LunchPolicy = "short"
	LunchPolicyStandard LunchPolicy = "standard"
	LunchPolicyExtended LunchPolicy = "extended"
)

var LunchPolicyValues = []string{
	string(LunchPolicyNone),
	string(LunchPolicyShort),
	string(LunchPolicyStandard),
	string(LunchPolicyExtended),
}

// DefaultMinutes returns the lunch deduction in minutes for the policy.
func (p LunchPolicy) DefaultMinutes() int {
	switch p {
	case LunchPolicyNone:
		return 0
	case LunchPolicyShort:
		return 30
	case LunchPolicyStandard:
		return 60
	case LunchPolicyExtended:
		return 90
	}
	panic(fmt.Sprintf("benefit: unhandled lunch policy %q", string(p)))
}

func ParseLunchPolicy(s string) (LunchPolicy, error) {
	switch p := LunchPolicy(s); p {
	case LunchPolicyNone, LunchPolicyShort, LunchPolicyStandard, LunchPolicyExtended:
		return p, nil
	}
	return "", fmt.Errorf("%w: lunch policy %q", ErrUnknownPolicyValue, s)
}

// BenefitPolicy controls which per-day benefits a company grants.
type BenefitPolicy string

const (
	BenefitPolicyDisabled      BenefitPolicy = "disabled"
	BenefitPolicyVoucherOnly   BenefitPolicy = "voucher_only"
	BenefitPolicyAllowanceOnly BenefitPolicy = "allowance_only"
	BenefitPolicyBoth          BenefitPolicy = "both"
)

var BenefitPolicyValues = []string{
	string(BenefitPolicyDisabled),
	string(BenefitPolicyVoucherOnly),
	string(BenefitPolicyAllowanceOnly),
	string(BenefitPolicyBoth),
}

func (p BenefitPolicy) GrantsVoucher() bool {
	switch p {
	case BenefitPolicyVoucherOnly, BenefitPolicyBoth:
		return true
	case BenefitPolicyDisabled, BenefitPolicyAllowanceOnly:
		return false
	}
	panic(fmt.Sprintf("benefit: unhandled benefit policy %q", string(p)))
}

func (p BenefitPolicy) GrantsAllowance() bool {
	switch p {
	case BenefitPolicyAllowanceOnly, BenefitPolicyBoth:
		return true
	case BenefitPolicyDisabled, BenefitPolicyVoucherOnly:
		return false
	}
	panic(fmt.Sprintf("benefit: unhandled benefit policy %q", string(p)))
}

func ParseBenefitPolicy(s string) (BenefitPolicy, error) {
	switch p := BenefitPolicy(s); p {
	case BenefitPolicyDisabled, BenefitPolicyVoucherOnly, BenefitPolicyAllowanceOnly, BenefitPolicyBoth:
		return p, nil
	}
	return "", fmt.Errorf("%w: benefit policy %q", ErrUnknownPolicyValue, s)
}

// SaturdayPolicy decides where Saturday hours are booked.
type SaturdayPolicy string

const (
	SaturdayPolicyOvertime     SaturdayPolicy = "overtime"
	SaturdayPolicyBusinessTrip SaturdayPolicy = "business_trip"
)

var SaturdayPolicyValues = []string{
	string(SaturdayPolicyOvertime),
	string(SaturdayPolicyBusinessTrip),
}

func ParseSaturdayPolicy(s string) (SaturdayPolicy, error) {
	switch p := SaturdayPolicy(s); p {
	case SaturdayPolicyOvertime, SaturdayPolicyBusinessTrip:
		return p, nil
	}
	return "", fmt.Errorf("%w: saturday policy %q", ErrUnknownPolicyValue, s)
}

// DayBucket is the hours bucket a worked day lands in.
type DayBucket string

const (
	BucketOrdinary     DayBucket = "ordinary"
	BucketOvertime     DayBucket = "overtime"
	BucketSaturdayTrip DayBucket = "saturday_trip"
	BucketAbsence      DayBucket = "absence"
)
