package benefit

import (
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/shopspring/decimal"
)

// DefaultLunchThreshold is the raw presence above which the policy lunch
// deduction applies when the record carries no lunch information.
const DefaultLunchThreshold = 6 * time.Hour

var secondsPerHour = decimal.NewFromInt(3600)

// DayResult is the per-day output of the benefits calculator.
type DayResult struct {
	Date               time.Time
	WorkedHours        decimal.Decimal
	OrdinaryHours      decimal.Decimal
	OvertimeHours      decimal.Decimal
	SaturdayTripHours  decimal.Decimal
	SaturdayTripAmount decimal.Decimal
	Bucket             benefit.DayBucket

	MealVoucher      bool
	DailyAllowance   bool
	ManualConversion bool

	Absent      bool
	AbsenceType string
	AbsentHours decimal.Decimal
}

// ComputeDay turns one attendance record and its effective settings into
// hours buckets and benefit flags. A meal voucher conversion marked as
// converted suppresses both the automatic voucher and the daily allowance.
func ComputeDay(rec attendance.Record, s benefit.EffectiveSettings, conv *conversion.MealVoucherConversion) DayResult {
	date := benefit.Date(rec.Date)
	res := DayResult{
		Date:   date,
		Bucket: benefit.BucketOrdinary,
	}

	if rec.IsAbsent {
		res.Absent = true
		res.Bucket = benefit.BucketAbsence
		res.AbsentHours = s.StandardDailyHours
		if rec.AbsenceType != nil {
			res.AbsenceType = *rec.AbsenceType
		}
		return res
	}

	worked := WorkedDuration(rec, s.LunchPolicy)
	res.WorkedHours = hoursOf(worked)

	if date.Weekday() == time.Saturday && s.SaturdayPolicy == benefit.SaturdayPolicyBusinessTrip {
		res.Bucket = benefit.BucketSaturdayTrip
		res.SaturdayTripHours = res.WorkedHours
		res.SaturdayTripAmount = res.WorkedHours.Mul(s.SaturdayTripHourlyRate)
	} else {
		res.OrdinaryHours = decimal.Min(res.WorkedHours, s.StandardDailyHours)
		res.OvertimeHours = res.WorkedHours.Sub(res.OrdinaryHours)
		if res.OvertimeHours.IsPositive() {
			res.Bucket = benefit.BucketOvertime
		}
	}

	if res.WorkedHours.IsPositive() {
		res.MealVoucher = s.BenefitPolicy.GrantsVoucher() && res.WorkedHours.GreaterThanOrEqual(s.MealVoucherMinHours)
		res.DailyAllowance = s.BenefitPolicy.GrantsAllowance() && res.WorkedHours.GreaterThanOrEqual(s.DailyAllowanceMinHours)
	}

	if conv != nil && conv.ConvertedToAllowance {
		res.ManualConversion = true
		res.MealVoucher = false
		res.DailyAllowance = false
	}

	return res
}

// WorkedDuration is (end - start) minus the lunch deduction, never negative.
func WorkedDuration(rec attendance.Record, policy benefit.LunchPolicy) time.Duration {
	start, end, ok := presence(rec)
	if !ok {
		return 0
	}
	raw := end.Sub(start)
	if raw <= 0 {
		return 0
	}

	worked := raw - lunchDuration(rec, policy, raw)
	if worked < 0 {
		return 0
	}
	return worked
}

// presence returns the explicit start/end, or the span of the non-lunch
// sessions when the record only has sessions.
func presence(rec attendance.Record) (time.Time, time.Time, bool) {
	if rec.Start != nil && rec.End != nil {
		return *rec.Start, *rec.End, true
	}

	var start, end time.Time
	found := false
	for _, s := range rec.Sessions {
		if s.Type == attendance.SessionTypeLunch {
			continue
		}
		if !found || s.Start.Before(start) {
			start = s.Start
		}
		if !found || s.End.After(end) {
			end = s.End
		}
		found = true
	}
	return start, end, found
}

// lunchDuration resolves lunch in order: explicit window, explicit minutes,
// lunch sessions, then the policy default above DefaultLunchThreshold.
func lunchDuration(rec attendance.Record, policy benefit.LunchPolicy, raw time.Duration) time.Duration {
	if rec.LunchStart != nil && rec.LunchEnd != nil {
		if d := rec.LunchEnd.Sub(*rec.LunchStart); d > 0 {
			return d
		}
		return 0
	}
	if rec.LunchMinutes != nil {
		return time.Duration(*rec.LunchMinutes) * time.Minute
	}

	var sessions time.Duration
	hasLunchSession := false
	for _, s := range rec.Sessions {
		if s.Type == attendance.SessionTypeLunch {
			sessions += s.Duration()
			hasLunchSession = true
		}
	}
	if hasLunchSession {
		return sessions
	}

	if raw > DefaultLunchThreshold {
		return time.Duration(policy.DefaultMinutes()) * time.Minute
	}
	return 0
}

func hoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(secondsPerHour)
}

// round2 rounds to currency precision. Only final values go through it.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
