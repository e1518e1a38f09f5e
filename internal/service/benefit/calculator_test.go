package benefit

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/stretchr/testify/assert"
)

func at(date time.Time, hour, minute int) *time.Time {
	t := date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	return &t
}

func dayRecord(date time.Time, startHour, endHour int) attendance.Record {
	return attendance.Record{
		EmployeeID: "e1",
		CompanyID:  "c1",
		Date:       date,
		Start:      at(date, startHour, 0),
		End:        at(date, endHour, 0),
	}
}

var monday = benefit.NewDate(2024, 3, 4)

func TestComputeDay_DefaultLunchDeduction(t *testing.T) {
	res := ComputeDay(dayRecord(monday, 8, 17), benefit.DefaultSettings(), nil)

	assert.True(t, res.WorkedHours.Equal(dec("8")), "worked %s", res.WorkedHours)
	assert.True(t, res.OrdinaryHours.Equal(dec("8")))
	assert.True(t, res.OvertimeHours.IsZero())
	assert.Equal(t, benefit.BucketOrdinary, res.Bucket)
	assert.True(t, res.MealVoucher)
	assert.False(t, res.DailyAllowance)
}

func TestComputeDay_LunchResolutionOrder(t *testing.T) {
	thirty := 30

	tests := []struct {
		name string
		rec  func() attendance.Record
		want string
	}{
		{
			name: "explicit window wins over minutes",
			rec: func() attendance.Record {
				r := dayRecord(monday, 8, 17)
				r.LunchStart = at(monday, 12, 0)
				r.LunchEnd = at(monday, 12, 45)
				r.LunchMinutes = &thirty
				return r
			},
			want: "8.25",
		},
		{
			name: "explicit minutes",
			rec: func() attendance.Record {
				r := dayRecord(monday, 8, 17)
				r.LunchMinutes = &thirty
				return r
			},
			want: "8.5",
		},
		{
			name: "no default lunch at or below six hours",
			rec: func() attendance.Record {
				return dayRecord(monday, 8, 14)
			},
			want: "6",
		},
		{
			name: "lunch sessions",
			rec: func() attendance.Record {
				return attendance.Record{
					Date: monday,
					Sessions: []attendance.WorkSession{
						{Order: 1, Start: *at(monday, 8, 0), End: *at(monday, 12, 0), Type: attendance.SessionTypeWork},
						{Order: 2, Start: *at(monday, 12, 0), End: *at(monday, 12, 30), Type: attendance.SessionTypeLunch},
						{Order: 3, Start: *at(monday, 12, 30), End: *at(monday, 18, 0), Type: attendance.SessionTypeWork},
					},
				}
			},
			want: "9.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeDay(tt.rec(), benefit.DefaultSettings(), nil)
			assert.True(t, res.WorkedHours.Equal(dec(tt.want)), "worked %s, want %s", res.WorkedHours, tt.want)
		})
	}
}

func TestComputeDay_LunchPolicyTable(t *testing.T) {
	tests := []struct {
		policy benefit.LunchPolicy
		want   string
	}{
		{benefit.LunchPolicyNone, "9"},
		{benefit.LunchPolicyShort, "8.5"},
		{benefit.LunchPolicyStandard, "8"},
		{benefit.LunchPolicyExtended, "7.5"},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			s := benefit.DefaultSettings()
			s.LunchPolicy = tt.policy
			res := ComputeDay(dayRecord(monday, 8, 17), s, nil)
			assert.True(t, res.WorkedHours.Equal(dec(tt.want)), "worked %s", res.WorkedHours)
		})
	}
}

func TestComputeDay_Overtime(t *testing.T) {
	res := ComputeDay(dayRecord(monday, 7, 19), benefit.DefaultSettings(), nil)

	assert.True(t, res.WorkedHours.Equal(dec("11")))
	assert.True(t, res.OrdinaryHours.Equal(dec("8")))
	assert.True(t, res.OvertimeHours.Equal(dec("3")))
	assert.Equal(t, benefit.BucketOvertime, res.Bucket)
}

func TestComputeDay_SaturdayBusinessTrip(t *testing.T) {
	saturday := benefit.NewDate(2024, 3, 2)
	s := benefit.DefaultSettings()
	s.SaturdayPolicy = benefit.SaturdayPolicyBusinessTrip
	s.SaturdayTripHourlyRate = dec("12.50")

	res := ComputeDay(dayRecord(saturday, 8, 13), s, nil)

	assert.Equal(t, benefit.BucketSaturdayTrip, res.Bucket)
	assert.True(t, res.SaturdayTripHours.Equal(dec("5")))
	assert.True(t, res.SaturdayTripAmount.Equal(dec("62.5")))
	assert.True(t, res.OrdinaryHours.IsZero())
	assert.True(t, res.OvertimeHours.IsZero())

	// the same day under the overtime policy stays ordinary
	res = ComputeDay(dayRecord(saturday, 8, 13), benefit.DefaultSettings(), nil)
	assert.Equal(t, benefit.BucketOrdinary, res.Bucket)
	assert.True(t, res.SaturdayTripHours.IsZero())
}

func TestComputeDay_BenefitPolicyAndThresholds(t *testing.T) {
	tests := []struct {
		name          string
		policy        benefit.BenefitPolicy
		endHour       int
		wantVoucher   bool
		wantAllowance bool
	}{
		{"disabled", benefit.BenefitPolicyDisabled, 17, false, false},
		{"voucher only", benefit.BenefitPolicyVoucherOnly, 17, true, false},
		{"allowance only", benefit.BenefitPolicyAllowanceOnly, 17, false, true},
		{"both", benefit.BenefitPolicyBoth, 17, true, true},
		{"both below minimum hours", benefit.BenefitPolicyBoth, 12, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := benefit.DefaultSettings()
			s.BenefitPolicy = tt.policy
			res := ComputeDay(dayRecord(monday, 8, tt.endHour), s, nil)
			assert.Equal(t, tt.wantVoucher, res.MealVoucher)
			assert.Equal(t, tt.wantAllowance, res.DailyAllowance)
		})
	}
}

func TestComputeDay_ManualConversionSuppressesBothBenefits(t *testing.T) {
	s := benefit.DefaultSettings()
	s.BenefitPolicy = benefit.BenefitPolicyBoth
	rec := dayRecord(monday, 8, 17)

	auto := ComputeDay(rec, s, nil)
	assert.True(t, auto.MealVoucher)
	assert.True(t, auto.DailyAllowance)

	conv := &conversion.MealVoucherConversion{EmployeeID: "e1", Date: monday, ConvertedToAllowance: true}
	manual := ComputeDay(rec, s, conv)
	assert.False(t, manual.MealVoucher)
	assert.False(t, manual.DailyAllowance)
	assert.True(t, manual.ManualConversion)
	assert.True(t, manual.WorkedHours.Equal(dec("8")))

	notConverted := &conversion.MealVoucherConversion{EmployeeID: "e1", Date: monday}
	res := ComputeDay(rec, s, notConverted)
	assert.True(t, res.MealVoucher)
	assert.True(t, res.DailyAllowance)
}

func TestComputeDay_Absence(t *testing.T) {
	sick := "sick"
	rec := attendance.Record{Date: monday, IsAbsent: true, AbsenceType: &sick}

	res := ComputeDay(rec, benefit.DefaultSettings(), nil)

	assert.True(t, res.Absent)
	assert.Equal(t, benefit.BucketAbsence, res.Bucket)
	assert.Equal(t, "sick", res.AbsenceType)
	assert.True(t, res.AbsentHours.Equal(dec("8")))
	assert.True(t, res.WorkedHours.IsZero())
	assert.False(t, res.MealVoucher)
}

func TestWorkedDuration_NeverNegative(t *testing.T) {
	ninety := 90
	rec := dayRecord(monday, 8, 9)
	rec.LunchMinutes = &ninety

	assert.Equal(t, time.Duration(0), WorkedDuration(rec, benefit.LunchPolicyStandard))

	inverted := dayRecord(monday, 17, 8)
	assert.Equal(t, time.Duration(0), WorkedDuration(inverted, benefit.LunchPolicyStandard))
}
