package benefit

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Date truncates t to a civil date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidDateRange, s)
	}
	return t, nil
}

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidDateRange, s)
	}
	return MonthOf(t), nil
}

// Validate rejects zero or out-of-range months before any fetch happens.
func (m Month) Validate() error {
	if m.Year < 1900 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidDateRange, m.Year)
	}
	if m.Month < time.January || m.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidDateRange, int(m.Month))
	}
	return nil
}

// Start is the first day of the month.
func (m Month) Start() time.Time { return NewDate(m.Year, m.Month, 1) }

// End is the first day of the next month (exclusive bound).
func (m Month) End() time.Time { return m.Start().AddDate(0, 1, 0) }

// Last is the last day of the month.
func (m Month) Last() time.Time { return m.End().AddDate(0, 0, -1) }

func (m Month) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(m.Start()) && d.Before(m.End())
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Days lists every date of the month in order.
func (m Month) Days() []time.Time {
	var days []time.Time
	for d := m.Start(); d.Before(m.End()); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
