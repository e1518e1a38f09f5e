package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"123e4567-e89b-42d3-a456-426614174000",
		"123E4567-E89B-42D3-A456-426614174000",
	}
	invalid := []string{
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"",
	}
	for _, uuid := range valid {
		if !IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = false, want true", uuid)
		}
	}
	for _, uuid := range invalid {
		if IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = true, want false", uuid)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2024-01-01", "1999-12-31"}
	invalid := []string{"2024-13-01", "2024-01-32", "01-01-2024", "", "2024/01/01"}
	for _, d := range valid {
		if _, ok := IsValidDate(d); !ok {
			t.Errorf("IsValidDate(%q) = false, want true", d)
		}
	}
	for _, d := range invalid {
		if _, ok := IsValidDate(d); ok {
			t.Errorf("IsValidDate(%q) = true, want false", d)
		}
	}
}

func TestIsValidMonth(t *testing.T) {
	valid := []string{"2024-01", "1999-12"}
	invalid := []string{"2024-13", "2024-1-01", "", "2024/01", "2024-01-15"}
	for _, m := range valid {
		if !IsValidMonth(m) {
			t.Errorf("IsValidMonth(%q) = false, want true", m)
		}
	}
	for _, m := range invalid {
		if IsValidMonth(m) {
			t.Errorf("IsValidMonth(%q) = true, want false", m)
		}
	}
}

func TestIsValidDateTime(t *testing.T) {
	valid := []string{"2024-01-15T10:30:00Z", "2024-01-15T10:30:00+07:00", "2024-01-15T10:30:00.123Z"}
	invalid := []string{"2024-01-15 10:30:00", "10:30", ""}
	for _, v := range valid {
		if _, ok := IsValidDateTime(v); !ok {
			t.Errorf("IsValidDateTime(%q) = false, want true", v)
		}
	}
	for _, v := range invalid {
		if _, ok := IsValidDateTime(v); ok {
			t.Errorf("IsValidDateTime(%q) = true, want false", v)
		}
	}
}

func TestIsInSlice(t *testing.T) {
	slice := []string{"a", "b", "c"}
	if !IsInSlice("a", slice) {
		t.Error("IsInSlice(\"a\") = false, want true")
	}
	if IsInSlice("d", slice) {
		t.Error("IsInSlice(\"d\") = true, want false")
	}
}

func TestIsNonNegative(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	pos := decimal.NewFromInt(1)
	if !IsNonNegative(nil) {
		t.Error("IsNonNegative(nil) = false, want true")
	}
	if !IsNonNegative(&pos) {
		t.Error("IsNonNegative(1) = false, want true")
	}
	if IsNonNegative(&neg) {
		t.Error("IsNonNegative(-1) = true, want false")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "month", Message: "month is required"},
		{Field: "employee_id", Message: "employee_id is required"},
	}
	want := "month: month is required; employee_id: employee_id is required"
	if errs.Error() != want {
		t.Errorf("ValidationErrors.Error() = %q, want %q", errs.Error(), want)
	}
}

func TestValidationErrors_ToMap(t *testing.T) {
	errs := ValidationErrors{
		{Field: "month", Message: "month is required"},
		{Field: "date", Message: "date is invalid"},
	}
	m := errs.ToMap()
	if m["month"] != "month is required" || m["date"] != "date is invalid" {
		t.Errorf("ValidationErrors.ToMap() = %v", m)
	}
}
