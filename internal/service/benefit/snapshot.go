package benefit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/benefit"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/company"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/conversion"
	"github.com/cmlabs-hris/hris-benefits-go/internal/domain/employee"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

// Snapshot holds every row that can influence one company month.
type Snapshot struct {
	CompanyID string
	Month     benefit.Month

	Employees              []employee.Employee
	Policy                 *benefit.CompanyPolicy // nil when the company has no policy
	Overrides              []benefit.EmployeeOverride
	Records                []attendance.Record
	Absences               []attendance.Absence
	MealVoucherConversions []conversion.MealVoucherConversion
	OvertimeConversions    []conversion.OvertimeConversion
	Holidays               []company.Holiday
}

// Sources bundles the repositories a snapshot is read from. Companies is
// optional; when set, an unknown company fails the snapshot.
type Sources struct {
	Companies   company.CompanyRepository
	Employees   employee.EmployeeRepository
	Policies    benefit.PolicyRepository
	Attendance  attendance.Repository
	Conversions conversion.Repository
	Holidays    company.HolidayRepository
}

// FetchSnapshot issues all reads for the month concurrently. A missing
// company policy is not an error here; it fails every employee later.
func FetchSnapshot(ctx context.Context, src Sources, companyID string, month benefit.Month) (*Snapshot, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	from, to := month.Start(), month.End()
	snap := &Snapshot{CompanyID: companyID, Month: month}

	g, ctx := errgroup.WithContext(ctx)

	if src.Companies != nil {
		g.Go(func() error {
			if _, err := src.Companies.GetByID(ctx, companyID); err != nil {
				return fmt.Errorf("get company: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		list, err := src.Employees.ListForPeriod(ctx, companyID, from, to)
		if err != nil {
			return fmt.Errorf("list employees: %w", err)
		}
		snap.Employees = list
		return nil
	})
	g.Go(func() error {
		policy, err := src.Policies.GetCompanyPolicy(ctx, companyID)
		if errors.Is(err, benefit.ErrConfigurationMissing) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get company policy: %w", err)
		}
		snap.Policy = &policy
		return nil
	})
	g.Go(func() error {
		list, err := src.Policies.ListOverridesByCompany(ctx, companyID, from, to)
		if err != nil {
			return fmt.Errorf("list overrides: %w", err)
		}
		snap.Overrides = list
		return nil
	})
	g.Go(func() error {
		list, err := src.Attendance.ListByCompanyAndRange(ctx, companyID, nil, from, to)
		if err != nil {
			return fmt.Errorf("list attendance: %w", err)
		}
		snap.Records = list
		return nil
	})
	g.Go(func() error {
		list, err := src.Attendance.ListAbsencesByCompanyAndRange(ctx, companyID, nil, from, to)
		if err != nil {
			return fmt.Errorf("list absences: %w", err)
		}
		snap.Absences = list
		return nil
	})
	g.Go(func() error {
		list, err := src.Conversions.ListMealVoucherConversions(ctx, companyID, nil, from, to)
		if err != nil {
			return fmt.Errorf("list meal voucher conversions: %w", err)
		}
		snap.MealVoucherConversions = list
		return nil
	})
	g.Go(func() error {
		list, err := src.Conversions.ListOvertimeConversions(ctx, companyID, month.Year, int(month.Month))
		if err != nil {
			return fmt.Errorf("list overtime conversions: %w", err)
		}
		snap.OvertimeConversions = list
		return nil
	})
	g.Go(func() error {
		list, err := src.Holidays.ListByCompanyAndRange(ctx, companyID, from, to)
		if err != nil {
			return fmt.Errorf("list holidays: %w", err)
		}
		snap.Holidays = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.normalize()
	return snap, nil
}

// normalize sorts every list so that equal data always hashes equally,
// whatever order the store returned it in.
func (s *Snapshot) normalize() {
	sort.Slice(s.Employees, func(i, j int) bool { return s.Employees[i].ID < s.Employees[j].ID })
	sort.Slice(s.Overrides, func(i, j int) bool {
		a, b := s.Overrides[i], s.Overrides[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if !a.ValidFrom.Equal(b.ValidFrom) {
			return a.ValidFrom.Before(b.ValidFrom)
		}
		return a.ID < b.ID
	})
	sort.Slice(s.Records, func(i, j int) bool {
		a, b := s.Records[i], s.Records[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	for i := range s.Records {
		sessions := s.Records[i].Sessions
		sort.SliceStable(sessions, func(a, b int) bool { return sessions[a].Order < sessions[b].Order })
	}
	sort.Slice(s.Absences, func(i, j int) bool {
		a, b := s.Absences[i], s.Absences[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	sort.Slice(s.MealVoucherConversions, func(i, j int) bool {
		a, b := s.MealVoucherConversions[i], s.MealVoucherConversions[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.Date.Before(b.Date)
	})
	sort.Slice(s.OvertimeConversions, func(i, j int) bool {
		return s.OvertimeConversions[i].EmployeeID < s.OvertimeConversions[j].EmployeeID
	})
	sort.Slice(s.Holidays, func(i, j int) bool {
		a, b := s.Holidays[i], s.Holidays[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
}

// Hash is a hex BLAKE2b-256 digest over the canonical JSON encoding of the
// normalized snapshot.
func (s *Snapshot) Hash() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
