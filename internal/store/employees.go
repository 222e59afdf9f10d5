package store

import (
	"context"
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// TargetHires returns the vector engine's hire target for a year, read
// exactly from int_workforce_needs rather than approximated (Open
// Question decision (b)).
func (s *Store) TargetHires(ctx context.Context, year int) (int, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(target_hires), 0)
		FROM int_workforce_needs
		WHERE simulation_year = $1
	`, year)
	if err != nil {
		return 0, fmt.Errorf("store: target_hires year=%d: %w", year, err)
	}
	return int(total), nil
}

// UpsertEmployees writes the STATE_ACCUMULATION stage's per-year employee
// rows, replacing any row already present for (employee_id, simulation_year).
func (s *Store) UpsertEmployees(ctx context.Context, employees []domain.Employee) error {
	if len(employees) == 0 {
		return nil
	}
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		for _, e := range employees {
			_, err := s.db.ExecContext(ctx, `
				INSERT INTO employees (
					employee_id, simulation_year, current_compensation, level, tenure,
					employment_status, enrollment_status, deferral_rate
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (employee_id, simulation_year) DO UPDATE SET
					current_compensation = EXCLUDED.current_compensation,
					level = EXCLUDED.level,
					tenure = EXCLUDED.tenure,
					employment_status = EXCLUDED.employment_status,
					enrollment_status = EXCLUDED.enrollment_status,
					deferral_rate = EXCLUDED.deferral_rate
			`,
				e.EmployeeID, e.SimulationYear, e.CurrentCompensation, e.Level, e.Tenure,
				string(e.EmploymentStatus), e.EnrollmentStatus, e.DeferralRate,
			)
			if err != nil {
				return fmt.Errorf("store: upsert employee %s year=%d: %w", e.EmployeeID, e.SimulationYear, err)
			}
		}
		return nil
	})
}

// employeeRow mirrors the employees table for sqlx's struct scanning; kept
// separate from domain.Employee so the domain type carries no storage tags.
type employeeRow struct {
	EmployeeID          string  `db:"employee_id"`
	SimulationYear      int     `db:"simulation_year"`
	CurrentCompensation float64 `db:"current_compensation"`
	Level               int     `db:"level"`
	Tenure              int     `db:"tenure"`
	EmploymentStatus    string  `db:"employment_status"`
	EnrollmentStatus    string  `db:"enrollment_status"`
	DeferralRate        float64 `db:"deferral_rate"`
}

// EmployeesForYear returns every employee row for a year.
func (s *Store) EmployeesForYear(ctx context.Context, year int) ([]domain.Employee, error) {
	var rows []employeeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT employee_id, simulation_year, current_compensation, level, tenure,
		       employment_status, enrollment_status, deferral_rate
		FROM employees
		WHERE simulation_year = $1
		ORDER BY employee_id
	`, year)
	if err != nil {
		return nil, fmt.Errorf("store: employees_for_year %d: %w", year, err)
	}

	employees := make([]domain.Employee, len(rows))
	for i, r := range rows {
		employees[i] = domain.Employee{
			EmployeeID:          r.EmployeeID,
			SimulationYear:      r.SimulationYear,
			CurrentCompensation: r.CurrentCompensation,
			Level:               r.Level,
			Tenure:              r.Tenure,
			EmploymentStatus:    domain.EmploymentStatus(r.EmploymentStatus),
			EnrollmentStatus:    r.EnrollmentStatus,
			DeferralRate:        r.DeferralRate,
		}
	}
	return employees, nil
}

// ActiveHeadcount returns the number of active employees for a year, the
// base figure the workforce-needs calculation (§4.10) grows from.
func (s *Store) ActiveHeadcount(ctx context.Context, year int) (int64, error) {
	return s.Count(ctx, "employees", "simulation_year = $1 AND employment_status = $2", year, string(domain.StatusActive))
}
