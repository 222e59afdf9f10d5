package store

import (
	"context"
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// InsertSnapshots writes the REPORTING stage's per-year workforce
// snapshots, replacing any row already present for (employee_id,
// simulation_year).
func (s *Store) InsertSnapshots(ctx context.Context, snapshots []domain.WorkforceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if err := snap.Validate(); err != nil {
			return fmt.Errorf("store: refusing to insert invalid snapshot: %w", err)
		}
	}
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		for _, snap := range snapshots {
			_, err := s.db.ExecContext(ctx, `
				INSERT INTO workforce_snapshots (
					employee_id, simulation_year, current_compensation,
					prorated_annual_compensation, full_year_equivalent_compensation,
					employment_status, level, age, tenure
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (employee_id, simulation_year) DO UPDATE SET
					current_compensation = EXCLUDED.current_compensation,
					prorated_annual_compensation = EXCLUDED.prorated_annual_compensation,
					full_year_equivalent_compensation = EXCLUDED.full_year_equivalent_compensation,
					employment_status = EXCLUDED.employment_status,
					level = EXCLUDED.level,
					age = EXCLUDED.age,
					tenure = EXCLUDED.tenure
			`,
				snap.EmployeeID, snap.SimulationYear, snap.CurrentCompensation,
				snap.ProratedAnnualCompensation, snap.FullYearEquivalentCompensation,
				string(snap.EmploymentStatus), snap.Level, snap.Age, snap.Tenure,
			)
			if err != nil {
				return fmt.Errorf("store: insert snapshot %s year=%d: %w", snap.EmployeeID, snap.SimulationYear, err)
			}
		}
		return nil
	})
}

// SnapshotsForYear returns every workforce snapshot for a year.
func (s *Store) SnapshotsForYear(ctx context.Context, year int) ([]domain.WorkforceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, simulation_year, current_compensation,
		       prorated_annual_compensation, full_year_equivalent_compensation,
		       employment_status, level, age, tenure
		FROM workforce_snapshots
		WHERE simulation_year = $1
		ORDER BY employee_id
	`, year)
	if err != nil {
		return nil, fmt.Errorf("store: snapshots_for_year %d: %w", year, err)
	}
	defer rows.Close()

	var snapshots []domain.WorkforceSnapshot
	for rows.Next() {
		var snap domain.WorkforceSnapshot
		var status string
		if err := rows.Scan(
			&snap.EmployeeID, &snap.SimulationYear, &snap.CurrentCompensation,
			&snap.ProratedAnnualCompensation, &snap.FullYearEquivalentCompensation,
			&status, &snap.Level, &snap.Age, &snap.Tenure,
		); err != nil {
			return nil, fmt.Errorf("store: scan snapshot: %w", err)
		}
		snap.EmploymentStatus = domain.EmploymentStatus(status)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
