// Package registry implements the three monotonic per-employee folds the
// orchestrator carries forward across years: enrollment, deferral
// escalation, and contribution totals (the third is a SPEC_FULL
// supplement alongside the two the distilled spec names). Each registry
// is updated once per year per employee and never rewinds — a later year
// can only add to or confirm what an earlier year established.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/store"
)

// Registries bundles the three per-employee folds behind the shared
// analytical store.
type Registries struct {
	store *store.Store
}

// New wraps a store.Store with the registry read/update operations.
func New(s *store.Store) *Registries {
	return &Registries{store: s}
}

// UpdateEnrollment folds this year's enrollment observation into the
// registry. first_enrollment_date is set once and never overwritten;
// ever_opted_out is sticky (true stays true); current_deferral_rate and
// updated_through_year always advance to the latest observation.
func (r *Registries) UpdateEnrollment(ctx context.Context, employeeID string, year int, enrolled bool, optedOut bool, deferralRate float64) error {
	return r.store.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		var firstEnrollmentDate *time.Time
		if enrolled {
			now := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			firstEnrollmentDate = &now
		}
		_, err := r.store.DB().ExecContext(ctx, `
			INSERT INTO enrollment_registry (
				employee_id, first_enrollment_date, ever_opted_out,
				current_deferral_rate, updated_through_year
			) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (employee_id) DO UPDATE SET
				first_enrollment_date = COALESCE(enrollment_registry.first_enrollment_date, EXCLUDED.first_enrollment_date),
				ever_opted_out = enrollment_registry.ever_opted_out OR EXCLUDED.ever_opted_out,
				current_deferral_rate = EXCLUDED.current_deferral_rate,
				updated_through_year = GREATEST(enrollment_registry.updated_through_year, EXCLUDED.updated_through_year)
		`, employeeID, firstEnrollmentDate, optedOut, deferralRate, year)
		if err != nil {
			return fmt.Errorf("registry: update enrollment for %s year=%d: %w", employeeID, year, err)
		}
		return nil
	})
}

// GetEnrollment returns the current enrollment registry entry for an
// employee, or a zero-value entry if none exists yet.
func (r *Registries) GetEnrollment(ctx context.Context, employeeID string) (domain.EnrollmentRegistryEntry, error) {
	var entry domain.EnrollmentRegistryEntry
	entry.EmployeeID = employeeID
	row := r.store.DB().QueryRowContext(ctx, `
		SELECT first_enrollment_date, ever_opted_out, current_deferral_rate, updated_through_year
		FROM enrollment_registry WHERE employee_id = $1
	`, employeeID)
	err := row.Scan(&entry.FirstEnrollmentDate, &entry.EverOptedOut, &entry.CurrentDeferralRate, &entry.UpdatedThroughYear)
	if err != nil {
		if isNoRows(err) {
			return entry, nil
		}
		return entry, fmt.Errorf("registry: get enrollment for %s: %w", employeeID, err)
	}
	return entry, nil
}

// UpdateDeferralEscalation records a deferral-rate escalation event,
// incrementing escalation_count and setting last_escalation_year to this
// year.
func (r *Registries) UpdateDeferralEscalation(ctx context.Context, employeeID string, year int, newDeferralRate float64) error {
	return r.store.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		_, err := r.store.DB().ExecContext(ctx, `
			INSERT INTO deferral_escalation_registry (
				employee_id, escalation_count, current_deferral_rate,
				last_escalation_year, updated_through_year
			) VALUES ($1, 1, $2, $3, $3)
			ON CONFLICT (employee_id) DO UPDATE SET
				escalation_count = deferral_escalation_registry.escalation_count + 1,
				current_deferral_rate = EXCLUDED.current_deferral_rate,
				last_escalation_year = EXCLUDED.last_escalation_year,
				updated_through_year = GREATEST(deferral_escalation_registry.updated_through_year, EXCLUDED.updated_through_year)
		`, employeeID, newDeferralRate, year)
		if err != nil {
			return fmt.Errorf("registry: update deferral escalation for %s year=%d: %w", employeeID, year, err)
		}
		return nil
	})
}

// GetDeferralEscalation returns the current deferral escalation entry for
// an employee, or a zero-value entry if none exists yet.
func (r *Registries) GetDeferralEscalation(ctx context.Context, employeeID string) (domain.DeferralEscalationRegistryEntry, error) {
	var entry domain.DeferralEscalationRegistryEntry
	entry.EmployeeID = employeeID
	row := r.store.DB().QueryRowContext(ctx, `
		SELECT escalation_count, current_deferral_rate, last_escalation_year, updated_through_year
		FROM deferral_escalation_registry WHERE employee_id = $1
	`, employeeID)
	err := row.Scan(&entry.EscalationCount, &entry.CurrentDeferralRate, &entry.LastEscalationYear, &entry.UpdatedThroughYear)
	if err != nil {
		if isNoRows(err) {
			return entry, nil
		}
		return entry, fmt.Errorf("registry: get deferral escalation for %s: %w", employeeID, err)
	}
	return entry, nil
}

// UpdateContribution adds this year's employee and employer contributions
// to the running totals (SPEC_FULL C.3).
func (r *Registries) UpdateContribution(ctx context.Context, employeeID string, year int, employeeContribution, employerContribution float64) error {
	return r.store.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		_, err := r.store.DB().ExecContext(ctx, `
			INSERT INTO contribution_registry (
				employee_id, total_employee_contributions, total_employer_contributions,
				updated_through_year
			) VALUES ($1, $2, $3, $4)
			ON CONFLICT (employee_id) DO UPDATE SET
				total_employee_contributions = contribution_registry.total_employee_contributions + EXCLUDED.total_employee_contributions,
				total_employer_contributions = contribution_registry.total_employer_contributions + EXCLUDED.total_employer_contributions,
				updated_through_year = GREATEST(contribution_registry.updated_through_year, EXCLUDED.updated_through_year)
		`, employeeID, employeeContribution, employerContribution, year)
		if err != nil {
			return fmt.Errorf("registry: update contribution for %s year=%d: %w", employeeID, year, err)
		}
		return nil
	})
}

// GetContribution returns the current contribution registry entry for an
// employee, or a zero-value entry if none exists yet.
func (r *Registries) GetContribution(ctx context.Context, employeeID string) (domain.ContributionRegistryEntry, error) {
	var entry domain.ContributionRegistryEntry
	entry.EmployeeID = employeeID
	row := r.store.DB().QueryRowContext(ctx, `
		SELECT total_employee_contributions, total_employer_contributions, updated_through_year
		FROM contribution_registry WHERE employee_id = $1
	`, employeeID)
	err := row.Scan(&entry.TotalEmployeeContributions, &entry.TotalEmployerContributions, &entry.UpdatedThroughYear)
	if err != nil {
		if isNoRows(err) {
			return entry, nil
		}
		return entry, fmt.Errorf("registry: get contribution for %s: %w", employeeID, err)
	}
	return entry, nil
}

// Reset clears all three registries. Called once, at the start year, on a
// fresh (non-resumed) run — a resumed run must never call this, or every
// prior year's monotonic state is lost.
func (r *Registries) Reset(ctx context.Context) error {
	return r.store.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		for _, table := range []string{"enrollment_registry", "deferral_escalation_registry", "contribution_registry"} {
			if _, err := r.store.DB().ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("registry: reset %s: %w", table, err)
			}
		}
		return nil
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
