package checkpoint

import (
	"context"
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/store"
)

// CaptureDatabaseState builds the database_state half of a checkpoint:
// row counts for every tracked table, per §4.8's "Write" step. Tables
// that don't exist yet (a brand-new database on year one) count as zero
// rather than failing the capture.
func CaptureDatabaseState(ctx context.Context, s *store.Store, tables []string) (domain.DatabaseState, error) {
	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		exists, err := s.TableExists(ctx, table)
		if err != nil {
			return domain.DatabaseState{}, fmt.Errorf("checkpoint: check table %s exists: %w", table, err)
		}
		if !exists {
			counts[table] = 0
			continue
		}
		n, err := s.TableRowCount(ctx, table)
		if err != nil {
			return domain.DatabaseState{}, fmt.Errorf("checkpoint: count rows in %s: %w", table, err)
		}
		counts[table] = n
	}
	return domain.DatabaseState{TableCounts: counts}, nil
}

// CaptureValidationData builds the validation_data half of a checkpoint
// from one year's already-materialized events: an event-type histogram
// plus the aggregate compensation/contribution sums used to detect drift
// between years.
func CaptureValidationData(events []domain.Event, snapshots []domain.WorkforceSnapshot, registryContributions map[string]domain.ContributionRegistryEntry) domain.ValidationData {
	histogram := make(map[string]int64)
	for _, e := range events {
		histogram[string(e.EventType)]++
	}

	var totalComp float64
	for _, snap := range snapshots {
		totalComp += snap.ProratedAnnualCompensation
	}

	var totalContrib float64
	for _, entry := range registryContributions {
		totalContrib += entry.TotalEmployeeContributions + entry.TotalEmployerContributions
	}

	return domain.ValidationData{
		EventDistribution:  histogram,
		TotalCompensation:  totalComp,
		TotalContributions: totalContrib,
	}
}
