package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

func TestRowCountDriftRuleFlagsLargeDrift(t *testing.T) {
	r := RowCountDriftRule{}
	f := r.Check(context.Background(), Snapshot{
		PriorYearRowCount: map[string]int64{"employees": 1000},
		CurrentRowCount:   map[string]int64{"employees": 2000},
	})
	assert.False(t, f.Passed)
	assert.Equal(t, SeverityError, f.Severity)
}

func TestRowCountDriftRulePassesWithinBound(t *testing.T) {
	r := RowCountDriftRule{}
	f := r.Check(context.Background(), Snapshot{
		PriorYearRowCount: map[string]int64{"employees": 1000},
		CurrentRowCount:   map[string]int64{"employees": 1050},
	})
	assert.True(t, f.Passed)
}

func TestHireTerminationRatioRuleFlagsOutOfBounds(t *testing.T) {
	r := HireTerminationRatioRule{}
	f := r.Check(context.Background(), Snapshot{HireCount: 1000, TerminationCount: 10})
	assert.False(t, f.Passed)
	assert.Equal(t, SeverityWarning, f.Severity)
}

func TestEventSequenceRuleFlagsOutOfOrderEvents(t *testing.T) {
	r := EventSequenceRule{}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	events := []domain.Event{
		{EmployeeID: "EMP-1", EffectiveDate: base, EventSequence: 2},
		{EmployeeID: "EMP-1", EffectiveDate: base, EventSequence: 1},
	}
	f := r.Check(context.Background(), Snapshot{Events: events})
	assert.False(t, f.Passed)
	assert.Equal(t, SeverityCritical, f.Severity)
}

func TestEventSequenceRulePassesForMonotonicEvents(t *testing.T) {
	r := EventSequenceRule{}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	events := []domain.Event{
		{EmployeeID: "EMP-1", EffectiveDate: base, EventSequence: 1},
		{EmployeeID: "EMP-1", EffectiveDate: base.AddDate(0, 1, 0), EventSequence: 2},
	}
	f := r.Check(context.Background(), Snapshot{Events: events})
	assert.True(t, f.Passed)
}

func TestEventSpikeRuleFlagsDominantEventType(t *testing.T) {
	r := EventSpikeRule{}
	var events []domain.Event
	for i := 0; i < 9; i++ {
		events = append(events, domain.Event{EventType: domain.EventMerit})
	}
	events = append(events, domain.Event{EventType: domain.EventHire})
	f := r.Check(context.Background(), Snapshot{Events: events})
	assert.False(t, f.Passed)
}

func TestCompensationBoundsRuleFlagsUnjustifiedJump(t *testing.T) {
	r := CompensationBoundsRule{}
	f := r.Check(context.Background(), Snapshot{
		Snapshots:         []domain.WorkforceSnapshot{{EmployeeID: "EMP-1", CurrentCompensation: 150000}},
		PriorCompensation: map[string]float64{"EMP-1": 100000},
	})
	assert.False(t, f.Passed)
}

func TestCompensationBoundsRuleAllowsJumpWithPromotion(t *testing.T) {
	r := CompensationBoundsRule{}
	f := r.Check(context.Background(), Snapshot{
		Snapshots:         []domain.WorkforceSnapshot{{EmployeeID: "EMP-1", CurrentCompensation: 150000}},
		PriorCompensation: map[string]float64{"EMP-1": 100000},
		PromotedEmployees: map[string]bool{"EMP-1": true},
	})
	assert.True(t, f.Passed)
}

func TestOrphanedEventRuleFlagsTerminationWithoutHire(t *testing.T) {
	r := OrphanedEventRule{}
	f := r.Check(context.Background(), Snapshot{
		Events: []domain.Event{{EmployeeID: "EMP-1", EventType: domain.EventTermination}},
	})
	assert.False(t, f.Passed)
	assert.Equal(t, SeverityCritical, f.Severity)
}

func TestOrphanedEventRulePassesWhenHiredThisYear(t *testing.T) {
	r := OrphanedEventRule{}
	f := r.Check(context.Background(), Snapshot{
		Events: []domain.Event{
			{EmployeeID: "EMP-1", EventType: domain.EventHire},
			{EmployeeID: "EMP-1", EventType: domain.EventTermination},
		},
	})
	assert.True(t, f.Passed)
}

func TestEngineRunAbortsWhenFailOnValidationErrorAndCriticalFinding(t *testing.T) {
	e := New(true)
	_, err := e.Run(context.Background(), Snapshot{
		Events: []domain.Event{{EmployeeID: "EMP-1", EventType: domain.EventTermination}},
	})
	require.Error(t, err)
}

func TestEngineRunSurfacesWithoutAbortingWhenFailOnValidationErrorUnset(t *testing.T) {
	e := New(false)
	findings, err := e.Run(context.Background(), Snapshot{
		Events: []domain.Event{{EmployeeID: "EMP-1", EventType: domain.EventTermination}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, findings)
}
