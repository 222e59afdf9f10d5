package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkforceSnapshotValidateAcceptsWellFormed(t *testing.T) {
	s := WorkforceSnapshot{
		EmployeeID:                     "EMP-001",
		SimulationYear:                 2025,
		CurrentCompensation:            80000,
		ProratedAnnualCompensation:     40000,
		FullYearEquivalentCompensation: 80000,
		EmploymentStatus:               StatusActive,
		Level:                          3,
		Age:                            34,
		Tenure:                         5,
	}
	assert.NoError(t, s.Validate())
}

func TestWorkforceSnapshotValidateRejectsProratedOverFullYear(t *testing.T) {
	s := WorkforceSnapshot{
		EmployeeID:                     "EMP-002",
		ProratedAnnualCompensation:     90000,
		FullYearEquivalentCompensation: 80000,
		EmploymentStatus:               StatusActive,
	}
	err := s.Validate()
	require.Error(t, err)
	var invErr *SnapshotInvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "EMP-002", invErr.EmployeeID)
}

func TestWorkforceSnapshotValidateRejectsUnknownStatus(t *testing.T) {
	s := WorkforceSnapshot{
		EmployeeID:                     "EMP-003",
		ProratedAnnualCompensation:     10000,
		FullYearEquivalentCompensation: 10000,
		EmploymentStatus:               "on_leave",
	}
	assert.Error(t, s.Validate())
}

func TestConfigHashIsDeterministic(t *testing.T) {
	type sample struct {
		StartYear int
		EndYear   int
		Seed      int64
	}
	a, err := ConfigHash(sample{StartYear: 2025, EndYear: 2030, Seed: 42})
	require.NoError(t, err)
	b, err := ConfigHash(sample{StartYear: 2025, EndYear: 2030, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConfigHashChangesWithContent(t *testing.T) {
	type sample struct{ Seed int64 }
	a, err := ConfigHash(sample{Seed: 42})
	require.NoError(t, err)
	b, err := ConfigHash(sample{Seed: 43})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewEventIDIsDeterministicAndIdentityLike(t *testing.T) {
	id1 := NewEventID("SCN-1", "PD-1", "EMP-001", 2025, EventHire)
	id2 := NewEventID("SCN-1", "PD-1", "EMP-001", 2025, EventHire)
	assert.Equal(t, id1, id2)

	id3 := NewEventID("SCN-1", "PD-1", "EMP-001", 2025, EventTermination)
	assert.NotEqual(t, id1, id3)
}
