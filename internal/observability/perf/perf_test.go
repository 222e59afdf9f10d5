package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeStopRecordsDurationAndStatus(t *testing.T) {
	m := New(nil, 10)
	scope := m.Start("FOUNDATION")
	time.Sleep(time.Millisecond)
	r := scope.Stop(StatusSuccess)

	assert.Equal(t, "FOUNDATION", r.Name)
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Greater(t, r.Duration, time.Duration(0))
}

func TestScopeStopIsIdempotent(t *testing.T) {
	m := New(nil, 10)
	scope := m.Start("op")
	first := scope.Stop(StatusSuccess)
	second := scope.Stop(StatusFailed)

	assert.Equal(t, "op", first.Name)
	assert.Equal(t, Record{}, second)
}

func TestHistoryBoundedByMaxSize(t *testing.T) {
	m := New(nil, 2)
	for i := 0; i < 5; i++ {
		m.Start("op").Stop(StatusSuccess)
	}
	require.Len(t, m.History(), 2)
}

func TestAverageDurationOnlyCountsSuccessfulMatchingRecords(t *testing.T) {
	m := New(nil, 10)
	m.Start("year").Stop(StatusFailed)
	m.Start("year").Stop(StatusSuccess)
	m.Start("other").Stop(StatusSuccess)

	history := m.History()
	var successfulYear int
	for _, r := range history {
		if r.Name == "year" && r.Status == StatusSuccess {
			successfulYear++
		}
	}
	assert.Equal(t, 1, successfulYear)
	assert.GreaterOrEqual(t, m.AverageDuration("year"), time.Duration(0))
}

func TestAverageDurationReturnsZeroWithNoMatches(t *testing.T) {
	m := New(nil, 10)
	assert.Equal(t, time.Duration(0), m.AverageDuration("nonexistent"))
}
