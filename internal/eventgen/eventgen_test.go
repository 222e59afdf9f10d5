package eventgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise-labs/navigator-core/infrastructure/cache"
	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/runner"
)

func TestLevelFromCompensationBuckets(t *testing.T) {
	assert.Equal(t, 1, levelFromCompensation(50_000))
	assert.Equal(t, 2, levelFromCompensation(75_000))
	assert.Equal(t, 3, levelFromCompensation(120_000))
	assert.Equal(t, 4, levelFromCompensation(150_000))
	assert.Equal(t, 5, levelFromCompensation(250_000))
}

func TestPerformanceTierFromEmployeeID(t *testing.T) {
	assert.Equal(t, PerformanceTierLow, performanceTier("EMP0001"))
	assert.Equal(t, PerformanceTierAverage, performanceTier("EMP0005"))
	assert.Equal(t, PerformanceTierHigh, performanceTier("EMP0009"))
	assert.Equal(t, PerformanceTierAverage, performanceTier(""))
}

func TestEnrichDerivesComputedFields(t *testing.T) {
	emp := domain.Employee{
		EmployeeID:          "EMP0001",
		CurrentCompensation: 95_000,
		Tenure:              3,
		EnrollmentStatus:    "enrolled",
	}
	enriched := Enrich(emp)
	assert.Equal(t, 3, enriched.TenureYears)
	assert.Equal(t, 36, enriched.TenureMonths)
	assert.Equal(t, 3, enriched.LevelID)
	assert.True(t, enriched.IsEnrolled)
	assert.Equal(t, PerformanceTierLow, enriched.PerformanceTier)
}

func TestParametersGetPrefersExactLevelOverride(t *testing.T) {
	params := DefaultParameters().
		WithOverride(domain.EventTermination, "base_rate", 0, 0.5).
		WithOverride(domain.EventTermination, "base_rate", 2, 0.9)

	assert.Equal(t, 0.9, params.Get(domain.EventTermination, "base_rate", 2, 0.12))
	assert.Equal(t, 0.5, params.Get(domain.EventTermination, "base_rate", 3, 0.12))
	assert.Equal(t, 0.12, params.Get(domain.EventPromotion, "base_rate", 3, 0.12))
}

func baseEmployee(id string, status domain.EmploymentStatus, tenureMonths int, tier string, comp float64) EnrichedEmployee {
	return EnrichedEmployee{
		Employee: domain.Employee{
			EmployeeID:          id,
			CurrentCompensation: comp,
			EmploymentStatus:    status,
		},
		TenureMonths:    tenureMonths,
		LevelID:         levelFromCompensation(comp),
		PerformanceTier: tier,
	}
}

func TestTerminationRuleSkipsInactiveEmployees(t *testing.T) {
	emp := baseEmployee("EMP0001", domain.StatusTerminated, 36, PerformanceTierAverage, 80_000)
	d := terminationRule(1, 2025, emp, DefaultParameters())
	assert.False(t, d.fires)
}

func TestTerminationRuleIsDeterministicAcrossCalls(t *testing.T) {
	emp := baseEmployee("EMP0002", domain.StatusActive, 36, PerformanceTierLow, 80_000)
	params := DefaultParameters()
	first := terminationRule(42, 2025, emp, params)
	second := terminationRule(42, 2025, emp, params)
	assert.Equal(t, first, second)
}

func TestPromotionRuleRequiresTenureAndHeadroom(t *testing.T) {
	params := DefaultParameters()
	tooNew := baseEmployee("EMP0003", domain.StatusActive, 6, PerformanceTierHigh, 80_000)
	assert.False(t, promotionRule(1, 2025, tooNew, params).fires)

	atCeiling := baseEmployee("EMP0004", domain.StatusActive, 60, PerformanceTierHigh, 300_000) // level 5
	assert.False(t, promotionRule(1, 2025, atCeiling, params).fires)
}

func TestPromotionRuleFiresDeterministicallyIncreasesSalary(t *testing.T) {
	params := DefaultParameters().WithOverride(domain.EventPromotion, "base_rate", 0, 1.0)
	emp := baseEmployee("EMP0005", domain.StatusActive, 24, PerformanceTierHigh, 80_000)
	d := promotionRule(1, 2025, emp, params)
	require.True(t, d.fires)
	assert.Equal(t, 3, d.payload["new_level"])
	assert.Greater(t, d.payload["new_salary"].(float64), emp.CurrentCompensation)
}

func TestMeritRuleFiresDeterministicallyIncreasesSalary(t *testing.T) {
	params := DefaultParameters().WithOverride(domain.EventMerit, "base_rate", 0, 1.0)
	emp := baseEmployee("EMP0006", domain.StatusActive, 24, PerformanceTierAverage, 80_000)
	d := meritRule(1, 2025, emp, params)
	require.True(t, d.fires)
	assert.Greater(t, d.payload["new_salary"].(float64), emp.CurrentCompensation)
}

func TestEnrollmentRuleSkipsAlreadyEnrolled(t *testing.T) {
	emp := baseEmployee("EMP0007", domain.StatusActive, 24, PerformanceTierAverage, 80_000)
	emp.IsEnrolled = true
	d := enrollmentRule(1, 2025, emp, DefaultParameters(), "plan-1")
	assert.False(t, d.fires)
}

func TestEnrollmentRuleFiresWithPlanDesignPayload(t *testing.T) {
	params := DefaultParameters().WithOverride(domain.EventEnrollment, "rate", 0, 1.0)
	emp := baseEmployee("EMP0008", domain.StatusActive, 24, PerformanceTierAverage, 80_000)
	d := enrollmentRule(1, 2025, emp, params, "plan-1")
	require.True(t, d.fires)
	assert.Equal(t, "plan-1", d.payload["plan_design_id"])
}

type fakeWorkforceNeeds struct {
	targetHires int
	err         error
}

func (f fakeWorkforceNeeds) TargetHires(ctx context.Context, year int) (int, error) {
	return f.targetHires, f.err
}

func TestVectorEngineGenerateYearOrdersEventsAndAssignsSequences(t *testing.T) {
	needs := fakeWorkforceNeeds{targetHires: 2}
	params := DefaultParameters().
		WithOverride(domain.EventPromotion, "base_rate", 0, 1.0).
		WithOverride(domain.EventMerit, "base_rate", 0, 1.0).
		WithOverride(domain.EventEnrollment, "rate", 0, 1.0)
	engine := NewVectorEngine(needs, params)

	roster := EnrichAll([]domain.Employee{
		{EmployeeID: "EMP0100", CurrentCompensation: 80_000, Tenure: 3, EmploymentStatus: domain.StatusActive, EnrollmentStatus: "not_enrolled"},
	})
	cfg := VectorConfig{ScenarioID: "S1", PlanDesignID: "P1", RandomSeed: 7}

	events, err := engine.GenerateYear(context.Background(), 2025, &roster, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	for i := 1; i < len(events); i++ {
		a, b := events[i-1], events[i]
		if a.EmployeeID == b.EmployeeID {
			assert.LessOrEqual(t, a.EventType, b.EventType)
		} else {
			assert.Less(t, a.EmployeeID, b.EmployeeID)
		}
	}

	seqByEmployee := map[string]int{}
	for _, e := range events {
		seqByEmployee[e.EmployeeID]++
		assert.Equal(t, seqByEmployee[e.EmployeeID], e.EventSequence)
	}

	// roster grew by the two hires
	assert.Len(t, roster, 3)
}

func TestVectorEngineGenerateYearPropagatesWorkforceNeedsError(t *testing.T) {
	needs := fakeWorkforceNeeds{err: assertError("boom")}
	engine := NewVectorEngine(needs, DefaultParameters())
	roster := []EnrichedEmployee{}
	_, err := engine.GenerateYear(context.Background(), 2025, &roster, VectorConfig{})
	assert.Error(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestVectorEngineGenerateRangeThreadsRosterAcrossYears(t *testing.T) {
	needs := fakeWorkforceNeeds{targetHires: 0}
	engine := NewVectorEngine(needs, DefaultParameters())
	baseline := []domain.Employee{
		{EmployeeID: "EMP0200", CurrentCompensation: 80_000, Tenure: 0, EmploymentStatus: domain.StatusActive, EnrollmentStatus: "not_enrolled"},
	}
	cfg := VectorConfig{ScenarioID: "S1", PlanDesignID: "P1", RandomSeed: 1}

	byYear, err := engine.GenerateRange(context.Background(), 2025, 2026, baseline, cfg)
	require.NoError(t, err)
	assert.Contains(t, byYear, 2025)
	assert.Contains(t, byYear, 2026)
}

func TestHazardCacheEnsureInvalidatesOnParameterChange(t *testing.T) {
	underlying := cache.NewCache(cache.DefaultConfig())
	hc := NewHazardCache(underlying)

	v0 := underlying.GetCurrentVersion()
	_, err := hc.Ensure(context.Background(), DefaultParameters())
	require.NoError(t, err)
	assert.Greater(t, underlying.GetCurrentVersion(), v0)

	v1 := underlying.GetCurrentVersion()
	_, err = hc.Ensure(context.Background(), DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, v1, underlying.GetCurrentVersion())

	changed := DefaultParameters()
	changed.TerminationBaseRate = 0.5
	_, err = hc.Ensure(context.Background(), changed)
	require.NoError(t, err)
	assert.Greater(t, underlying.GetCurrentVersion(), v1)
}

func TestHazardCacheGateAdaptsEnsure(t *testing.T) {
	underlying := cache.NewCache(cache.DefaultConfig())
	hc := NewHazardCache(underlying)
	gate := hc.Gate(DefaultParameters())
	assert.NoError(t, gate(context.Background()))
}

// fakeScopedStore is an in-memory ScopedStore standing in for a distributed
// backend such as cache.RedisScopedCache.
type fakeScopedStore struct {
	values map[string]interface{}
}

func newFakeScopedStore() *fakeScopedStore {
	return &fakeScopedStore{values: make(map[string]interface{})}
}

func (f *fakeScopedStore) Get(ctx context.Context, key string) (interface{}, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeScopedStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	f.values[key] = value
}

func (f *fakeScopedStore) Delete(ctx context.Context, key string) {
	delete(f.values, key)
}

func TestHazardCacheWithStoreEnsureCachesAcrossCalls(t *testing.T) {
	store := newFakeScopedStore()
	hc := NewHazardCacheWithStore(store)

	rates1, err := hc.Ensure(context.Background(), DefaultParameters())
	require.NoError(t, err)
	assert.NotEmpty(t, store.values)

	rates2, err := hc.Ensure(context.Background(), DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, rates1, rates2)
}

type fakeModelRunner struct {
	invocations []string
	fail        map[string]bool
}

func (f *fakeModelRunner) Invoke(ctx context.Context, selector string, vars runner.Variables, fullRefresh bool) (runner.Result, error) {
	f.invocations = append(f.invocations, selector)
	if f.fail[selector] {
		return runner.Result{}, assertError("invoke failed: " + selector)
	}
	return runner.Result{}, nil
}

func TestSQLGeneratorRunSingleShardExcludesDownstreamModels(t *testing.T) {
	rn := &fakeModelRunner{}
	gen := NewSQLGenerator(rn, []string{"fct_yearly_events", "fct_workforce_snapshot"})
	err := gen.Run(context.Background(), 2025, runner.Variables{}, 0, false)
	require.NoError(t, err)
	require.Len(t, rn.invocations, 1)
}

func TestSQLGeneratorRunShardedInvokesUnionWriter(t *testing.T) {
	rn := &fakeModelRunner{}
	gen := NewSQLGenerator(rn, nil)
	err := gen.Run(context.Background(), 2025, runner.Variables{}, 3, false)
	require.NoError(t, err)
	require.Len(t, rn.invocations, 4)
	assert.Equal(t, "events_union_writer", rn.invocations[3])
}

func TestSQLGeneratorRunShardedPropagatesShardFailure(t *testing.T) {
	rn := &fakeModelRunner{fail: map[string]bool{}}
	gen := NewSQLGenerator(rn, nil)
	rn.fail = map[string]bool{runner.ShardedSelector("events", 2025, 1): true}
	err := gen.Run(context.Background(), 2025, runner.Variables{}, 3, false)
	assert.Error(t, err)
}

func TestDispatcherSQLModeRunsDirectly(t *testing.T) {
	rn := &fakeModelRunner{}
	sql := NewSQLGenerator(rn, nil)
	d := NewDispatcher(ModeSQL, false, nil, sql)
	result, err := d.Dispatch(context.Background(), 2025, nil, VectorConfig{}, runner.Variables{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeSQL, result.Mode)
	assert.False(t, result.FallbackUsed)
}

func TestDispatcherVectorModeSucceedsWithoutFallback(t *testing.T) {
	needs := fakeWorkforceNeeds{targetHires: 0}
	vector := NewVectorEngine(needs, DefaultParameters())
	d := NewDispatcher(ModeVector, false, vector, nil)
	roster := []EnrichedEmployee{}
	result, err := d.Dispatch(context.Background(), 2025, &roster, VectorConfig{}, runner.Variables{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeVector, result.Mode)
	assert.False(t, result.FallbackUsed)
}

func TestDispatcherVectorModeFallsBackToSQLOnError(t *testing.T) {
	needs := fakeWorkforceNeeds{err: assertError("vector boom")}
	vector := NewVectorEngine(needs, DefaultParameters())
	rn := &fakeModelRunner{}
	sql := NewSQLGenerator(rn, nil)
	d := NewDispatcher(ModeVector, true, vector, sql)
	roster := []EnrichedEmployee{}
	result, err := d.Dispatch(context.Background(), 2025, &roster, VectorConfig{}, runner.Variables{}, 0, false)
	require.NoError(t, err)
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, ModeSQL, result.Mode)
}

func TestDispatcherVectorModeFailsWithoutFallbackConfigured(t *testing.T) {
	needs := fakeWorkforceNeeds{err: assertError("vector boom")}
	vector := NewVectorEngine(needs, DefaultParameters())
	d := NewDispatcher(ModeVector, false, vector, nil)
	roster := []EnrichedEmployee{}
	_, err := d.Dispatch(context.Background(), 2025, &roster, VectorConfig{}, runner.Variables{}, 0, false)
	assert.Error(t, err)
}

func TestSummarizeAggregatesCountsByYearAndType(t *testing.T) {
	events := map[int][]domain.Event{
		2025: {
			{EmployeeID: "E1", EventType: domain.EventHire},
			{EmployeeID: "E1", EventType: domain.EventEnrollment},
		},
		2026: {
			{EmployeeID: "E1", EventType: domain.EventTermination},
		},
	}
	summary := Summarize("S1", 2025, 2026, events, true, false)
	assert.Equal(t, 2, summary.EventCountsByYear[2025])
	assert.Equal(t, 1, summary.EventCountsByYear[2026])
	assert.Equal(t, int64(1), summary.EventCountsByType[string(domain.EventHire)])
	assert.True(t, summary.FallbackUsed)
	assert.False(t, summary.PerformanceTargetMet)
}

func TestWriteSummaryWritesFileUnderOutputPath(t *testing.T) {
	dir := t.TempDir()
	summary := Summarize("S1", 2025, 2025, map[int][]domain.Event{}, false, true)
	require.NoError(t, WriteSummary(dir, summary))
}
