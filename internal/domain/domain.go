// Package domain holds the navigator orchestrator's core entities: the
// employee/event/snapshot rows the analytical store persists, the
// monotonic registries folded across years, and the checkpoint/run-summary
// artifacts the orchestrator produces.
package domain

import "time"

// EventType enumerates the immutable event kinds the event-generation
// engine produces.
type EventType string

const (
	EventHire               EventType = "hire"
	EventTermination        EventType = "termination"
	EventPromotion          EventType = "promotion"
	EventMerit              EventType = "merit"
	EventEnrollment         EventType = "enrollment"
	EventEnrollmentChange   EventType = "enrollment_change"
	EventDeferralEscalation EventType = "deferral_escalation"
	EventContribution       EventType = "contribution"
	EventEmployerMatch      EventType = "employer_match"
)

// GenerationMethod records which event-generation mode produced an event.
type GenerationMethod string

const (
	GeneratedBySQL    GenerationMethod = "sql"
	GeneratedByVector GenerationMethod = "vector"
)

// EmploymentStatus is an employee's or snapshot's employment state.
type EmploymentStatus string

const (
	StatusActive     EmploymentStatus = "active"
	StatusTerminated EmploymentStatus = "terminated"
)

// Employee is the mutable, per-year working record for one person.
// Identified by a stable employee_id; attributes evolve year over year.
type Employee struct {
	EmployeeID          string
	SimulationYear      int
	CurrentCompensation float64
	Level               int
	Tenure              int
	EmploymentStatus    EmploymentStatus
	EnrollmentStatus    string
	DeferralRate        float64
}

// Event is an immutable workforce event record.
type Event struct {
	EventID           string
	ScenarioID        string
	PlanDesignID      string
	EmployeeID        string
	EventType         EventType
	EffectiveDate     time.Time
	SimulationYear    int
	EventSequence     int
	Payload           map[string]interface{}
	EventProbability  float64
	CreatedAt         time.Time
	GenerationMethod  GenerationMethod
}

// WorkforceSnapshot is the per-year materialization of an employee's state.
type WorkforceSnapshot struct {
	EmployeeID                      string
	SimulationYear                  int
	CurrentCompensation             float64
	ProratedAnnualCompensation      float64
	FullYearEquivalentCompensation  float64
	EmploymentStatus                EmploymentStatus
	Level                           int
	Age                             int
	Tenure                          int
}

// Validate enforces the snapshot invariants of §3: prorated compensation
// never exceeds the full-year-equivalent figure, and employment status is
// one of the two known values.
func (s WorkforceSnapshot) Validate() error {
	if s.ProratedAnnualCompensation > s.FullYearEquivalentCompensation {
		return &SnapshotInvariantError{
			EmployeeID: s.EmployeeID,
			Year:       s.SimulationYear,
			Reason:     "prorated_annual_compensation exceeds full_year_equivalent_compensation",
		}
	}
	if s.EmploymentStatus != StatusActive && s.EmploymentStatus != StatusTerminated {
		return &SnapshotInvariantError{
			EmployeeID: s.EmployeeID,
			Year:       s.SimulationYear,
			Reason:     "employment_status must be active or terminated",
		}
	}
	return nil
}

// SnapshotInvariantError reports a WorkforceSnapshot invariant violation.
type SnapshotInvariantError struct {
	EmployeeID string
	Year       int
	Reason     string
}

func (e *SnapshotInvariantError) Error() string {
	return "workforce snapshot invariant violated for " + e.EmployeeID + ": " + e.Reason
}

// EnrollmentRegistryEntry is the monotonic per-employee enrollment fold.
type EnrollmentRegistryEntry struct {
	EmployeeID           string
	FirstEnrollmentDate  *time.Time
	EverOptedOut         bool
	CurrentDeferralRate  float64
	UpdatedThroughYear   int
}

// DeferralEscalationRegistryEntry is the monotonic per-employee deferral
// escalation fold.
type DeferralEscalationRegistryEntry struct {
	EmployeeID           string
	EscalationCount      int
	CurrentDeferralRate  float64
	LastEscalationYear   *int
	UpdatedThroughYear   int
}

// ContributionRegistryEntry is the monotonic per-employee contribution fold
// (SPEC_FULL C.3 — supplemented beyond the two registries named in the
// distilled spec).
type ContributionRegistryEntry struct {
	EmployeeID                   string
	TotalEmployeeContributions  float64
	TotalEmployerContributions  float64
	UpdatedThroughYear           int
}

// Stage names a fixed position in the per-year topological order.
type Stage string

const (
	StageInitialization    Stage = "INITIALIZATION"
	StageFoundation        Stage = "FOUNDATION"
	StageEventGeneration   Stage = "EVENT_GENERATION"
	StageStateAccumulation Stage = "STATE_ACCUMULATION"
	StageValidation        Stage = "VALIDATION"
	StageReporting         Stage = "REPORTING"
	StageCleanup           Stage = "CLEANUP"
)

// Stages is the fixed topological order every year's pipeline follows.
var Stages = []Stage{
	StageInitialization,
	StageFoundation,
	StageEventGeneration,
	StageStateAccumulation,
	StageValidation,
	StageReporting,
	StageCleanup,
}

// StageCheckpoint is the lightweight, in-memory/JSON-sidecar record of the
// last stage a year reached.
type StageCheckpoint struct {
	Year      int
	Stage     Stage
	Timestamp time.Time
	StateHash string
}

// DatabaseState is the "database_state" portion of a Checkpoint: per-table
// row counts and simple data-quality probes.
type DatabaseState struct {
	TableCounts        map[string]int64
	DataQualityMetrics map[string]float64
}

// ValidationData is the "validation_data" portion of a Checkpoint: event-type
// histograms and aggregate sums used to detect drift between years.
type ValidationData struct {
	EventDistribution   map[string]int64
	TotalCompensation   float64
	TotalContributions  float64
}

// Checkpoint is the durable record of a completed year.
type Checkpoint struct {
	Year           int
	RunID          string
	ConfigHash     string
	IntegrityHash  string
	DatabaseState  DatabaseState
	ValidationData ValidationData
	Timestamp      time.Time
}

// RunStatus is the terminal state of a run, reported in RunSummary.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunIssue is a single error or warning recorded against a run, with enough
// context to act on it without re-reading logs.
type RunIssue struct {
	Message   string
	Timestamp time.Time
	Context   map[string]interface{}
}

// RunSummary is the end-of-run artifact: status, errors/warnings, metrics,
// and environment/configuration context.
type RunSummary struct {
	RunID         string
	StartTime     time.Time
	EndTime       time.Time
	Status        RunStatus
	Configuration map[string]interface{}
	Environment   string
	Errors        []RunIssue
	Warnings      []RunIssue
	Metrics       map[string]float64
	BackupPath    string
}

// YearGrowth is one year's workforce growth relative to the prior year, a
// row of MultiYearSummary's growth analysis (spec §4.11 step 8).
type YearGrowth struct {
	Year              int
	StartingHeadcount int
	EndingHeadcount   int
	NetGrowthRate     float64
	HireCount         int
	TerminationCount  int
}

// ThreadingMetadata records how a run's model invocations were scheduled,
// surfaced in MultiYearSummary so operators can see whether parallelization
// was in effect, with how many workers, and under which resource mode.
type ThreadingMetadata struct {
	ParallelizationEnabled bool
	MaxWorkers             int
	ResourceManagementMode string
}

// MultiYearSummary is the artifact Orchestrator.Execute returns: the
// completed years, growth/event/participation trends across them, and the
// threading configuration the run used (spec §4.11 step 8).
type MultiYearSummary struct {
	RunID               string
	StartYear           int
	EndYear             int
	CompletedYears      []int
	GrowthByYear         []YearGrowth
	EventCountsByYear    map[int]map[EventType]int64
	ParticipationByYear  map[int]float64
	Threading            ThreadingMetadata
	Status               RunStatus
	StartTime            time.Time
	EndTime              time.Time
}
