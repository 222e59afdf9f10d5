// Package validation runs rule objects over a completed year's data and
// aggregates their findings into the run summary, per §4.6.
package validation

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// Severity is the outcome severity a rule reports.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Finding is one rule's verdict.
type Finding struct {
	Rule     string
	Passed   bool
	Severity Severity
	Message  string
	Details  map[string]interface{}
}

// Snapshot bundles the post-year data a rule needs. Rules only read the
// slices they care about; callers populate whichever are relevant.
type Snapshot struct {
	Year              int
	PriorYearRowCount  map[string]int64
	CurrentRowCount    map[string]int64
	HireCount          int64
	TerminationCount   int64
	Events             []domain.Event
	Snapshots          []domain.WorkforceSnapshot
	PriorCompensation  map[string]float64 // employee_id -> prior year compensation
	PromotedEmployees  map[string]bool    // employee_id -> promoted this year
}

// Rule is one validation check over a Snapshot.
type Rule interface {
	Name() string
	Check(ctx context.Context, snap Snapshot) Finding
}

// Engine runs a fixed set of rules and aggregates their findings.
type Engine struct {
	rules               []Rule
	failOnValidationError bool
}

// New builds an Engine with the four standard rules plus the two
// supplemented rules (SPEC_FULL C.4), in registration order.
func New(failOnValidationError bool) *Engine {
	return &Engine{
		rules: []Rule{
			RowCountDriftRule{},
			HireTerminationRatioRule{},
			EventSequenceRule{},
			EventSpikeRule{},
			CompensationBoundsRule{},
			OrphanedEventRule{},
		},
		failOnValidationError: failOnValidationError,
	}
}

// Register appends an additional rule, for callers that want to extend the
// standard set.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Run executes every registered rule and returns all findings plus an
// aggregate error. The error is non-nil only when failOnValidationError is
// set and at least one finding is error/critical severity; it is a
// *multierror.Error so callers can inspect each abort-worthy finding
// individually rather than just a single combined message.
func (e *Engine) Run(ctx context.Context, snap Snapshot) ([]Finding, error) {
	findings := make([]Finding, 0, len(e.rules))
	var aborting *multierror.Error

	for _, rule := range e.rules {
		f := rule.Check(ctx, snap)
		findings = append(findings, f)
		if e.failOnValidationError && !f.Passed && (f.Severity == SeverityError || f.Severity == SeverityCritical) {
			aborting = multierror.Append(aborting, &RuleError{Finding: f})
		}
	}

	return findings, aborting.ErrorOrNil()
}

// RuleError wraps a failing Finding as an error.
type RuleError struct {
	Finding Finding
}

func (e *RuleError) Error() string {
	return string(e.Finding.Severity) + ": " + e.Finding.Rule + ": " + e.Finding.Message
}
