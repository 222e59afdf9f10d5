package eventgen

import "github.com/planwise-labs/navigator-core/internal/domain"

// EnrichedEmployee is the baseline workforce row after the §4.10 step-1
// enrichment: tenure broken into years/months, a compensation-bucket
// level, a deterministic performance tier, and enrollment state.
type EnrichedEmployee struct {
	domain.Employee
	TenureYears     int
	TenureMonths    int
	LevelID         int
	PerformanceTier string
	IsEnrolled      bool
}

const (
	PerformanceTierLow     = "low"
	PerformanceTierAverage = "average"
	PerformanceTierHigh    = "high"
)

// Enrich derives the four computed fields from a raw Employee row.
func Enrich(emp domain.Employee) EnrichedEmployee {
	return EnrichedEmployee{
		Employee:        emp,
		TenureYears:     emp.Tenure,
		TenureMonths:    emp.Tenure * 12,
		LevelID:         levelFromCompensation(emp.CurrentCompensation),
		PerformanceTier: performanceTier(emp.EmployeeID),
		IsEnrolled:      emp.EnrollmentStatus == "enrolled",
	}
}

// EnrichAll enriches a whole baseline roster.
func EnrichAll(employees []domain.Employee) []EnrichedEmployee {
	out := make([]EnrichedEmployee, len(employees))
	for i, e := range employees {
		out[i] = Enrich(e)
	}
	return out
}

// levelFromCompensation buckets current compensation into one of five
// levels, matching the level range promotion eligibility checks against
// (`level < 5`).
func levelFromCompensation(comp float64) int {
	switch {
	case comp < 60_000:
		return 1
	case comp < 90_000:
		return 2
	case comp < 130_000:
		return 3
	case comp < 180_000:
		return 4
	default:
		return 5
	}
}

// performanceTier is deterministic from the employee id's last character,
// per §4.10 step 1: no RNG draw, no external data, the same id always
// lands in the same tier.
func performanceTier(employeeID string) string {
	if employeeID == "" {
		return PerformanceTierAverage
	}
	last := employeeID[len(employeeID)-1]
	switch {
	case last >= '0' && last <= '3':
		return PerformanceTierLow
	case last >= '4' && last <= '7':
		return PerformanceTierAverage
	default:
		return PerformanceTierHigh
	}
}
