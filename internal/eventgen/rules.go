package eventgen

import (
	"fmt"
	"time"

	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/rng"
)

// anniversary dates within a simulation year, per §4.10 step 3.
func hireDate(year int) time.Time        { return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC) }
func terminationDate(year int) time.Time { return time.Date(year, time.September, 15, 0, 0, 0, 0, time.UTC) }
func promotionDate(year int) time.Time   { return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC) }
func meritDate(year int) time.Time       { return time.Date(year, time.March, 15, 0, 0, 0, 0, time.UTC) }
func enrollmentDate(year int) time.Time  { return time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC) }

// drawn is a candidate event produced by a rule: whether it fires, its
// probability (the RNG draw that decided it, or 1.0 when unconditional),
// and the payload to attach.
type drawn struct {
	fires       bool
	probability float64
	payload     map[string]interface{}
}

// terminationRule: active & hired; rate = base × tenure/perf multipliers;
// fires when u < rate.
func terminationRule(seed int64, year int, emp EnrichedEmployee, params Parameters) drawn {
	if emp.EmploymentStatus != domain.StatusActive {
		return drawn{}
	}
	rate := params.Get(domain.EventTermination, "base_rate", emp.LevelID, params.TerminationBaseRate)
	if emp.TenureMonths < 12 {
		rate *= params.Get(domain.EventTermination, "tenure_multiplier", emp.LevelID, params.TerminationTenureMultiplier)
	} else if emp.PerformanceTier == PerformanceTierLow {
		rate *= params.Get(domain.EventTermination, "low_perf_multiplier", emp.LevelID, params.TerminationLowPerfMultiplier)
	}

	u := rng.Draw(seed, emp.EmployeeID, year, rng.StreamTermination, "")
	if u >= rate {
		return drawn{}
	}
	return drawn{
		fires:       true,
		probability: u,
		payload: map[string]interface{}{
			"reason":           "attrition",
			"level":            emp.LevelID,
			"tenure_months":    emp.TenureMonths,
			"performance_tier": emp.PerformanceTier,
		},
	}
}

// promotionRule: tenure >= 12mo, level < 5; flat base promotion rate.
func promotionRule(seed int64, year int, emp EnrichedEmployee, params Parameters) drawn {
	if emp.EmploymentStatus != domain.StatusActive || emp.TenureMonths < 12 || emp.LevelID >= 5 {
		return drawn{}
	}
	rate := params.Get(domain.EventPromotion, "base_rate", emp.LevelID, params.PromotionBaseRate)
	u := rng.Draw(seed, emp.EmployeeID, year, rng.StreamPromotion, "")
	if u >= rate {
		return drawn{}
	}
	raise := params.Get(domain.EventPromotion, "raise", emp.LevelID, params.PromotionRaise)
	newLevel := emp.LevelID + 1
	newSalary := emp.CurrentCompensation * (1 + raise)
	return drawn{
		fires:       true,
		probability: u,
		payload: map[string]interface{}{
			"old_level":  emp.LevelID,
			"new_level":  newLevel,
			"old_salary": emp.CurrentCompensation,
			"new_salary": newSalary,
		},
	}
}

// meritRule: employed; merit_base rate, salary bump when it fires.
func meritRule(seed int64, year int, emp EnrichedEmployee, params Parameters) drawn {
	if emp.EmploymentStatus != domain.StatusActive {
		return drawn{}
	}
	rate := params.Get(domain.EventMerit, "base_rate", emp.LevelID, params.MeritBaseRate)
	u := rng.Draw(seed, emp.EmployeeID, year, rng.StreamMerit, "")
	if u >= rate {
		return drawn{}
	}
	increase := params.Get(domain.EventMerit, "increase", emp.LevelID, params.MeritIncrease)
	newSalary := emp.CurrentCompensation * (1 + increase)
	return drawn{
		fires:       true,
		probability: u,
		payload: map[string]interface{}{
			"old_salary": emp.CurrentCompensation,
			"new_salary": newSalary,
		},
	}
}

// enrollmentRule: employed, not already enrolled; flat enrollment_rate.
func enrollmentRule(seed int64, year int, emp EnrichedEmployee, params Parameters, planDesignID string) drawn {
	if emp.EmploymentStatus != domain.StatusActive || emp.IsEnrolled {
		return drawn{}
	}
	rate := params.Get(domain.EventEnrollment, "rate", emp.LevelID, params.EnrollmentRate)
	u := rng.Draw(seed, emp.EmployeeID, year, rng.StreamEnrollment, "")
	if u >= rate {
		return drawn{}
	}
	return drawn{
		fires:       true,
		probability: u,
		payload: map[string]interface{}{
			"plan_design_id":    planDesignID,
			"initial_deferral":  0.03,
			"eligibility_state": "eligible",
		},
	}
}

// hirePayload builds the always-fires hire event payload for one synthetic
// new hire. level and startingSalary are chosen deterministically
// from the hire's position in the cohort so two runs over the same
// workforce-needs target produce identical hires.
func hirePayload(index int) (level int, startingSalary float64) {
	level = 1 + index%3 // new hires enter at levels 1-3
	base := 55_000.0
	startingSalary = base + float64(level-1)*12_000
	return level, startingSalary
}

func hireEmployeeID(scenarioID string, year, index int) string {
	return fmt.Sprintf("NH_%s_%d_%04d", scenarioID, year, index)
}
