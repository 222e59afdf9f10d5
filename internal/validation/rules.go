package validation

import (
	"context"
	"fmt"
	"math"
)

// RowCountDriftRule flags a year whose row count for any table has shifted
// more than the allowed relative drift from the prior year.
type RowCountDriftRule struct {
	MaxRelativeDrift float64 // defaults to 0.5 (50%) when zero
}

func (r RowCountDriftRule) Name() string { return "RowCountDriftRule" }

func (r RowCountDriftRule) Check(ctx context.Context, snap Snapshot) Finding {
	maxDrift := r.MaxRelativeDrift
	if maxDrift <= 0 {
		maxDrift = 0.5
	}
	for table, prior := range snap.PriorYearRowCount {
		if prior == 0 {
			continue
		}
		current, ok := snap.CurrentRowCount[table]
		if !ok {
			continue
		}
		drift := math.Abs(float64(current-prior)) / float64(prior)
		if drift > maxDrift {
			return Finding{
				Rule:     r.Name(),
				Passed:   false,
				Severity: SeverityError,
				Message:  fmt.Sprintf("table %s row count drifted %.1f%% year over year (prior=%d current=%d)", table, drift*100, prior, current),
				Details:  map[string]interface{}{"table": table, "prior": prior, "current": current, "drift": drift},
			}
		}
	}
	return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "row counts within expected drift"}
}

// HireTerminationRatioRule flags a year whose hire:termination ratio falls
// outside a plausible bound — either runaway growth or a collapse.
type HireTerminationRatioRule struct {
	MinRatio float64 // defaults to 0.2
	MaxRatio float64 // defaults to 5.0
}

func (r HireTerminationRatioRule) Name() string { return "HireTerminationRatioRule" }

func (r HireTerminationRatioRule) Check(ctx context.Context, snap Snapshot) Finding {
	minRatio, maxRatio := r.MinRatio, r.MaxRatio
	if minRatio <= 0 {
		minRatio = 0.2
	}
	if maxRatio <= 0 {
		maxRatio = 5.0
	}
	if snap.TerminationCount == 0 {
		if snap.HireCount > 0 {
			return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "no terminations this year"}
		}
		return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "no hires or terminations this year"}
	}
	ratio := float64(snap.HireCount) / float64(snap.TerminationCount)
	if ratio < minRatio || ratio > maxRatio {
		return Finding{
			Rule:     r.Name(),
			Passed:   false,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("hire:termination ratio %.2f outside [%.2f, %.2f] (hires=%d terminations=%d)", ratio, minRatio, maxRatio, snap.HireCount, snap.TerminationCount),
			Details:  map[string]interface{}{"ratio": ratio, "hires": snap.HireCount, "terminations": snap.TerminationCount},
		}
	}
	return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "hire:termination ratio within bounds"}
}

// EventSequenceRule verifies every employee's events are strictly
// monotonic in (effective_date, event_sequence).
type EventSequenceRule struct{}

func (r EventSequenceRule) Name() string { return "EventSequenceRule" }

func (r EventSequenceRule) Check(ctx context.Context, snap Snapshot) Finding {
	type key struct {
		date     int64
		sequence int
	}
	last := make(map[string]key)
	for _, ev := range snap.Events {
		cur := key{date: ev.EffectiveDate.Unix(), sequence: ev.EventSequence}
		prev, seen := last[ev.EmployeeID]
		if seen {
			if cur.date < prev.date || (cur.date == prev.date && cur.sequence <= prev.sequence) {
				return Finding{
					Rule:     r.Name(),
					Passed:   false,
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("employee %s has non-monotonic events", ev.EmployeeID),
					Details:  map[string]interface{}{"employee_id": ev.EmployeeID, "event_id": ev.EventID},
				}
			}
		}
		last[ev.EmployeeID] = cur
	}
	return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "all event sequences monotonic"}
}

// EventSpikeRule flags an event type whose count this year is far outside
// its usual share of the year's total events.
type EventSpikeRule struct {
	MaxShare float64 // defaults to 0.6 (60% of all events from one type is suspicious)
}

func (r EventSpikeRule) Name() string { return "EventSpikeRule" }

func (r EventSpikeRule) Check(ctx context.Context, snap Snapshot) Finding {
	maxShare := r.MaxShare
	if maxShare <= 0 {
		maxShare = 0.6
	}
	if len(snap.Events) == 0 {
		return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "no events to evaluate"}
	}
	counts := make(map[string]int)
	for _, ev := range snap.Events {
		counts[string(ev.EventType)]++
	}
	total := len(snap.Events)
	for eventType, count := range counts {
		share := float64(count) / float64(total)
		if share > maxShare {
			return Finding{
				Rule:     r.Name(),
				Passed:   false,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("event type %s is %.1f%% of all events this year", eventType, share*100),
				Details:  map[string]interface{}{"event_type": eventType, "share": share, "count": count, "total": total},
			}
		}
	}
	return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "no event-type spike detected"}
}

// CompensationBoundsRule flags a year-over-year compensation change
// outside [-5%, +20%] for an employee not promoted this year
// (SPEC_FULL C.4).
type CompensationBoundsRule struct {
	MinChange float64 // defaults to -0.05
	MaxChange float64 // defaults to 0.20
}

func (r CompensationBoundsRule) Name() string { return "CompensationBoundsRule" }

func (r CompensationBoundsRule) Check(ctx context.Context, snap Snapshot) Finding {
	minChange, maxChange := r.MinChange, r.MaxChange
	if minChange == 0 {
		minChange = -0.05
	}
	if maxChange == 0 {
		maxChange = 0.20
	}
	for _, s := range snap.Snapshots {
		prior, ok := snap.PriorCompensation[s.EmployeeID]
		if !ok || prior == 0 {
			continue
		}
		if snap.PromotedEmployees[s.EmployeeID] {
			continue
		}
		change := (s.CurrentCompensation - prior) / prior
		if change < minChange || change > maxChange {
			return Finding{
				Rule:     r.Name(),
				Passed:   false,
				Severity: SeverityError,
				Message:  fmt.Sprintf("employee %s compensation changed %.1f%% without a promotion", s.EmployeeID, change*100),
				Details:  map[string]interface{}{"employee_id": s.EmployeeID, "change": change},
			}
		}
	}
	return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "compensation changes within bounds"}
}

// OrphanedEventRule flags a termination event with no prior hire on record
// for that employee (SPEC_FULL C.4).
type OrphanedEventRule struct{}

func (r OrphanedEventRule) Name() string { return "OrphanedEventRule" }

func (r OrphanedEventRule) Check(ctx context.Context, snap Snapshot) Finding {
	hired := make(map[string]bool, len(snap.PriorCompensation))
	for employeeID := range snap.PriorCompensation {
		hired[employeeID] = true // carried an active record into this year, so was hired before it
	}
	for _, ev := range snap.Events {
		if string(ev.EventType) == "hire" {
			hired[ev.EmployeeID] = true
		}
	}
	for _, ev := range snap.Events {
		if string(ev.EventType) == "termination" && !hired[ev.EmployeeID] {
			return Finding{
				Rule:     r.Name(),
				Passed:   false,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("employee %s terminated with no hire event on record", ev.EmployeeID),
				Details:  map[string]interface{}{"employee_id": ev.EmployeeID, "event_id": ev.EventID},
			}
		}
	}
	return Finding{Rule: r.Name(), Passed: true, Severity: SeverityInfo, Message: "no orphaned termination events"}
}
