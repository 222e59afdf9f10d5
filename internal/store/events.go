package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// InsertEvents appends a batch of events in one retried, serialized
// statement group. Events are immutable once written; there is no update
// path.
func (s *Store) InsertEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("store: marshal event payload for %s: %w", ev.EventID, err)
			}
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO events (
					event_id, scenario_id, plan_design_id, employee_id, event_type,
					effective_date, simulation_year, event_sequence, payload,
					event_probability, created_at, generation_method
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (event_id) DO NOTHING
			`,
				ev.EventID, ev.ScenarioID, ev.PlanDesignID, ev.EmployeeID, string(ev.EventType),
				ev.EffectiveDate, ev.SimulationYear, ev.EventSequence, payload,
				ev.EventProbability, ev.CreatedAt, string(ev.GenerationMethod),
			)
			if err != nil {
				return fmt.Errorf("store: insert event %s: %w", ev.EventID, err)
			}
		}
		return nil
	})
}

// EventsForYear returns every event for a year, ordered the way the
// validation engine expects: (employee_id, effective_date, event_sequence).
func (s *Store) EventsForYear(ctx context.Context, year int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, scenario_id, plan_design_id, employee_id, event_type,
		       effective_date, simulation_year, event_sequence, payload,
		       event_probability, created_at, generation_method
		FROM events
		WHERE simulation_year = $1
		ORDER BY employee_id, effective_date, event_sequence
	`, year)
	if err != nil {
		return nil, fmt.Errorf("store: events_for_year %d: %w", year, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var eventType, generationMethod string
		var payload []byte
		if err := rows.Scan(
			&ev.EventID, &ev.ScenarioID, &ev.PlanDesignID, &ev.EmployeeID, &eventType,
			&ev.EffectiveDate, &ev.SimulationYear, &ev.EventSequence, &payload,
			&ev.EventProbability, &ev.CreatedAt, &generationMethod,
		); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.EventType = domain.EventType(eventType)
		ev.GenerationMethod = domain.GenerationMethod(generationMethod)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("store: unmarshal event payload for %s: %w", ev.EventID, err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventCountsByType returns a histogram of event_type -> count for a year,
// feeding both validation.EventSpikeRule and Checkpoint.ValidationData.
func (s *Store) EventCountsByType(ctx context.Context, year int) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM events WHERE simulation_year = $1 GROUP BY event_type
	`, year)
	if err != nil {
		return nil, fmt.Errorf("store: event_counts_by_type %d: %w", year, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("store: scan event count: %w", err)
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}
