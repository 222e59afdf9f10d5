package eventgen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// GenerationSummary is the `generation_summary.json` artifact §4.10 step 4
// writes alongside year-partitioned vector output.
type GenerationSummary struct {
	ScenarioID           string           `json:"scenario_id"`
	StartYear            int              `json:"start_year"`
	EndYear              int              `json:"end_year"`
	EventCountsByYear    map[int]int      `json:"event_counts_by_year"`
	EventCountsByType    map[string]int64 `json:"event_counts_by_type"`
	FallbackUsed         bool             `json:"fallback_used"`
	PerformanceTargetMet bool             `json:"performance_target_met"`
}

// Summarize builds a GenerationSummary from a year→events map, as
// returned by VectorEngine.GenerateRange.
func Summarize(scenarioID string, startYear, endYear int, eventsByYear map[int][]domain.Event, fallbackUsed, performanceTargetMet bool) GenerationSummary {
	byYear := make(map[int]int, len(eventsByYear))
	byType := make(map[string]int64)
	for year, events := range eventsByYear {
		byYear[year] = len(events)
		for _, e := range events {
			byType[string(e.EventType)]++
		}
	}
	return GenerationSummary{
		ScenarioID:           scenarioID,
		StartYear:            startYear,
		EndYear:              endYear,
		EventCountsByYear:    byYear,
		EventCountsByType:    byType,
		FallbackUsed:         fallbackUsed,
		PerformanceTargetMet: performanceTargetMet,
	}
}

// WriteSummary writes generation_summary.json under outputPath.
func WriteSummary(outputPath string, summary GenerationSummary) error {
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return fmt.Errorf("eventgen: create output path: %w", err)
	}
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("eventgen: marshal generation summary: %w", err)
	}
	return os.WriteFile(filepath.Join(outputPath, "generation_summary.json"), raw, 0o644)
}
