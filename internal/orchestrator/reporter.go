package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// writeArtifacts persists the §6 reporting surface: the run-level CSV
// summary, one JSON document per completed year, and the artifacts/runs/
// bundle (summary, errors, warnings, performance) consumed by operators
// investigating a specific run after the fact.
func (o *Orchestrator) writeArtifacts(summary domain.MultiYearSummary, runErr error, failedYear int) error {
	if o.reportsDir != "" {
		if err := o.writeMultiYearCSV(summary); err != nil {
			return fmt.Errorf("orchestrator: write multi-year csv: %w", err)
		}
		if err := o.writeYearJSON(summary); err != nil {
			return fmt.Errorf("orchestrator: write year json: %w", err)
		}
	}
	if o.artifactsDir != "" {
		if err := o.writeRunArtifacts(summary, runErr, failedYear); err != nil {
			return fmt.Errorf("orchestrator: write run artifacts: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) writeMultiYearCSV(summary domain.MultiYearSummary) error {
	if err := os.MkdirAll(o.reportsDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(o.reportsDir, fmt.Sprintf("multi_year_summary_%d_%d.csv", summary.StartYear, summary.EndYear))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"year", "ending_headcount", "hire_count", "termination_count", "net_growth_rate"}); err != nil {
		return err
	}
	for _, g := range summary.GrowthByYear {
		row := []string{
			strconv.Itoa(g.Year),
			strconv.Itoa(g.EndingHeadcount),
			strconv.Itoa(g.HireCount),
			strconv.Itoa(g.TerminationCount),
			strconv.FormatFloat(g.NetGrowthRate, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func (o *Orchestrator) writeYearJSON(summary domain.MultiYearSummary) error {
	for _, year := range summary.CompletedYears {
		doc := map[string]interface{}{
			"year":          year,
			"event_counts":  summary.EventCountsByYear[year],
			"participation": summary.ParticipationByYear[year],
		}
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(o.reportsDir, fmt.Sprintf("year_%d.json", year))
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) writeRunArtifacts(summary domain.MultiYearSummary, runErr error, failedYear int) error {
	dir := filepath.Join(o.artifactsDir, "runs", summary.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var errs []domain.RunIssue
	if runErr != nil {
		errs = append(errs, domain.RunIssue{
			Message: runErr.Error(),
			Context: map[string]interface{}{"year": failedYear},
		})
	}

	writers := map[string]interface{}{
		"summary.json":     summary,
		"errors.json":      errs,
		"warnings.json":    o.warnings,
		"performance.json": o.perfMon.History(),
	}
	for name, doc := range writers {
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// writeMemoryProfile persists a memory controller export under
// reports/memory/, named per §6's memory_profile_*.json convention.
func writeMemoryProfile(reportsDir, runID string, profile []byte) error {
	dir := filepath.Join(reportsDir, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("memory_profile_%s.json", runID))
	return os.WriteFile(path, profile, 0o644)
}
