package eventgen

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/planwise-labs/navigator-core/infrastructure/fallback"
	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/store"
)

// BaselineLoader loads the prior year-end workforce that vector-mode
// generation starts from, per §4.10 step 1's three-tier fallback: a
// columnar export file, then the analytical store, then a plain CSV.
// infrastructure/fallback.Handler drives the retry/fallback sequencing so
// this mirrors Dispatcher's vector→SQL fallback rather than hand-rolling a
// second retry loop.
type BaselineLoader struct {
	columnarPath string
	csvPath      string
	analytical   *store.Store
	handler      *fallback.Handler
}

func NewBaselineLoader(columnarPath, csvPath string, analytical *store.Store) *BaselineLoader {
	return &BaselineLoader{
		columnarPath: columnarPath,
		csvPath:      csvPath,
		analytical:   analytical,
		handler:      fallback.NewHandler(fallback.DefaultConfig()),
	}
}

// Load returns the baseline workforce for the given simulation year, trying
// the columnar file first, then the analytical store's snapshot table, then
// the CSV file.
func (l *BaselineLoader) Load(ctx context.Context, year int) ([]domain.Employee, error) {
	primary := func(ctx context.Context) (interface{}, error) {
		return l.loadColumnar(year)
	}
	var fallbacks []fallback.Func
	if l.analytical != nil {
		fallbacks = append(fallbacks, func(ctx context.Context) (interface{}, error) {
			return l.loadFromStore(ctx, year)
		})
	}
	if l.csvPath != "" {
		fallbacks = append(fallbacks, func(ctx context.Context) (interface{}, error) {
			return l.loadCSV(year)
		})
	}

	result := l.handler.Execute(ctx, primary, fallbacks...)
	if result.Err != nil {
		return nil, fmt.Errorf("eventgen: load baseline workforce for year %d: %w", year, result.Err)
	}
	employees, _ := result.Value.([]domain.Employee)
	return employees, nil
}

// loadColumnar reads a newline-delimited-JSON export (one row object per
// line) via gjson, the same columnar-ish record parser the transformation
// runner uses for invocation output.
func (l *BaselineLoader) loadColumnar(year int) ([]domain.Employee, error) {
	raw, err := os.ReadFile(l.columnarPath)
	if err != nil {
		return nil, fmt.Errorf("eventgen: read columnar baseline %s: %w", l.columnarPath, err)
	}

	var employees []domain.Employee
	gjson.ForEachLine(string(raw), func(row gjson.Result) bool {
		employees = append(employees, domain.Employee{
			EmployeeID:          row.Get("employee_id").String(),
			SimulationYear:      year,
			CurrentCompensation: row.Get("current_compensation").Float(),
			Level:               int(row.Get("level").Int()),
			Tenure:              int(row.Get("tenure_years").Int()),
			EmploymentStatus:    domain.EmploymentStatus(row.Get("employment_status").String()),
			EnrollmentStatus:    row.Get("enrollment_status").String(),
		})
		return true
	})
	if len(employees) == 0 {
		return nil, fmt.Errorf("eventgen: columnar baseline %s is empty or unreadable", l.columnarPath)
	}
	return employees, nil
}

// loadFromStore reads the prior year-end workforce snapshot from the
// analytical store, the "embedded DB" tier of the fallback chain.
func (l *BaselineLoader) loadFromStore(ctx context.Context, year int) ([]domain.Employee, error) {
	rows, err := l.analytical.DB().QueryContext(ctx,
		`SELECT employee_id, current_compensation, level, tenure_years, employment_status, enrollment_status
		 FROM fct_workforce_snapshot WHERE simulation_year = $1`, year-1)
	if err != nil {
		return nil, fmt.Errorf("eventgen: query prior-year snapshot: %w", err)
	}
	defer rows.Close()

	var employees []domain.Employee
	for rows.Next() {
		var e domain.Employee
		var status, enrollment string
		if err := rows.Scan(&e.EmployeeID, &e.CurrentCompensation, &e.Level, &e.Tenure, &status, &enrollment); err != nil {
			return nil, fmt.Errorf("eventgen: scan prior-year snapshot row: %w", err)
		}
		e.SimulationYear = year
		e.EmploymentStatus = domain.EmploymentStatus(status)
		e.EnrollmentStatus = enrollment
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventgen: iterate prior-year snapshot: %w", err)
	}
	if len(employees) == 0 {
		return nil, fmt.Errorf("eventgen: no prior-year snapshot rows for year %d", year-1)
	}
	return employees, nil
}

// loadCSV is the last-resort tier: a plain CSV export with a header row
// matching the columnar field names. encoding/csv is stdlib; no third-party
// CSV library appears anywhere in the example corpus, so this tier is
// justified as a stdlib exception in the design ledger.
func (l *BaselineLoader) loadCSV(year int) ([]domain.Employee, error) {
	f, err := os.Open(l.csvPath)
	if err != nil {
		return nil, fmt.Errorf("eventgen: open csv baseline %s: %w", l.csvPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("eventgen: read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var employees []domain.Employee
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("eventgen: read csv row: %w", err)
		}
		comp, _ := strconv.ParseFloat(record[col["current_compensation"]], 64)
		level, _ := strconv.Atoi(record[col["level"]])
		tenure, _ := strconv.Atoi(record[col["tenure_years"]])
		employees = append(employees, domain.Employee{
			EmployeeID:          record[col["employee_id"]],
			SimulationYear:      year,
			CurrentCompensation: comp,
			Level:               level,
			Tenure:              tenure,
			EmploymentStatus:    domain.EmploymentStatus(record[col["employment_status"]]),
			EnrollmentStatus:    record[col["enrollment_status"]],
		})
	}
	if len(employees) == 0 {
		return nil, fmt.Errorf("eventgen: csv baseline %s has no data rows", l.csvPath)
	}
	return employees, nil
}
