package eventgen

import (
	"context"
	"fmt"

	"github.com/planwise-labs/navigator-core/infrastructure/fallback"
	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/runner"
)

// Mode is the tagged variant of §9's "dynamic dispatch → variants" note:
// event generation is either Sql(shards) or Vector(settings), and the
// orchestrator never branches on mode itself — it calls Dispatcher.Dispatch.
type Mode string

const (
	ModeSQL    Mode = "sql"
	ModeVector Mode = "vector"
)

// DispatchResult reports which mode actually ran (vector dispatch may
// have fallen back to SQL) and the events produced, if any.
type DispatchResult struct {
	Mode         Mode
	FallbackUsed bool
	Events       []domain.Event
}

// Dispatcher implements §4.10's hybrid dispatcher: a single entry point
// that reads the configured mode and, in vector mode, retries in SQL mode
// on failure when fallback_on_error is set.
type Dispatcher struct {
	mode            Mode
	fallbackOnError bool
	vector          *VectorEngine
	sql             *SQLGenerator
	handler         *fallback.Handler
}

func NewDispatcher(mode Mode, fallbackOnError bool, vector *VectorEngine, sql *SQLGenerator) *Dispatcher {
	return &Dispatcher{
		mode:            mode,
		fallbackOnError: fallbackOnError,
		vector:          vector,
		sql:             sql,
		handler:         fallback.NewHandler(fallback.DefaultConfig()),
	}
}

// Dispatch runs one year's event generation under the configured mode.
func (d *Dispatcher) Dispatch(ctx context.Context, year int, roster *[]EnrichedEmployee, vectorCfg VectorConfig, sqlVars runner.Variables, eventShards int, fullRefresh bool) (DispatchResult, error) {
	if d.mode == ModeSQL {
		if err := d.sql.Run(ctx, year, sqlVars, eventShards, fullRefresh); err != nil {
			return DispatchResult{Mode: ModeSQL}, fmt.Errorf("eventgen: sql mode year %d: %w", year, err)
		}
		return DispatchResult{Mode: ModeSQL}, nil
	}

	primary := func(ctx context.Context) (interface{}, error) {
		return d.vector.GenerateYear(ctx, year, roster, vectorCfg)
	}

	var fallbacks []fallback.Func
	if d.fallbackOnError {
		fallbacks = append(fallbacks, func(ctx context.Context) (interface{}, error) {
			err := d.sql.Run(ctx, year, sqlVars, eventShards, fullRefresh)
			return []domain.Event(nil), err
		})
	}

	result := d.handler.Execute(ctx, primary, fallbacks...)
	if result.Err != nil {
		return DispatchResult{}, fmt.Errorf("eventgen: vector mode year %d: %w", year, result.Err)
	}
	if result.Source == "fallback" {
		return DispatchResult{Mode: ModeSQL, FallbackUsed: true}, nil
	}

	events, _ := result.Value.([]domain.Event)
	return DispatchResult{Mode: ModeVector, Events: events}, nil
}
