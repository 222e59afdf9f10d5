package eventgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/planwise-labs/navigator-core/internal/domain"
	"github.com/planwise-labs/navigator-core/internal/runner"
)

// ModelRunner is the narrow slice of *runner.Runner the SQL generator
// needs.
type ModelRunner interface {
	Invoke(ctx context.Context, selector string, vars runner.Variables, fullRefresh bool) (runner.Result, error)
}

// SQLGenerator runs EVENT_GENERATION through the transformation runner,
// per §4.10's "SQL mode": single invocation of the whole tag, or sharded
// with a union-writer pass afterward.
type SQLGenerator struct {
	runner         ModelRunner
	excludedModels []string
}

// NewSQLGenerator builds a generator whose single-shard invocation
// excludes excludedModels — the models owned by stages after
// EVENT_GENERATION (scheduler.ModelsOwnedAfter), so it never builds
// STATE_ACCUMULATION-dependent models early (Open Question decision (a)).
func NewSQLGenerator(r ModelRunner, excludedModels []string) *SQLGenerator {
	return &SQLGenerator{runner: r, excludedModels: excludedModels}
}

// Run executes EVENT_GENERATION for one year. With eventShards > 1, each
// shard runs independently via a named selector carrying {shard_id,
// total_shards}, followed by a union-writer invocation that materializes
// the combined fact table. With eventShards <= 1, the whole tag runs in
// one invocation, excluding downstream models.
func (g *SQLGenerator) Run(ctx context.Context, year int, vars runner.Variables, eventShards int, fullRefresh bool) error {
	if eventShards > 1 {
		return g.runSharded(ctx, year, vars, eventShards, fullRefresh)
	}
	return g.runSingleShard(ctx, vars, fullRefresh)
}

func (g *SQLGenerator) runSharded(ctx context.Context, year int, vars runner.Variables, shards int, fullRefresh bool) error {
	for shard := 0; shard < shards; shard++ {
		shardVars := vars
		shardVars.ShardID = shard
		shardVars.TotalShards = shards
		selector := runner.ShardedSelector("events", year, shard)
		if _, err := g.runner.Invoke(ctx, selector, shardVars, fullRefresh); err != nil {
			return fmt.Errorf("eventgen: shard %d/%d: %w", shard, shards, err)
		}
	}
	if _, err := g.runner.Invoke(ctx, "events_union_writer", vars, fullRefresh); err != nil {
		return fmt.Errorf("eventgen: union-writer: %w", err)
	}
	return nil
}

func (g *SQLGenerator) runSingleShard(ctx context.Context, vars runner.Variables, fullRefresh bool) error {
	extra := map[string]string{}
	for k, v := range vars.Extra {
		extra[k] = v
	}
	if len(g.excludedModels) > 0 {
		extra["exclude"] = strings.Join(g.excludedModels, " ")
	}
	vars.Extra = extra

	if _, err := g.runner.Invoke(ctx, runner.TagSelector(domain.StageEventGeneration), vars, fullRefresh); err != nil {
		return fmt.Errorf("eventgen: single-shard tag run: %w", err)
	}
	return nil
}
