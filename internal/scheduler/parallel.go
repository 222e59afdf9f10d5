package scheduler

// ParallelSafetyPolicy decides whether models within a stage may run
// concurrently, per §4.9's three conditions: the backing store must
// support multiple writers, the stage must not be sequencing-sensitive,
// and a safety validator must certify the model subset with a score above
// the threshold.
type ParallelSafetyPolicy struct {
	// SingleWriterStore is true for backing stores (e.g. a single
	// embedded database file) that cannot support concurrent writers.
	SingleWriterStore bool
	// SequencingSensitive names stages whose models must run in strict
	// order regardless of store capability (EVENT_GENERATION always is,
	// since models share RNG stream state).
	SequencingSensitive map[string]bool
	// MinSafetyScore is the threshold a parallel-safety validator's score
	// must exceed; §4.9 fixes this at 80.
	MinSafetyScore int
}

// DefaultParallelSafetyPolicy matches §4.9's defaults: EVENT_GENERATION
// and STATE_ACCUMULATION are sequencing-sensitive, the threshold is 80.
func DefaultParallelSafetyPolicy() ParallelSafetyPolicy {
	return ParallelSafetyPolicy{
		SequencingSensitive: map[string]bool{
			"EVENT_GENERATION":   true,
			"STATE_ACCUMULATION": true,
		},
		MinSafetyScore: 80,
	}
}

// IsParallelSafe reports whether models in stage, certified at score by a
// safety validator, may run concurrently.
func (p ParallelSafetyPolicy) IsParallelSafe(stage string, score int) bool {
	if p.SingleWriterStore {
		return false
	}
	if p.SequencingSensitive[stage] {
		return false
	}
	threshold := p.MinSafetyScore
	if threshold == 0 {
		threshold = 80
	}
	return score > threshold
}
