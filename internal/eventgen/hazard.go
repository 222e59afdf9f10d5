package eventgen

import (
	"context"
	"fmt"
	"time"

	"github.com/planwise-labs/navigator-core/infrastructure/cache"
	"github.com/planwise-labs/navigator-core/internal/domain"
)

// ScopedStore is the minimal namespaced key-value contract HazardCache
// needs. infrastructure/cache.ScopedCache (in-process LRU) and
// infrastructure/cache.RedisScopedCache (distributed, for deployments
// running more than one orchestrator process against a shared hazard
// cache) both satisfy it.
type ScopedStore interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// HazardCache is the content-addressed rebuild gate named in the glossary:
// a cached set of per-period rates (Parameters), rebuilt only when its
// inputs' hash changes. Built on infrastructure/cache's LRU so the same
// hazard-cache instance can also hold other per-run derived lookups
// (scoped under a different prefix) without interfering with this one.
type HazardCache struct {
	underlying *cache.Cache
	scoped     ScopedStore
	lastHash   string
}

func NewHazardCache(underlying *cache.Cache) *HazardCache {
	return &HazardCache{underlying: underlying, scoped: cache.NewScopedCache(underlying, "hazard:")}
}

// NewHazardCacheWithStore builds a HazardCache over an explicit ScopedStore
// rather than the default in-process LRU — e.g. cache.NewRedisScopedCache,
// for deployments where more than one orchestrator process shares one
// hazard cache.
func NewHazardCacheWithStore(store ScopedStore) *HazardCache {
	return &HazardCache{scoped: store}
}

const ratesKey = "rates"

// Ensure returns params unchanged but refreshes the cache entry and bumps
// the underlying cache's version whenever params's content hash differs
// from what's currently cached — i.e. whenever the rate inputs changed.
// A scheduler pre-hook calls this (via Gate) before EVENT_GENERATION so
// stale hazard rates are never used across a parameter change.
func (h *HazardCache) Ensure(ctx context.Context, params Parameters) (Parameters, error) {
	hash, err := domain.ConfigHash(toHazardHashInput(params))
	if err != nil {
		return params, fmt.Errorf("eventgen: hash hazard parameters: %w", err)
	}
	if hash == h.lastHash {
		if _, ok := h.scoped.Get(ctx, ratesKey); ok {
			return params, nil
		}
	}
	if h.underlying != nil {
		h.underlying.InvalidateVersion()
	}
	h.scoped.Set(ctx, ratesKey, params, 0)
	h.lastHash = hash
	return params, nil
}

// Gate adapts Ensure to a no-argument freshness check the scheduler can
// call as its EVENT_GENERATION pre-hook (scheduler.HazardCacheGate).
func (h *HazardCache) Gate(params Parameters) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := h.Ensure(ctx, params)
		return err
	}
}

// hazardHashInput is a plain-struct mirror of Parameters' exported levers,
// so ConfigHash sees only lever values and not the unexported overrides
// map's internal shape.
type hazardHashInput struct {
	TerminationBaseRate          float64
	TerminationTenureMultiplier  float64
	TerminationLowPerfMultiplier float64
	PromotionBaseRate            float64
	PromotionRaise               float64
	MeritBaseRate                float64
	MeritIncrease                float64
	EnrollmentRate               float64
}

func toHazardHashInput(p Parameters) hazardHashInput {
	return hazardHashInput{
		TerminationBaseRate:          p.TerminationBaseRate,
		TerminationTenureMultiplier:  p.TerminationTenureMultiplier,
		TerminationLowPerfMultiplier: p.TerminationLowPerfMultiplier,
		PromotionBaseRate:            p.PromotionBaseRate,
		PromotionRaise:               p.PromotionRaise,
		MeritBaseRate:                p.MeritBaseRate,
		MeritIncrease:                p.MeritIncrease,
		EnrollmentRate:               p.EnrollmentRate,
	}
}
