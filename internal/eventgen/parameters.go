package eventgen

import (
	"fmt"

	"github.com/planwise-labs/navigator-core/internal/domain"
)

// Parameters holds the compensation/eligibility levers the vector engine's
// deterministic rules read, plus per-(event_type,name,level) overrides
// layered on top of the flat defaults (§4.10's `get_parameter` accessor).
type Parameters struct {
	TerminationBaseRate          float64
	TerminationTenureMultiplier  float64 // applied when tenure < 12mo
	TerminationLowPerfMultiplier float64 // applied when performance_tier=="low"
	PromotionBaseRate            float64
	PromotionRaise               float64
	MeritBaseRate                float64
	MeritIncrease                float64
	EnrollmentRate               float64

	overrides map[string]float64
}

// DefaultParameters returns the compensation levers named in §4.10's rule
// table, with no per-level overrides.
func DefaultParameters() Parameters {
	return Parameters{
		TerminationBaseRate:          0.12,
		TerminationTenureMultiplier:  1.25,
		TerminationLowPerfMultiplier: 2.0,
		PromotionBaseRate:            0.08,
		PromotionRaise:               0.10,
		MeritBaseRate:                0.85,
		MeritIncrease:                0.03,
		EnrollmentRate:               0.70,
	}
}

// WithOverride layers a level-specific override on top of the defaults.
// level == 0 applies to every level for that (eventType, name) pair.
func (p Parameters) WithOverride(eventType domain.EventType, name string, level int, value float64) Parameters {
	out := p
	out.overrides = make(map[string]float64, len(p.overrides)+1)
	for k, v := range p.overrides {
		out.overrides[k] = v
	}
	out.overrides[overrideKey(eventType, name, level)] = value
	return out
}

func overrideKey(eventType domain.EventType, name string, level int) string {
	if level == 0 {
		return fmt.Sprintf("%s.%s", eventType, name)
	}
	return fmt.Sprintf("%s.%s.%d", eventType, name, level)
}

// Get implements `get_parameter(event_type, name, level, default)`: an
// exact-level override wins, then a level-0 (all-levels) override, then
// the caller's default.
func (p Parameters) Get(eventType domain.EventType, name string, level int, def float64) float64 {
	if v, ok := p.overrides[overrideKey(eventType, name, level)]; ok {
		return v
	}
	if v, ok := p.overrides[overrideKey(eventType, name, 0)]; ok {
		return v
	}
	return def
}
