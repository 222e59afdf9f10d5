package orchestrator

import "github.com/planwise-labs/navigator-core/internal/eventgen"

// parametersFromConfig maps the configured compensation/workforce/enrollment
// levers onto eventgen.Parameters, layering config values over the
// engine's defaults rather than duplicating the defaults here.
func (o *Orchestrator) parametersFromConfig() eventgen.Parameters {
	p := eventgen.DefaultParameters()
	if o.cfg.Workforce.TotalTerminationRate > 0 {
		p.TerminationBaseRate = o.cfg.Workforce.TotalTerminationRate
	}
	if o.cfg.Compensation.MeritBudget > 0 {
		p.MeritIncrease = o.cfg.Compensation.MeritBudget
	}
	if o.cfg.Enrollment.EnrollmentRate > 0 {
		p.EnrollmentRate = o.cfg.Enrollment.EnrollmentRate
	}
	return p
}
