package memory

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartRecommendationCron schedules EmitRecommendations on the given
// cron spec (e.g. "@every 30m", matching RecommendationWindow). Stop the
// returned scheduler with its Stop method when the run ends.
func (c *Controller) StartRecommendationCron(spec string) (*cron.Cron, error) {
	sched := cron.New()
	_, err := sched.AddFunc(spec, func() {
		c.EmitRecommendations(now())
	})
	if err != nil {
		return nil, fmt.Errorf("memory: schedule recommendation cadence %q: %w", spec, err)
	}
	sched.Start()
	return sched, nil
}
