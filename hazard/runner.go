package hazard

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// ObservationSource hands the runner everything buffered since the
// last scoring pass.
type ObservationSource interface {
	Drain() ([]Observation, []WeatherContext)
}

// Runner drives the scorer on a fixed cadence. Route requests never
// wait on it: until a pass finishes, the previous snapshot stays
// published.
type Runner struct {
	scorer   *Scorer
	source   ObservationSource
	clock    clockwork.Clock
	interval time.Duration
}

func NewRunner(scorer *Scorer, source ObservationSource, clock clockwork.Clock, interval time.Duration) *Runner {
	return &Runner{scorer: scorer, source: source, clock: clock, interval: interval}
}

// Run blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	log.Infof("scorer running every %v", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("scorer stopping")
			return
		case <-ticker.Chan():
			observations, weather := r.source.Drain()
			if len(observations) == 0 {
				continue
			}
			r.scorer.ComputeAndPublish(observations, weather)
		}
	}
}
