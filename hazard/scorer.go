package hazard

import (
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
	"github.com/embernav/embernav/observability"
)

// Weights are the named contributions to the composite cell score.
// They should sum to 1 so the score stays in [0,1] before clamping.
type Weights struct {
	Intensity  float64
	Confidence float64
	Temporal   float64
	Weather    float64
}

func DefaultWeights() Weights {
	return Weights{
		Intensity:  0.35,
		Confidence: 0.30,
		Temporal:   0.20,
		Weather:    0.15,
	}
}

type ScorerConfig struct {
	Resolution int
	Weights    Weights
	// HalfLife controls temporal decay: an observation this old
	// contributes half its weight.
	HalfLife time.Duration
	// MaxIntensity normalizes raw intensity readings (e.g. fire
	// radiative power) into [0,1].
	MaxIntensity float64
	Thresholds   WeatherThresholds
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Resolution:   geo.DefaultResolution,
		Weights:      DefaultWeights(),
		HalfLife:     2 * time.Hour,
		MaxIntensity: 100,
		Thresholds:   DefaultWeatherThresholds(),
	}
}

// BatchStats reports what happened to one scoring batch.
type BatchStats struct {
	Accepted        int `json:"accepted"`
	Rejected        int `json:"rejected"`
	DegradedWeather int `json:"degradedWeather"`
}

// Scorer computes full-replacement hazard zone snapshots from
// observation batches.
type Scorer struct {
	cfg     ScorerConfig
	clock   clockwork.Clock
	store   *SnapshotStore
	metrics *observability.Metrics
}

func NewScorer(cfg ScorerConfig, clock clockwork.Clock, store *SnapshotStore, metrics *observability.Metrics) *Scorer {
	if cfg.MaxIntensity <= 0 {
		cfg.MaxIntensity = 1
	}
	return &Scorer{cfg: cfg, clock: clock, store: store, metrics: metrics}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// temporalDecay is exp(-age*ln2/halfLife): 1 at age zero, 0.5 at one
// half-life.
func (s *Scorer) temporalDecay(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-age.Seconds() * math.Ln2 / s.cfg.HalfLife.Seconds())
}

// score combines one observation with its cell weather into a
// composite contribution in [0,1].
func (s *Scorer) score(o Observation, w *WeatherContext) float64 {
	wt := s.cfg.Weights
	intensity := clamp01(o.Intensity / s.cfg.MaxIntensity)
	decay := s.temporalDecay(s.clock.Now().Sub(o.Timestamp))
	// the weather term is the table's boost above neutral, scaled so
	// the maximum boost contributes a full weather weight
	weather := clamp01((WeatherFactor(w, s.cfg.Thresholds) - WeatherNeutral) / (WeatherMaxBoost - WeatherNeutral))
	return clamp01(wt.Intensity*intensity + wt.Confidence*o.Confidence + wt.Temporal*decay + wt.Weather*weather)
}

// Compute scores a batch and returns the zone set for the affected
// region. It is a full replacement, not an incremental patch.
// Malformed records are rejected individually and counted.
func (s *Scorer) Compute(observations []Observation, weather []WeatherContext) ([]*Zone, BatchStats) {
	stats := BatchStats{}
	weatherByCell := make(map[string]*WeatherContext, len(weather))
	for i := range weather {
		weatherByCell[weather[i].CellID] = &weather[i]
	}

	// group by cell, keep the strongest contribution per cell
	scores := make(map[h3.Cell]*cellScore)
	for _, o := range observations {
		if err := o.Validate(); err != nil {
			stats.Rejected++
			log.Warnf("rejected observation %q: %v", o.ID, err)
			continue
		}
		stats.Accepted++
		cell := geo.Index(o.Lat, o.Lon, s.cfg.Resolution)
		w, ok := weatherByCell[cell.String()]
		if !ok {
			stats.DegradedWeather++
			log.Warnf("no weather context for cell %s, scoring with neutral factor", cell)
		}
		sc := s.score(o, w)
		if cur, ok := scores[cell]; !ok || sc > cur.score {
			scores[cell] = &cellScore{
				cell:  cell,
				score: sc,
				level: Classify(sc),
				factors: []Factor{
					{Name: "intensity", Weight: s.cfg.Weights.Intensity},
					{Name: "confidence", Weight: s.cfg.Weights.Confidence},
					{Name: "temporal", Weight: s.cfg.Weights.Temporal},
					{Name: "weather", Weight: s.cfg.Weights.Weather},
				},
			}
		}
	}

	now := s.clock.Now()
	zones := make([]*Zone, 0)
	for i, cells := range mergeCells(scores) {
		maxScore := 0.0
		for _, c := range cells {
			if sc := scores[c].score; sc > maxScore {
				maxScore = sc
			}
		}
		zones = append(zones, &Zone{
			ID:        fmt.Sprintf("zone-%d-%s", i, cells[0]),
			Cells:     cells,
			RiskScore: maxScore,
			Level:     Classify(maxScore),
			Factors:   scores[cells[0]].factors,
			UpdatedAt: now,
			Geometry:  buildZoneGeometry(cells),
		})
	}

	if s.metrics != nil {
		s.metrics.ObservationsRejected.Add(float64(stats.Rejected))
		s.metrics.WeatherDegraded.Add(float64(stats.DegradedWeather))
		s.metrics.ZonesPublished.Add(float64(len(zones)))
	}
	return zones, stats
}

// ComputeAndPublish runs Compute and atomically publishes the result
// as the next snapshot version.
func (s *Scorer) ComputeAndPublish(observations []Observation, weather []WeatherContext) (*Snapshot, BatchStats) {
	zones, stats := s.Compute(observations, weather)
	snap := s.store.Publish(zones, s.clock.Now())
	if s.metrics != nil {
		s.metrics.SnapshotAge.Set(0)
	}
	log.Infof("published snapshot v%d with %d zones (%d accepted, %d rejected)",
		snap.Version, len(zones), stats.Accepted, stats.Rejected)
	return snap, stats
}
