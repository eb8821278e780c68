// Package ingest consumes the live observation feed and buffers it
// for the scorer cadence.
package ingest

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/embernav/embernav/hazard"
)

var log = logrus.WithField("module", "ingest")

// Buffer accumulates validated observations and weather context
// between scorer runs. Drain hands everything off and resets, so each
// scoring pass sees each record exactly once. Weather context is
// keyed by cell and the latest reading wins.
type Buffer struct {
	mu           sync.Mutex
	observations []hazard.Observation
	weather      map[string]hazard.WeatherContext
}

func NewBuffer() *Buffer {
	return &Buffer{weather: make(map[string]hazard.WeatherContext)}
}

// AddObservation appends one observation.
func (b *Buffer) AddObservation(o hazard.Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observations = append(b.observations, o)
}

// AddWeather upserts the weather context for a cell.
func (b *Buffer) AddWeather(w hazard.WeatherContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weather[w.CellID] = w
}

// Drain implements hazard.ObservationSource.
func (b *Buffer) Drain() ([]hazard.Observation, []hazard.WeatherContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	observations := b.observations
	b.observations = nil
	weather := make([]hazard.WeatherContext, 0, len(b.weather))
	for _, w := range b.weather {
		weather = append(weather, w)
	}
	// weather persists across drains: a cell's last reading stays
	// valid until replaced
	return observations, weather
}
