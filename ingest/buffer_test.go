package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/ingest"
)

func TestBufferDrainResetsObservations(t *testing.T) {
	b := ingest.NewBuffer()
	b.AddObservation(hazard.Observation{ID: "o1", Timestamp: time.Now()})
	b.AddObservation(hazard.Observation{ID: "o2", Timestamp: time.Now()})

	observations, weather := b.Drain()
	assert.Len(t, observations, 2)
	assert.Empty(t, weather)

	observations, _ = b.Drain()
	assert.Empty(t, observations)
}

func TestBufferWeatherPersistsAcrossDrains(t *testing.T) {
	b := ingest.NewBuffer()
	b.AddWeather(hazard.WeatherContext{CellID: "cell-a", WindSpeed: 10})
	b.AddWeather(hazard.WeatherContext{CellID: "cell-b", WindSpeed: 20})

	_, weather := b.Drain()
	assert.Len(t, weather, 2)

	// still there on the next drain; newer readings replace older
	b.AddWeather(hazard.WeatherContext{CellID: "cell-a", WindSpeed: 55})
	_, weather = b.Drain()
	assert.Len(t, weather, 2)
	for _, w := range weather {
		if w.CellID == "cell-a" {
			assert.Equal(t, 55.0, w.WindSpeed)
		}
	}
}
