// Package hazard turns raw hazard observations into versioned risk
// zone snapshots.
package hazard

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "hazard")

// record-level validation failure, the batch continues
var ErrInvalidInput = errors.New("invalid input")

type ObservationType string

const (
	ObservationFire       ObservationType = "fire"
	ObservationWeather    ObservationType = "weather"
	ObservationPopulation ObservationType = "population"
)

// Observation is a single hazard signal from an upstream feed.
// Immutable once ingested.
type Observation struct {
	ID         string          `json:"id"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	Timestamp  time.Time       `json:"timestamp"`
	Confidence float64         `json:"confidence"`
	Intensity  float64         `json:"intensity"`
	Type       ObservationType `json:"type"`
}

// Validate rejects malformed records. Failures are per-record, never
// batch-fatal.
func (o Observation) Validate() error {
	if math.IsNaN(o.Lat) || math.IsInf(o.Lat, 0) || o.Lat < -90 || o.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, o.Lat)
	}
	if math.IsNaN(o.Lon) || math.IsInf(o.Lon, 0) || o.Lon < -180 || o.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, o.Lon)
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidInput, o.Confidence)
	}
	if math.IsNaN(o.Intensity) || math.IsInf(o.Intensity, 0) || o.Intensity < 0 {
		return fmt.Errorf("%w: intensity %v out of range", ErrInvalidInput, o.Intensity)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidInput)
	}
	return nil
}

// WeatherContext is the ambient weather for one cell, keyed by the
// cell id string of the deployment resolution.
type WeatherContext struct {
	CellID      string  `json:"cellId"`
	WindSpeed   float64 `json:"windSpeed"` // km/h
	Humidity    float64 `json:"humidity"`  // percent
	Temperature float64 `json:"temperature"`
}
