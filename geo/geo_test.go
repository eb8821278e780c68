package geo_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"

	"github.com/embernav/embernav/geo"
)

func TestIndexDeterministic(t *testing.T) {
	lat, lon := 34.0522, -118.2437
	cell := geo.Index(lat, lon, geo.DefaultResolution)
	for i := 0; i < 5; i++ {
		assert.Equal(t, cell, geo.Index(lat, lon, geo.DefaultResolution))
	}
	// a point in another city never lands in the same cell
	other := geo.Index(37.7749, -122.4194, geo.DefaultResolution)
	assert.NotEqual(t, cell, other)
}

func TestCellPolygonContainsCentroid(t *testing.T) {
	cell := geo.Index(34.0522, -118.2437, geo.DefaultResolution)
	poly := geo.CellPolygon(cell)
	// closed ring
	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.True(t, planar.PolygonContains(poly, geo.Centroid(cell)))
}

func TestCellPolygonContainsIndexedPoint(t *testing.T) {
	// decoding the cell of a point yields a polygon containing that
	// point, not just the cell centroid
	points := []struct{ lat, lon float64 }{
		{34.0522, -118.2437},
		{37.7749, -122.4194},
		{40.7128, -74.0060},
		{-33.8688, 151.2093},
		{0.0001, 0.0001},
	}
	for _, p := range points {
		cell := geo.Index(p.lat, p.lon, geo.DefaultResolution)
		poly := geo.CellPolygon(cell)
		assert.True(t, planar.PolygonContains(poly, orb.Point{p.lon, p.lat}),
			"cell %s must contain (%v, %v)", cell, p.lat, p.lon)
	}
}

func TestCellsWithinRadius(t *testing.T) {
	lat, lon := 34.0522, -118.2437
	origin := geo.Index(lat, lon, geo.DefaultResolution)

	cells := geo.CellsWithinRadius(lat, lon, 500, geo.DefaultResolution)
	assert.Contains(t, cells, origin)
	small := geo.CellsWithinRadius(lat, lon, 10, geo.DefaultResolution)
	assert.Contains(t, small, origin)
	assert.Greater(t, len(cells), len(small))
}

func TestNeighbors(t *testing.T) {
	cell := geo.Index(34.0522, -118.2437, geo.DefaultResolution)
	neighbors := geo.Neighbors(cell)
	assert.Len(t, neighbors, 6)
	assert.NotContains(t, neighbors, cell)
}

func TestHaversine(t *testing.T) {
	// LA to SF is about 559km
	d := geo.HaversineM(34.0522, -118.2437, 37.7749, -122.4194)
	assert.InDelta(t, 559000, d, 5000)

	assert.Equal(t, 0.0, geo.HaversineM(34.0522, -118.2437, 34.0522, -118.2437))

	// orb points are lon,lat
	p1 := orb.Point{-118.2437, 34.0522}
	p2 := orb.Point{-122.4194, 37.7749}
	assert.Equal(t, d, geo.DistanceM(p1, p2))
}

func TestSegmentDistance(t *testing.T) {
	// two parallel east-west segments ~111m apart at the equator
	a1 := orb.Point{0, 0}
	a2 := orb.Point{0.01, 0}
	b1 := orb.Point{0, 0.001}
	b2 := orb.Point{0.01, 0.001}
	d := geo.SegmentDistanceM(a1, a2, b1, b2)
	assert.InDelta(t, 111.2, d, 1.0)

	// crossing segments
	c1 := orb.Point{0, -0.001}
	c2 := orb.Point{0, 0.001}
	assert.Equal(t, 0.0, geo.SegmentDistanceM(a1, a2, c1, c2))
}

func TestLineIntersectsMultiPolygon(t *testing.T) {
	square := orb.MultiPolygon{{{
		{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0},
	}}}

	crossing := orb.LineString{{-0.005, 0.005}, {0.015, 0.005}}
	assert.True(t, geo.LineIntersectsMultiPolygon(crossing, square))

	inside := orb.LineString{{0.002, 0.002}, {0.008, 0.008}}
	assert.True(t, geo.LineIntersectsMultiPolygon(inside, square))

	outside := orb.LineString{{-0.01, -0.01}, {-0.02, -0.01}}
	assert.False(t, geo.LineIntersectsMultiPolygon(outside, square))
}

func TestLineToMultiPolygonDistance(t *testing.T) {
	square := orb.MultiPolygon{{{
		{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0},
	}}}

	inside := orb.LineString{{0.002, 0.002}, {0.008, 0.008}}
	assert.Equal(t, 0.0, geo.LineToMultiPolygonDistanceM(inside, square))

	// a segment ~111m south of the bottom edge
	near := orb.LineString{{0, -0.001}, {0.01, -0.001}}
	d := geo.LineToMultiPolygonDistanceM(near, square)
	assert.InDelta(t, 111.2, d, 1.0)

	far := orb.LineString{{0, -0.01}, {0.01, -0.01}}
	assert.Greater(t, geo.LineToMultiPolygonDistanceM(far, square), d)
}
