// Package geo assigns points to hierarchical hexagonal cells and
// provides the distance helpers shared by the scorer and the router.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
	h3 "github.com/uber/h3-go/v4"
)

const (
	// DefaultResolution is the H3 resolution used everywhere in the
	// deployment. At resolution 9 the average cell edge is ~174m,
	// which keeps zone granularity consistent between scoring and
	// edge weighting.
	DefaultResolution = 9

	// CellEdgeM is the average edge length of a resolution-9 cell in
	// meters.
	CellEdgeM = 174.376

	EarthRadiusM = 6371000.0
)

// Index maps a WGS-84 point to its cell at the given resolution.
func Index(lat, lon float64, resolution int) h3.Cell {
	return h3.LatLngToCell(h3.NewLatLng(lat, lon), resolution)
}

// Centroid returns the cell center as an orb point (lon, lat order).
func Centroid(cell h3.Cell) orb.Point {
	ll := h3.CellToLatLng(cell)
	return orb.Point{ll.Lng, ll.Lat}
}

// CellPolygon returns the cell boundary as a closed polygon.
func CellPolygon(cell h3.Cell) orb.Polygon {
	boundary := h3.CellToBoundary(cell)
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, ll := range boundary {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// CellsWithinRadius returns all cells whose centers may fall within
// radiusM of the point. The ring count is derived from the average
// cell spacing, rounded up one ring so boundary cells are included.
func CellsWithinRadius(lat, lon, radiusM float64, resolution int) []h3.Cell {
	origin := Index(lat, lon, resolution)
	// center-to-center spacing of neighboring hexagons is edge*sqrt(3)
	k := int(radiusM/(CellEdgeM*math.Sqrt(3))) + 1
	return h3.GridDisk(origin, k)
}

// Neighbors returns the immediate neighbors of the cell, origin
// excluded.
func Neighbors(cell h3.Cell) []h3.Cell {
	return lo.Filter(h3.GridDisk(cell, 1), func(c h3.Cell, _ int) bool {
		return c != cell
	})
}

// HaversineM is the great-circle distance between two points in
// meters. Kept as a scalar lat/lon form for the A* heuristic hot
// path.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(a))
}

// DistanceM is HaversineM over orb points (lon, lat order).
func DistanceM(p1, p2 orb.Point) float64 {
	return HaversineM(p1[1], p1[0], p2[1], p2[0])
}
