package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Planar helpers over an equirectangular projection centered on the
// inputs. Good to well under a meter at the sub-kilometer scales the
// hazard buffer works with.

func project(p orb.Point, refLat float64) (x, y float64) {
	x = p[0] * math.Pi / 180 * EarthRadiusM * math.Cos(refLat*math.Pi/180)
	y = p[1] * math.Pi / 180 * EarthRadiusM
	return
}

func segPointDist(ax, ay, bx, by, px, py float64) float64 {
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

func segmentsCross(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	d1 := cross(cx, cy, dx, dy, ax, ay)
	d2 := cross(cx, cy, dx, dy, bx, by)
	d3 := cross(ax, ay, bx, by, cx, cy)
	d4 := cross(ax, ay, bx, by, dx, dy)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func cross(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// SegmentDistanceM is the minimum distance in meters between the
// segments (a1,a2) and (b1,b2). Zero when they cross.
func SegmentDistanceM(a1, a2, b1, b2 orb.Point) float64 {
	refLat := (a1[1] + a2[1] + b1[1] + b2[1]) / 4
	ax, ay := project(a1, refLat)
	bx, by := project(a2, refLat)
	cx, cy := project(b1, refLat)
	dx, dy := project(b2, refLat)
	if segmentsCross(ax, ay, bx, by, cx, cy, dx, dy) {
		return 0
	}
	return math.Min(
		math.Min(segPointDist(ax, ay, bx, by, cx, cy), segPointDist(ax, ay, bx, by, dx, dy)),
		math.Min(segPointDist(cx, cy, dx, dy, ax, ay), segPointDist(cx, cy, dx, dy, bx, by)),
	)
}

// LineIntersectsMultiPolygon reports whether the polyline crosses a
// ring edge of the multipolygon or has a vertex inside it.
func LineIntersectsMultiPolygon(line orb.LineString, mp orb.MultiPolygon) bool {
	for _, p := range line {
		if planar.MultiPolygonContains(mp, p) {
			return true
		}
	}
	for i := 0; i+1 < len(line); i++ {
		for _, poly := range mp {
			for _, ring := range poly {
				for j := 0; j+1 < len(ring); j++ {
					if SegmentDistanceM(line[i], line[i+1], ring[j], ring[j+1]) == 0 {
						return true
					}
				}
			}
		}
	}
	return false
}

// LineToMultiPolygonDistanceM is the minimum distance in meters from
// the polyline to the multipolygon boundary, zero when they touch or
// the line enters the polygon.
func LineToMultiPolygonDistanceM(line orb.LineString, mp orb.MultiPolygon) float64 {
	for _, p := range line {
		if planar.MultiPolygonContains(mp, p) {
			return 0
		}
	}
	min := math.Inf(1)
	for i := 0; i+1 < len(line); i++ {
		for _, poly := range mp {
			for _, ring := range poly {
				for j := 0; j+1 < len(ring); j++ {
					if d := SegmentDistanceM(line[i], line[i+1], ring[j], ring[j+1]); d < min {
						min = d
					}
				}
			}
		}
	}
	return min
}
