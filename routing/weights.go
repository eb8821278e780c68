package routing

import (
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/roadnet"
)

// WeightConfig tunes the soft-constraint cost model.
type WeightConfig struct {
	// BufferM is the distance around a hazard polygon within which
	// soft penalties apply.
	BufferM float64
	// PenaltyFactor scales the proximity penalty; at the boundary of
	// a risk-1.0 zone the edge costs (1 + PenaltyFactor) times base.
	PenaltyFactor float64
	// MinLevel is the lowest classification that penalizes edges.
	MinLevel hazard.RiskLevel
	// ExcludeLevel is the lowest classification that excludes
	// intersecting edges entirely.
	ExcludeLevel hazard.RiskLevel
}

func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		BufferM:       500,
		PenaltyFactor: 4.0,
		MinLevel:      hazard.LevelMedium,
		ExcludeLevel:  hazard.LevelHigh,
	}
}

// Overlay is the request-scoped weight function over one graph
// version and one hazard snapshot. It never mutates the shared graph,
// so concurrent requests are fully isolated.
type Overlay struct {
	multipliers map[int]float64
	excluded    map[int]struct{}
	// nearbyZones records, per penalized or excluded edge, the zone
	// ids responsible. Used for the route audit trail.
	nearbyZones map[int][]string
	cfg         WeightConfig
}

// BuildWeights computes the effective-cost overlay for the graph
// under the snapshot. Recomputed per request (or per snapshot
// version); never cached keyed only by edge id, because zones move.
func BuildWeights(g *roadnet.RoadGraph, snap *hazard.Snapshot, cfg WeightConfig) *Overlay {
	o := &Overlay{
		multipliers: make(map[int]float64),
		excluded:    make(map[int]struct{}),
		nearbyZones: make(map[int][]string),
		cfg:         cfg,
	}
	if snap == nil {
		return o
	}

	bufferRings := int(cfg.BufferM/(geo.CellEdgeM*math.Sqrt(3))) + 2
	for _, zone := range snap.Zones {
		if !zone.Level.AtLeast(cfg.MinLevel) {
			continue
		}
		// cheap pre-filter: only edges registered in cells within the
		// buffer ring of the zone can be affected
		candidateCells := make([]h3.Cell, 0, len(zone.Cells)*bufferRings)
		for _, c := range zone.Cells {
			candidateCells = append(candidateCells, h3.GridDisk(c, bufferRings)...)
		}
		for _, ei := range g.EdgesInCells(candidateCells) {
			edge := &g.Edges[ei]
			if zone.Level.AtLeast(cfg.ExcludeLevel) &&
				geo.LineIntersectsMultiPolygon(edge.Geometry, zone.Geometry) {
				o.excluded[ei] = struct{}{}
				o.nearbyZones[ei] = append(o.nearbyZones[ei], zone.ID)
				continue
			}
			dist := geo.LineToMultiPolygonDistanceM(edge.Geometry, zone.Geometry)
			if dist >= cfg.BufferM {
				continue
			}
			// linear decay of the penalty from the zone boundary to
			// the buffer edge
			mult := 1 + cfg.PenaltyFactor*zone.RiskScore*(1-dist/cfg.BufferM)
			if mult > o.multipliers[ei] {
				o.multipliers[ei] = mult
			}
			o.nearbyZones[ei] = append(o.nearbyZones[ei], zone.ID)
		}
	}
	return o
}

// Weight is the algo.EdgeWeight for this overlay.
func (o *Overlay) Weight(edgeIdx int, base float64) float64 {
	if _, ok := o.excluded[edgeIdx]; ok {
		return math.Inf(1)
	}
	if m, ok := o.multipliers[edgeIdx]; ok {
		return base * m
	}
	return base
}

// Multiplier returns the penalty multiplier applied to the edge (1
// when unpenalized).
func (o *Overlay) Multiplier(edgeIdx int) float64 {
	if m, ok := o.multipliers[edgeIdx]; ok {
		return m
	}
	return 1
}

// Excluded reports whether the edge is hard-excluded.
func (o *Overlay) Excluded(edgeIdx int) bool {
	_, ok := o.excluded[edgeIdx]
	return ok
}

// ZonesForEdge returns the zone ids that penalized or excluded the
// edge.
func (o *Overlay) ZonesForEdge(edgeIdx int) []string {
	return o.nearbyZones[edgeIdx]
}

// PenaltyNorm normalizes a multiplier into [0,1] against the worst
// possible penalty.
func (o *Overlay) PenaltyNorm(mult float64) float64 {
	if o.cfg.PenaltyFactor <= 0 {
		return 0
	}
	n := (mult - 1) / o.cfg.PenaltyFactor
	return math.Max(0, math.Min(1, n))
}
