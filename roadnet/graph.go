// Package roadnet loads and serves immutable routable road graphs.
package roadnet

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
)

// Node is a road intersection.
type Node struct {
	ID    int64     `json:"id"`
	Point orb.Point `json:"point"` // lon, lat
}

// Edge is a directed road segment between two nodes.
type Edge struct {
	ID         int64          `json:"id"`
	From       int64          `json:"from"`
	To         int64          `json:"to"`
	LengthM    float64        `json:"lengthM"`
	MaxSpeedMS float64        `json:"maxSpeedMS"`
	Geometry   orb.LineString `json:"geometry"`
}

// BaseTravelTime is the unpenalized traversal time in seconds.
func (e *Edge) BaseTravelTime() float64 {
	return e.LengthM / e.MaxSpeedMS
}

// RoadGraph is an immutable routable graph. It is shared read-only by
// all concurrent route requests; a reload produces a new graph that
// replaces it atomically.
type RoadGraph struct {
	Version uint64
	Nodes   []Node
	Edges   []Edge

	nodeIndex   map[int64]int
	out         [][]int // node idx -> outgoing edge idxs
	cellToNodes map[h3.Cell][]int
	cellToEdges map[h3.Cell][]int
	maxSpeedMS  float64
	resolution  int
}

// NewGraph indexes nodes and edges into a routable graph. Inputs are
// sorted by id so identical data always builds the identical graph.
func NewGraph(nodes []Node, edges []Edge, version uint64, resolution int) (*RoadGraph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("road graph has no nodes")
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	g := &RoadGraph{
		Version:     version,
		Nodes:       nodes,
		Edges:       make([]Edge, 0, len(edges)),
		nodeIndex:   make(map[int64]int, len(nodes)),
		out:         make([][]int, len(nodes)),
		cellToNodes: make(map[h3.Cell][]int),
		cellToEdges: make(map[h3.Cell][]int),
		resolution:  resolution,
	}
	for i, n := range nodes {
		if _, ok := g.nodeIndex[n.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		g.nodeIndex[n.ID] = i
		cell := geo.Index(n.Point[1], n.Point[0], resolution)
		g.cellToNodes[cell] = append(g.cellToNodes[cell], i)
	}
	for _, e := range edges {
		from, ok := g.nodeIndex[e.From]
		if !ok {
			// edge reaches outside the region, drop it
			continue
		}
		if _, ok := g.nodeIndex[e.To]; !ok {
			continue
		}
		if e.MaxSpeedMS <= 0 || e.LengthM <= 0 {
			return nil, fmt.Errorf("edge %d has invalid length/speed", e.ID)
		}
		if len(e.Geometry) < 2 {
			e.Geometry = orb.LineString{g.Nodes[from].Point, g.Nodes[g.nodeIndex[e.To]].Point}
		}
		idx := len(g.Edges)
		g.Edges = append(g.Edges, e)
		g.out[from] = append(g.out[from], idx)
		for _, cell := range edgeCells(e.Geometry, resolution) {
			g.cellToEdges[cell] = append(g.cellToEdges[cell], idx)
		}
		if e.MaxSpeedMS > g.maxSpeedMS {
			g.maxSpeedMS = e.MaxSpeedMS
		}
	}
	if g.maxSpeedMS == 0 {
		return nil, fmt.Errorf("road graph has no usable edges")
	}
	return g, nil
}

// edgeCells covers the edge geometry with cells, one ring wide so a
// segment spanning a cell boundary is still registered on both sides.
// Segments are sampled at sub-cell spacing: a long straight segment
// passes through cells far from either vertex, and those cells must
// be registered too or spatial lookups would miss the edge.
func edgeCells(line orb.LineString, resolution int) []h3.Cell {
	seen := make(map[h3.Cell]bool)
	cells := make([]h3.Cell, 0, len(line)*2)
	add := func(p orb.Point) {
		for _, c := range h3.GridDisk(geo.Index(p[1], p[0], resolution), 1) {
			if !seen[c] {
				seen[c] = true
				cells = append(cells, c)
			}
		}
	}
	for i, p := range line {
		add(p)
		if i+1 == len(line) {
			break
		}
		next := line[i+1]
		steps := int(geo.DistanceM(p, next) / geo.CellEdgeM)
		for s := 1; s <= steps; s++ {
			f := float64(s) / float64(steps+1)
			add(orb.Point{p[0] + (next[0]-p[0])*f, p[1] + (next[1]-p[1])*f})
		}
	}
	return cells
}

// NodeIdx resolves an external node id.
func (g *RoadGraph) NodeIdx(id int64) (int, bool) {
	i, ok := g.nodeIndex[id]
	return i, ok
}

// OutEdges returns the outgoing edge indexes of a node, in the
// deterministic build order.
func (g *RoadGraph) OutEdges(node int) []int {
	return g.out[node]
}

// MaxSpeedMS is the fastest speed limit in the graph; dividing the
// great-circle distance by it gives an admissible time heuristic.
func (g *RoadGraph) MaxSpeedMS() float64 {
	return g.maxSpeedMS
}

// Resolution is the cell resolution the graph was indexed at.
func (g *RoadGraph) Resolution() int {
	return g.resolution
}

// EdgesInCells returns the distinct edge indexes registered in any of
// the given cells.
func (g *RoadGraph) EdgesInCells(cells []h3.Cell) []int {
	seen := make(map[int]bool)
	out := make([]int, 0)
	for _, c := range cells {
		for _, e := range g.cellToEdges[c] {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	sort.Ints(out)
	return out
}

// NearestNode finds the closest graph node to the point, searching
// outward ring by ring with a full-scan fallback for sparse regions.
func (g *RoadGraph) NearestNode(lat, lon float64) (int, bool) {
	origin := geo.Index(lat, lon, g.resolution)
	for k := 1; k <= 16; k *= 2 {
		best, bestDist := -1, math.Inf(1)
		for _, cell := range h3.GridDisk(origin, k) {
			for _, n := range g.cellToNodes[cell] {
				if d := geo.HaversineM(lat, lon, g.Nodes[n].Point[1], g.Nodes[n].Point[0]); d < bestDist {
					best, bestDist = n, d
				}
			}
		}
		if best >= 0 {
			return best, true
		}
	}
	best, bestDist := -1, math.Inf(1)
	for i := range g.Nodes {
		if d := geo.HaversineM(lat, lon, g.Nodes[i].Point[1], g.Nodes[i].Point[0]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}
