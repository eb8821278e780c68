// Package algo provides the generic A* search graph used by the
// router.
package algo

import (
	"container/heap"
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

var ErrNodeNotExists = errors.New("node does not exist in graph")

// Heuristic estimates the remaining cost from a point to the goal.
// It must never overestimate the true cost or A* loses optimality.
type Heuristic func(from, goal orb.Point) float64

// EdgeWeight maps an edge (by its caller-supplied index) and its base
// cost to an effective cost for this search. Returning +Inf excludes
// the edge. Implementations are request-scoped overlays; the graph
// itself is never mutated after construction.
type EdgeWeight func(edgeIdx int, base float64) float64

// BaseWeight runs the search on unmodified base costs.
func BaseWeight(_ int, base float64) float64 { return base }

type node[NT any] struct {
	p     orb.Point
	attr  NT
	noOut bool // dead end, only expandable as the goal
}

type edgeRef[ET any] struct {
	to   int
	idx  int
	base float64
	attr ET
}

// SearchGraph is an adjacency-list graph with generic node and edge
// attributes. Topology is fixed after construction, so concurrent
// searches need no locking. Neighbors are kept in insertion order so
// identical inputs expand identically.
type SearchGraph[NT any, ET any] struct {
	nodes []node[NT]
	edges [][]edgeRef[ET]
	h     Heuristic
}

func NewSearchGraph[NT any, ET any](h Heuristic) *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		nodes: make([]node[NT], 0),
		edges: make([][]edgeRef[ET], 0),
		h:     h,
	}
}

// InitNode appends a node and returns its index.
func (g *SearchGraph[NT, ET]) InitNode(p orb.Point, attr NT, noOut bool) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr, noOut: noOut})
	g.edges = append(g.edges, nil)
	return len(g.nodes) - 1
}

// InitEdge appends a directed edge. idx is the caller's edge index,
// handed back to EdgeWeight during searches.
func (g *SearchGraph[NT, ET]) InitEdge(from, to int, idx int, base float64, attr ET) error {
	if from >= len(g.edges) || to >= len(g.nodes) {
		return ErrNodeNotExists
	}
	g.edges[from] = append(g.edges[from], edgeRef[ET]{to: to, idx: idx, base: base, attr: attr})
	return nil
}

// NodeCount returns the number of nodes.
func (g *SearchGraph[NT, ET]) NodeCount() int {
	return len(g.nodes)
}

// NodePoint returns the position of a node.
func (g *SearchGraph[NT, ET]) NodePoint(i int) orb.Point {
	return g.nodes[i].p
}

// PathItem is one step of a reconstructed path: the node attribute
// plus the attribute of the edge leaving it (zero for the last item).
type PathItem[NT any, ET any] struct {
	NodeAttr NT
	EdgeAttr ET
	EdgeIdx  int
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]edgeRef[ET], from map[int]int, curNode int) []PathItem[NT, ET] {
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[curNode].attr, EdgeIdx: -1}}
	for {
		ref, ok := cameFrom[curNode]
		if !ok {
			break
		}
		curNode = from[curNode]
		pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
			NodeAttr: g.nodes[curNode].attr,
			EdgeAttr: ref.attr,
			EdgeIdx:  ref.idx,
		})
	}
	return lo.Reverse(pathBeforeReversed)
}

// ShortestPathAStar finds a least-cost path under the weight overlay.
// Nil path and +Inf cost when the frontier is exhausted first.
func (g *SearchGraph[NT, ET]) ShortestPathAStar(start, end int, w EdgeWeight) ([]PathItem[NT, ET], float64) {
	if w == nil {
		w = BaseWeight
	}
	if start == end {
		return []PathItem[NT, ET]{{NodeAttr: g.nodes[start].attr, EdgeIdx: -1}}, 0
	}
	goalP := g.nodes[end].p

	openSet := make(PriorityQueue, 1)
	openSetMap := make(map[int]*Item, 1)
	cameFrom := make(map[int]edgeRef[ET])
	from := make(map[int]int)
	gScore := map[int]float64{start: 0}

	h0 := g.h(g.nodes[start].p, goalP)
	openSet[0] = &Item{Value: start, Priority: h0, Tie: h0, Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)

	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		if cur == end {
			return g.reconstructPath(cameFrom, from, cur), gScore[cur]
		}
		for _, ref := range g.edges[cur] {
			if g.nodes[ref.to].noOut && ref.to != end {
				continue
			}
			cost := w(ref.idx, ref.base)
			if math.IsInf(cost, 1) {
				// hard-excluded edge
				continue
			}
			gScoreTentative := gScore[cur] + cost
			gScoreNeighbor, ok := gScore[ref.to]
			if !ok {
				gScoreNeighbor = math.Inf(1)
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[ref.to] = ref
				from[ref.to] = cur
				gScore[ref.to] = gScoreTentative
				h := g.h(g.nodes[ref.to].p, goalP)
				fScore := gScoreTentative + h
				if ok {
					openSetMap[ref.to].Priority = fScore
					openSetMap[ref.to].Tie = h
					heap.Fix(&openSet, openSetMap[ref.to].Index)
				} else {
					item := &Item{Value: ref.to, Priority: fScore, Tie: h}
					heap.Push(&openSet, item)
					openSetMap[ref.to] = item
				}
			}
		}
	}
	return nil, math.Inf(1)
}
