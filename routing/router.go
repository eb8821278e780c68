// Package routing answers "what is the safest path from A to B given
// current hazards" over the shared road graph.
package routing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/embernav/embernav/geo"
	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/observability"
	"github.com/embernav/embernav/roadnet"
	"github.com/embernav/embernav/routing/algo"
)

var log = logrus.WithField("module", "routing")

// NotFoundReason distinguishes "no path exists at all" from "no path
// avoids all high-risk zones", so operators can decide whether to
// accept a risk exception.
type NotFoundReason string

const (
	ReasonDisconnected   NotFoundReason = "disconnected"
	ReasonHazardExcluded NotFoundReason = "hazard_excluded"
)

// NoRouteError is a reported outcome, not a failure: during an active
// hazard "no safe route exists" is a real and important answer.
type NoRouteError struct {
	Reason NotFoundReason
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route found: %s", e.Reason)
}

// Point is a request coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Route is the result of one safe-route computation. Immutable, no
// lifecycle beyond the response.
type Route struct {
	ID              string
	Geometry        orb.LineString
	DistanceM       float64
	ETASeconds      float64
	SafetyScore     float64
	NearbyZones     []string
	SnapshotVersion uint64
	GraphVersion    uint64
	Stale           bool
}

type Config struct {
	Weights WeightConfig
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeightConfig()}
}

// Router owns the search graph built from each road graph version and
// runs hazard-aware path searches against the latest snapshot.
type Router struct {
	provider  *roadnet.Provider
	snapshots *hazard.SnapshotStore
	cfg       Config
	clock     clockwork.Clock
	metrics   *observability.Metrics

	// one prepared search graph per road graph version; requests for
	// the same version share it read-only
	prepared *xsync.MapOf[uint64, *preparedGraph]
}

type preparedGraph struct {
	road   *roadnet.RoadGraph
	search *algo.SearchGraph[int, int64]
}

func New(provider *roadnet.Provider, snapshots *hazard.SnapshotStore, cfg Config, clock clockwork.Clock, metrics *observability.Metrics) *Router {
	return &Router{
		provider:  provider,
		snapshots: snapshots,
		cfg:       cfg,
		clock:     clock,
		metrics:   metrics,
		prepared:  xsync.NewMapOf[uint64, *preparedGraph](),
	}
}

func (r *Router) prepare(g *roadnet.RoadGraph) *preparedGraph {
	pg, _ := r.prepared.LoadOrCompute(g.Version, func() *preparedGraph {
		maxSpeed := g.MaxSpeedMS()
		search := algo.NewSearchGraph[int, int64](func(from, goal orb.Point) float64 {
			return geo.DistanceM(from, goal) / maxSpeed
		})
		for i, n := range g.Nodes {
			search.InitNode(n.Point, i, len(g.OutEdges(i)) == 0)
		}
		for i, n := range g.Nodes {
			for _, ei := range g.OutEdges(i) {
				edge := &g.Edges[ei]
				to, _ := g.NodeIdx(edge.To)
				if err := search.InitEdge(i, to, ei, edge.BaseTravelTime(), edge.ID); err != nil {
					log.Panicf("edge %d of node %d: %v", edge.ID, n.ID, err)
				}
			}
		}
		log.Infof("prepared search graph for road graph v%d", g.Version)
		return &preparedGraph{road: g, search: search}
	})
	// superseded versions are dropped once a newer graph is prepared;
	// in-flight requests keep the pointer they already hold
	r.prepared.Range(func(v uint64, _ *preparedGraph) bool {
		if v < g.Version {
			r.prepared.Delete(v)
		}
		return true
	})
	return pg
}

// SafeRoute computes the least-cost hazard-aware route between two
// points. The road graph handle and hazard snapshot are taken once at
// entry and used throughout, so a concurrent reload or publish never
// affects an in-flight request.
func (r *Router) SafeRoute(start, goal Point) (route *Route, err error) {
	began := time.Now()
	defer func() {
		if e := recover(); e != nil {
			route = nil
			err = fmt.Errorf("panic: SafeRoute %v with start=%v goal=%v", e, start, goal)
			log.Errorln(err)
			r.count("error")
		}
	}()

	g, err := r.provider.Graph()
	if err != nil {
		r.count("error")
		return nil, err
	}
	snap := r.snapshots.Current()
	if snap != nil && r.metrics != nil {
		r.metrics.SnapshotAge.Set(snap.Age(r.clock.Now()).Seconds())
	}
	pg := r.prepare(g)

	startNode, ok := g.NearestNode(start.Lat, start.Lon)
	if !ok {
		r.count("error")
		return nil, fmt.Errorf("no graph node near start %v", start)
	}
	goalNode, ok := g.NearestNode(goal.Lat, goal.Lon)
	if !ok {
		r.count("error")
		return nil, fmt.Errorf("no graph node near goal %v", goal)
	}

	overlay := BuildWeights(g, snap, r.cfg.Weights)
	path, cost := pg.search.ShortestPathAStar(startNode, goalNode, overlay.Weight)
	if path == nil {
		reason := ReasonDisconnected
		// rerun with exclusions lifted: if a path appears, the only
		// ways through were hard-excluded by a hazard
		if soft, _ := pg.search.ShortestPathAStar(startNode, goalNode, func(ei int, base float64) float64 {
			return base * overlay.Multiplier(ei)
		}); soft != nil {
			reason = ReasonHazardExcluded
		}
		log.Debugf("routing failed between %v and %v: %s", start, goal, reason)
		r.count(string(reason))
		return nil, &NoRouteError{Reason: reason}
	}

	route = r.assemble(g, overlay, path, snap)
	log.Debugf("route %s: %.0fm, %.0fs cost %.0f", route.ID, route.DistanceM, route.ETASeconds, cost)
	r.count("found")
	if r.metrics != nil {
		r.metrics.RouteDuration.Observe(time.Since(began).Seconds())
	}
	return route, nil
}

// assemble derives the route artifact from the path: sums, safety
// score and the audit list of zones passed near.
func (r *Router) assemble(g *roadnet.RoadGraph, overlay *Overlay, path []algo.PathItem[int, int64], snap *hazard.Snapshot) *Route {
	route := &Route{
		ID:           uuid.NewString(),
		GraphVersion: g.Version,
		SafetyScore:  1,
	}
	if snap != nil {
		route.SnapshotVersion = snap.Version
	}
	route.Stale = r.snapshots.Stale(r.clock.Now())

	maxMult := 1.0
	seenZones := make(map[string]bool)
	for _, item := range path {
		if item.EdgeIdx < 0 {
			continue
		}
		edge := &g.Edges[item.EdgeIdx]
		route.DistanceM += edge.LengthM
		route.ETASeconds += edge.BaseTravelTime()
		if m := overlay.Multiplier(item.EdgeIdx); m > maxMult {
			maxMult = m
		}
		for _, id := range overlay.ZonesForEdge(item.EdgeIdx) {
			if !seenZones[id] {
				seenZones[id] = true
				route.NearbyZones = append(route.NearbyZones, id)
			}
		}
		if len(route.Geometry) > 0 {
			// drop the duplicated joint vertex
			route.Geometry = append(route.Geometry, edge.Geometry[1:]...)
		} else {
			route.Geometry = append(route.Geometry, edge.Geometry...)
		}
	}
	route.SafetyScore = 1 - overlay.PenaltyNorm(maxMult)
	return route
}

func (r *Router) count(outcome string) {
	if r.metrics != nil {
		r.metrics.RoutesComputed.WithLabelValues(outcome).Inc()
	}
}
