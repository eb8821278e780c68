package routing_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/roadnet"
	"github.com/embernav/embernav/routing"
)

const (
	streetLat = 34.05
	detourLat = 34.042
)

func lonAt(i int) float64 { return -118.25 + 0.004*float64(i) }

func bothWays(id, from, to int64, length float64) []roadnet.Edge {
	return []roadnet.Edge{
		{ID: id, From: from, To: to, LengthM: length, MaxSpeedMS: 14},
		{ID: id + 1, From: to, To: from, LengthM: length, MaxSpeedMS: 14},
	}
}

// five intersections ~370m apart along an east-west street
func streetFixture() ([]roadnet.Node, []roadnet.Edge) {
	nodes := make([]roadnet.Node, 0, 5)
	for i := 0; i < 5; i++ {
		nodes = append(nodes, roadnet.Node{
			ID:    int64(i + 1),
			Point: orb.Point{lonAt(i), streetLat},
		})
	}
	edges := make([]roadnet.Edge, 0, 8)
	edges = append(edges, bothWays(10, 1, 2, 370)...)
	edges = append(edges, bothWays(12, 2, 3, 370)...)
	edges = append(edges, bothWays(14, 3, 4, 370)...)
	edges = append(edges, bothWays(16, 4, 5, 370)...)
	return nodes, edges
}

// the street plus a parallel detour street ~900m south joining nodes
// 2 and 4
func corridorFixture() ([]roadnet.Node, []roadnet.Edge) {
	nodes, edges := streetFixture()
	nodes = append(nodes,
		roadnet.Node{ID: 6, Point: orb.Point{lonAt(1), detourLat}},
		roadnet.Node{ID: 7, Point: orb.Point{lonAt(3), detourLat}},
	)
	edges = append(edges, bothWays(20, 2, 6, 900)...)
	edges = append(edges, bothWays(22, 6, 7, 740)...)
	edges = append(edges, bothWays(24, 7, 4, 900)...)
	return nodes, edges
}

func zoneAt(id string, lat, lon, score float64, at time.Time) *hazard.Zone {
	cell := geo.Index(lat, lon, geo.DefaultResolution)
	return &hazard.Zone{
		ID:        id,
		Cells:     []h3.Cell{cell},
		RiskScore: score,
		Level:     hazard.Classify(score),
		UpdatedAt: at,
		Geometry:  orb.MultiPolygon{geo.CellPolygon(cell)},
	}
}

func newTestRouter(t *testing.T, nodes []roadnet.Node, edges []roadnet.Edge) (*routing.Router, *roadnet.Provider, *hazard.SnapshotStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	provider := roadnet.NewProvider(nil, "", geo.DefaultResolution, nil)
	assert.NoError(t, provider.InstallGraph(nodes, edges))
	store := hazard.NewSnapshotStore(15 * time.Minute)
	router := routing.New(provider, store, routing.DefaultConfig(), clock, nil)
	return router, provider, store, clock
}

func TestSafeRouteDirect(t *testing.T) {
	nodes, edges := corridorFixture()
	router, _, _, _ := newTestRouter(t, nodes, edges)

	route, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	assert.NoError(t, err)
	assert.NotNil(t, route)
	assert.NotEmpty(t, route.ID)
	assert.Equal(t, 4*370.0, route.DistanceM)
	assert.InDelta(t, 4*370.0/14, route.ETASeconds, 1e-9)
	assert.Equal(t, 1.0, route.SafetyScore)
	assert.Empty(t, route.NearbyZones)
	// 4 edges, joint vertices deduplicated
	assert.Len(t, route.Geometry, 5)
	assert.Equal(t, uint64(1), route.GraphVersion)
	// no snapshot published yet
	assert.Equal(t, uint64(0), route.SnapshotVersion)
	assert.True(t, route.Stale)
}

func TestSafeRouteDetoursAroundCriticalZone(t *testing.T) {
	nodes, edges := corridorFixture()
	router, _, store, clock := newTestRouter(t, nodes, edges)

	zone := zoneAt("z1", streetLat, lonAt(2), 0.9, clock.Now())
	snap := store.Publish([]*hazard.Zone{zone}, clock.Now())

	route, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	assert.NoError(t, err)
	assert.NotNil(t, route)
	// longer than the direct street, so the detour was taken
	assert.Greater(t, route.DistanceM, 4*370.0)
	// the route never enters the high-risk polygon
	assert.False(t, geo.LineIntersectsMultiPolygon(route.Geometry, zone.Geometry))
	// approach edges inside the buffer are penalized and audited
	assert.Contains(t, route.NearbyZones, "z1")
	assert.Less(t, route.SafetyScore, 1.0)
	assert.GreaterOrEqual(t, route.SafetyScore, 0.0)
	assert.Equal(t, snap.Version, route.SnapshotVersion)
	assert.False(t, route.Stale)
}

func TestSafeRouteIdenticalAcrossRepublish(t *testing.T) {
	nodes, edges := corridorFixture()
	router, _, store, clock := newTestRouter(t, nodes, edges)

	zones := []*hazard.Zone{zoneAt("z1", streetLat, lonAt(2), 0.9, clock.Now())}
	store.Publish(zones, clock.Now())
	first, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	assert.NoError(t, err)

	// republishing the same zone set bumps the version but changes
	// nothing about the routing outcome
	store.Publish(zones, clock.Now())
	second, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	assert.NoError(t, err)

	assert.Equal(t, first.Geometry, second.Geometry)
	assert.Equal(t, first.DistanceM, second.DistanceM)
	assert.Equal(t, first.ETASeconds, second.ETASeconds)
	assert.Equal(t, first.SafetyScore, second.SafetyScore)
	assert.Equal(t, first.NearbyZones, second.NearbyZones)
	assert.Equal(t, first.SnapshotVersion+1, second.SnapshotVersion)
}

func TestSafeRoutePrefersDetourOutsideMediumBuffer(t *testing.T) {
	// direct: A -> M -> B straight through a medium zone at M;
	// detour: A -> D -> B with D far enough south that its legs clear
	// the penalty buffer
	nodes := []roadnet.Node{
		{ID: 1, Point: orb.Point{-118.2498, 34.05}},  // A, ~900m west of M
		{ID: 2, Point: orb.Point{-118.24, 34.05}},    // M
		{ID: 3, Point: orb.Point{-118.2302, 34.05}},  // B, ~900m east of M
		{ID: 4, Point: orb.Point{-118.24, 34.04012}}, // D, ~1.1km south of M
	}
	edges := []roadnet.Edge{
		{ID: 10, From: 1, To: 2, LengthM: 900, MaxSpeedMS: 14},
		{ID: 11, From: 2, To: 3, LengthM: 900, MaxSpeedMS: 14},
		{ID: 12, From: 1, To: 4, LengthM: 1421, MaxSpeedMS: 14},
		{ID: 13, From: 4, To: 3, LengthM: 1421, MaxSpeedMS: 14},
	}
	router, _, store, clock := newTestRouter(t, nodes, edges)

	// without hazards the direct street wins
	route, err := router.SafeRoute(
		routing.Point{Lat: 34.05, Lon: -118.2498},
		routing.Point{Lat: 34.05, Lon: -118.2302},
	)
	assert.NoError(t, err)
	assert.Equal(t, 1800.0, route.DistanceM)

	// a medium zone penalizes but never excludes; the penalized
	// direct street now costs more than the longer clean detour
	zone := zoneAt("z1", 34.05, -118.24, 0.45, clock.Now())
	assert.Equal(t, hazard.LevelMedium, zone.Level)
	store.Publish([]*hazard.Zone{zone}, clock.Now())

	route, err = router.SafeRoute(
		routing.Point{Lat: 34.05, Lon: -118.2498},
		routing.Point{Lat: 34.05, Lon: -118.2302},
	)
	assert.NoError(t, err)
	assert.Equal(t, 2*1421.0, route.DistanceM)
	assert.False(t, geo.LineIntersectsMultiPolygon(route.Geometry, zone.Geometry))
}

func TestSafeRouteHazardExcluded(t *testing.T) {
	nodes, edges := streetFixture()
	router, _, store, clock := newTestRouter(t, nodes, edges)

	zone := zoneAt("z1", streetLat, lonAt(2), 0.9, clock.Now())
	store.Publish([]*hazard.Zone{zone}, clock.Now())

	_, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	var nrf *routing.NoRouteError
	assert.ErrorAs(t, err, &nrf)
	assert.Equal(t, routing.ReasonHazardExcluded, nrf.Reason)
}

func TestSafeRouteDisconnected(t *testing.T) {
	nodes, edges := streetFixture()
	nodes = append(nodes, roadnet.Node{ID: 99, Point: orb.Point{-118.25, 34.3}})
	router, _, _, _ := newTestRouter(t, nodes, edges)

	_, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: 34.3, Lon: -118.25},
	)
	var nrf *routing.NoRouteError
	assert.ErrorAs(t, err, &nrf)
	assert.Equal(t, routing.ReasonDisconnected, nrf.Reason)
}

func TestSafeRouteNoGraph(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	provider := roadnet.NewProvider(nil, "", geo.DefaultResolution, nil)
	store := hazard.NewSnapshotStore(15 * time.Minute)
	router := routing.New(provider, store, routing.DefaultConfig(), clock, nil)

	_, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	assert.ErrorIs(t, err, roadnet.ErrNoGraph)
}

func TestSafeRouteStaleSnapshot(t *testing.T) {
	nodes, edges := corridorFixture()
	router, _, store, clock := newTestRouter(t, nodes, edges)

	store.Publish(nil, clock.Now())
	clock.Advance(16 * time.Minute)

	route, err := router.SafeRoute(
		routing.Point{Lat: streetLat, Lon: lonAt(0)},
		routing.Point{Lat: streetLat, Lon: lonAt(4)},
	)
	assert.NoError(t, err)
	assert.True(t, route.Stale)
}

func TestSafeRouteConcurrentWithReload(t *testing.T) {
	nodes, edges := corridorFixture()
	router, provider, _, _ := newTestRouter(t, nodes, edges)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				route, err := router.SafeRoute(
					routing.Point{Lat: streetLat, Lon: lonAt(0)},
					routing.Point{Lat: streetLat, Lon: lonAt(4)},
				)
				if assert.NoError(t, err) {
					// each request sees exactly one graph version
					assert.Contains(t, []uint64{1, 2}, route.GraphVersion)
					assert.Equal(t, 4*370.0, route.DistanceM)
				}
			}
		}()
	}
	n2, e2 := corridorFixture()
	assert.NoError(t, provider.InstallGraph(n2, e2))
	wg.Wait()

	g, err := provider.Graph()
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), g.Version)
}

func TestNoRouteErrorMessage(t *testing.T) {
	err := &routing.NoRouteError{Reason: routing.ReasonHazardExcluded}
	assert.Equal(t, fmt.Sprintf("no route found: %s", routing.ReasonHazardExcluded), err.Error())
	assert.True(t, errors.As(error(err), new(*routing.NoRouteError)))
}
