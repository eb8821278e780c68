package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/embernav/embernav/geo"
	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/observability"
	"github.com/embernav/embernav/roadnet"
	"github.com/embernav/embernav/routing"
)

// Server bundles the engine components behind the HTTP surface.
type Server struct {
	scorer    *hazard.Scorer
	snapshots *hazard.SnapshotStore
	router    *routing.Router
	provider  *roadnet.Provider
	clock     clockwork.Clock
	metrics   *observability.Metrics
	registry  *prometheus.Registry
	engine    *gin.Engine
}

func NewServer(
	scorer *hazard.Scorer,
	snapshots *hazard.SnapshotStore,
	router *routing.Router,
	provider *roadnet.Provider,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	registry *prometheus.Registry,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		scorer:    scorer,
		snapshots: snapshots,
		router:    router,
		provider:  provider,
		clock:     clock,
		metrics:   metrics,
		registry:  registry,
		engine:    engine,
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	v1 := s.engine.Group("/v1")
	v1.POST("/hazards/compute", s.handleComputeHazards)
	v1.GET("/hazards", s.handleGetHazards)
	v1.POST("/routes", s.handleRoute)
	v1.GET("/risk", s.handleRiskAssessment)
	v1.POST("/roadnet/reload", s.handleReload)
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Infof("server listening at %v", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type computeHazardsRequest struct {
	Observations []hazard.Observation    `json:"observations"`
	Weather      []hazard.WeatherContext `json:"weather"`
}

func (s *Server) handleComputeHazards(c *gin.Context) {
	var req computeHazardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, stats := s.scorer.ComputeAndPublish(req.Observations, req.Weather)
	c.JSON(http.StatusOK, gin.H{
		"snapshotVersion": snap.Version,
		"stats":           stats,
		"zones":           snapshotFeatures(snap),
	})
}

func (s *Server) handleGetHazards(c *gin.Context) {
	snap := s.snapshots.Current()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{
			"snapshotVersion": 0,
			"stale":           true,
			"zones":           geojson.NewFeatureCollection(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshotVersion": snap.Version,
		"stale":           s.snapshots.Stale(s.clock.Now()),
		"zones":           snapshotFeatures(snap),
	})
}

func snapshotFeatures(snap *hazard.Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range snap.Zones {
		fc.Append(z.Feature())
	}
	return fc
}

type routeRequest struct {
	Start routing.Point `json:"start" binding:"required"`
	Goal  routing.Point `json:"goal" binding:"required"`
}

func (s *Server) handleRoute(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	route, err := s.router.SafeRoute(req.Start, req.Goal)
	if err != nil {
		var noRoute *routing.NoRouteError
		switch {
		case errors.As(err, &noRoute):
			// a reported outcome, not a failure
			c.JSON(http.StatusOK, gin.H{"found": false, "reason": string(noRoute.Reason)})
		case errors.Is(err, roadnet.ErrNoGraph):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	warnings := make([]string, 0)
	if route.Stale {
		warnings = append(warnings, "hazard data is stale")
	}
	c.JSON(http.StatusOK, gin.H{
		"found":             true,
		"routeId":           route.ID,
		"geometry":          geojson.NewGeometry(route.Geometry),
		"distanceMeters":    route.DistanceM,
		"etaSeconds":        route.ETASeconds,
		"safetyScore":       route.SafetyScore,
		"hazardZonesNearby": route.NearbyZones,
		"snapshotVersion":   route.SnapshotVersion,
		"warnings":          warnings,
	})
}

func (s *Server) handleRiskAssessment(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}
	radiusKm := 1.0
	if v := c.Query("radius_km"); v != "" {
		var err error
		if radiusKm, err = strconv.ParseFloat(v, 64); err != nil || radiusKm <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km"})
			return
		}
	}

	snap := s.snapshots.Current()
	level := hazard.LevelLow
	zones := make([]gin.H, 0)
	if snap != nil {
		for _, z := range snap.ZonesNear(lat, lon, radiusKm*1000, geo.DefaultResolution) {
			level = hazard.MaxLevel(level, z.Level)
			zones = append(zones, gin.H{
				"id":        z.ID,
				"riskLevel": string(z.Level),
				"riskScore": z.RiskScore,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"riskLevel":   string(level),
		"nearbyZones": zones,
		"stale":       s.snapshots.Stale(s.clock.Now()),
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.provider.Reload(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, roadnet.ErrNoGraph):
			c.JSON(http.StatusConflict, gin.H{"error": "no graph loaded yet, nothing to reload"})
		case errors.Is(err, roadnet.ErrNetworkUnavailable):
			// last good graph stays in service
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	g, _ := s.provider.Graph()
	c.JSON(http.StatusOK, gin.H{"graphVersion": g.Version})
}
