package roadnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/embernav/embernav/observability"
)

var log = logrus.WithField("module", "roadnet")

var (
	// ErrNoGraph means no road graph has been loaded for the region;
	// this is fatal for the region's requests, never an empty route.
	ErrNoGraph = errors.New("no road graph loaded")
	// ErrNetworkUnavailable wraps road-data fetch failures; callers
	// keep serving the last good graph.
	ErrNetworkUnavailable = errors.New("road network source unavailable")
)

// BoundingBox delimits the region a graph is loaded for.
type BoundingBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Provider loads a road graph for a region and shares it read-only
// with all route requests. Loading is the only operation allowed to
// block on external I/O; it happens on cold start or explicit reload,
// never on the route hot path.
type Provider struct {
	coll       *mongo.Collection
	cacheDir   string
	resolution int
	metrics    *observability.Metrics

	cur     atomic.Pointer[RoadGraph]
	version atomic.Uint64

	mu   sync.Mutex // serializes Load/Reload
	bbox BoundingBox
}

func NewProvider(coll *mongo.Collection, cacheDir string, resolution int, metrics *observability.Metrics) *Provider {
	return &Provider{coll: coll, cacheDir: cacheDir, resolution: resolution, metrics: metrics}
}

// Graph returns the current immutable graph. In-flight requests keep
// the handle they took even across a reload.
func (p *Provider) Graph() (*RoadGraph, error) {
	g := p.cur.Load()
	if g == nil {
		return nil, ErrNoGraph
	}
	return g, nil
}

// Load fetches the road data for the bounding box and atomically
// installs the resulting graph.
func (p *Provider) Load(ctx context.Context, bbox BoundingBox) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bbox = bbox
	return p.load(ctx, true)
}

// Reload re-fetches the last loaded region and swaps in the new
// graph. In-flight requests continue against the graph version they
// started with.
func (p *Provider) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur.Load() == nil {
		return ErrNoGraph
	}
	// an explicit refresh always goes back to the source; serving the
	// cache again would make the reload a no-op. The fresh fetch
	// rewrites the cache on success.
	if err := p.load(ctx, false); err != nil {
		// keep serving the last good graph
		return err
	}
	if p.metrics != nil {
		p.metrics.GraphReloads.Inc()
	}
	return nil
}

func (p *Provider) load(ctx context.Context, useCache bool) error {
	nodes, edges, err := p.fetch(ctx, useCache)
	if err != nil {
		return err
	}
	g, err := NewGraph(nodes, edges, p.version.Add(1), p.resolution)
	if err != nil {
		return fmt.Errorf("building road graph: %w", err)
	}
	p.cur.Store(g)
	log.Infof("loaded road graph v%d: %d nodes, %d edges", g.Version, len(g.Nodes), len(g.Edges))
	return nil
}

// InstallGraph places a pre-built graph, bypassing the data source.
// Used by tests and the benchmark harness.
func (p *Provider) InstallGraph(nodes []Node, edges []Edge) error {
	g, err := NewGraph(nodes, edges, p.version.Add(1), p.resolution)
	if err != nil {
		return err
	}
	p.cur.Store(g)
	return nil
}

type nodeDoc struct {
	Data struct {
		ID  int64   `bson:"id" json:"id"`
		Lat float64 `bson:"lat" json:"lat"`
		Lon float64 `bson:"lon" json:"lon"`
	} `bson:"data" json:"data"`
}

type edgeDoc struct {
	Data struct {
		ID       int64   `bson:"id" json:"id"`
		From     int64   `bson:"from" json:"from"`
		To       int64   `bson:"to" json:"to"`
		Length   float64 `bson:"length" json:"length"`
		MaxSpeed float64 `bson:"max_speed" json:"max_speed"`
		Geometry []struct {
			Lat float64 `bson:"lat" json:"lat"`
			Lon float64 `bson:"lon" json:"lon"`
		} `bson:"geometry" json:"geometry"`
	} `bson:"data" json:"data"`
}

type cacheFile struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Nodes     []nodeDoc `json:"nodes"`
	Edges     []edgeDoc `json:"edges"`
}

func (p *Provider) cachePath() string {
	if p.cacheDir == "" {
		return ""
	}
	// nil collection means cache-only operation
	prefix := "local.roadnet"
	if p.coll != nil {
		prefix = p.coll.Database().Name() + "." + p.coll.Name()
	}
	name := fmt.Sprintf("%s.%.4f_%.4f_%.4f_%.4f.json", prefix,
		p.bbox.MinLat, p.bbox.MinLon, p.bbox.MaxLat, p.bbox.MaxLon)
	return filepath.Join(p.cacheDir, name)
}

func (p *Provider) fetch(ctx context.Context, useCache bool) ([]Node, []Edge, error) {
	var cached cacheFile
	if path := p.cachePath(); useCache && path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(raw, &cached); err == nil {
				log.Infof("using cached road data from %s", path)
				return docsToGraphInput(cached.Nodes, cached.Edges), docsToEdges(cached.Edges), nil
			}
		}
	}
	if p.coll == nil {
		return nil, nil, fmt.Errorf("%w: no collection configured and no cache", ErrNetworkUnavailable)
	}

	nodeDocs, err := p.fetchNodes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	edgeDocs, err := p.fetchEdges(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	if path := p.cachePath(); path != "" {
		raw, err := json.Marshal(cacheFile{FetchedAt: time.Now(), Nodes: nodeDocs, Edges: edgeDocs})
		if err == nil {
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				log.Warnf("failed to write road cache %s: %v", path, err)
			}
		}
	}
	return docsToGraphInput(nodeDocs, edgeDocs), docsToEdges(edgeDocs), nil
}

func (p *Provider) fetchNodes(ctx context.Context) ([]nodeDoc, error) {
	filter := bson.M{
		"class":    "node",
		"data.lat": bson.M{"$gte": p.bbox.MinLat, "$lte": p.bbox.MaxLat},
		"data.lon": bson.M{"$gte": p.bbox.MinLon, "$lte": p.bbox.MaxLon},
	}
	cur, err := p.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []nodeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (p *Provider) fetchEdges(ctx context.Context) ([]edgeDoc, error) {
	// edges are filtered against loaded nodes at graph build time, so
	// the query only narrows by class
	cur, err := p.coll.Find(ctx, bson.M{"class": "edge"})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []edgeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func docsToGraphInput(nodeDocs []nodeDoc, _ []edgeDoc) []Node {
	nodes := make([]Node, 0, len(nodeDocs))
	for _, d := range nodeDocs {
		nodes = append(nodes, Node{
			ID:    d.Data.ID,
			Point: orb.Point{d.Data.Lon, d.Data.Lat},
		})
	}
	return nodes
}

func docsToEdges(edgeDocs []edgeDoc) []Edge {
	edges := make([]Edge, 0, len(edgeDocs))
	for _, d := range edgeDocs {
		e := Edge{
			ID:         d.Data.ID,
			From:       d.Data.From,
			To:         d.Data.To,
			LengthM:    d.Data.Length,
			MaxSpeedMS: d.Data.MaxSpeed,
		}
		for _, p := range d.Data.Geometry {
			e.Geometry = append(e.Geometry, orb.Point{p.Lon, p.Lat})
		}
		edges = append(edges, e)
	}
	return edges
}
