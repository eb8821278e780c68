package main

import (
	"errors"
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/embernav/embernav/roadnet"
	"github.com/embernav/embernav/routing"
)

var (
	benchmarkCount = flag.Int("benchmark.count", 1000, "the random routing count for benchmark")
	benchmarkSeed  = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU   = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

// runBenchmark fires random routing requests between nodes of the
// loaded graph and reports the aggregate latency.
func runBenchmark(provider *roadnet.Provider, router *routing.Router) {
	logrus.SetLevel(logrus.WarnLevel)
	g, err := provider.Graph()
	if err != nil {
		log.Fatalf("benchmark requires a loaded road network: %v", err)
	}
	e := rand.New(rand.NewSource(*benchmarkSeed))
	// random start/goal pairs drawn from the graph's nodes
	type pair struct{ start, goal routing.Point }
	reqs := make([]pair, *benchmarkCount)
	for i := 0; i < *benchmarkCount; i++ {
		s := g.Nodes[e.Intn(len(g.Nodes))].Point
		t := g.Nodes[e.Intn(len(g.Nodes))].Point
		reqs[i] = pair{
			start: routing.Point{Lat: s.Lat(), Lon: s.Lon()},
			goal:  routing.Point{Lat: t.Lat(), Lon: t.Lon()},
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, req := range reqs {
			route, err := router.SafeRoute(req.start, req.goal)
			var nrf *routing.NoRouteError
			if err != nil && !errors.As(err, &nrf) {
				log.Error("benchmark failed, err:", err)
			}
			if route != nil {
				success.Add(1)
			}
		}
	} else {
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(*benchmarkCount)
		for _, req := range reqs {
			go func(req pair) {
				defer wg.Done()
				route, err := router.SafeRoute(req.start, req.goal)
				var nrf *routing.NoRouteError
				if err != nil && !errors.As(err, &nrf) {
					log.Error("benchmark failed, err:", err)
				}
				if route != nil {
					success.Add(1)
				}
			}(req)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(*benchmarkCount), "\n",
		"success:", success.Load(), "\n",
	)
}
