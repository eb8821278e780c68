package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/embernav/embernav/geo"
	"github.com/embernav/embernav/hazard"
	"github.com/embernav/embernav/ingest"
	"github.com/embernav/embernav/observability"
	"github.com/embernav/embernav/roadnet"
	"github.com/embernav/embernav/routing"
)

var log = logrus.WithField("module", "main")

var (
	mongoURI       = flag.String("mongo_uri", os.Getenv("MONGO_URI"), "mongo db uri for road data")
	roadnetPathStr = flag.String("roadnet", os.Getenv("ROADNET_PATH"), "road network collection [format: {db}.{col}]")
	cacheDir       = flag.String("cache", "", "road data cache dir (empty means disable cache)")
	listenAddr     = flag.String("listen", "localhost:52110", "HTTP listening address")
	logLevel       = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// region to load at startup
	regionMinLat = flag.Float64("region.min_lat", 0, "region bounding box min latitude")
	regionMinLon = flag.Float64("region.min_lon", 0, "region bounding box min longitude")
	regionMaxLat = flag.Float64("region.max_lat", 0, "region bounding box max latitude")
	regionMaxLon = flag.Float64("region.max_lon", 0, "region bounding box max longitude")

	// live observation feed (optional; HTTP compute works without it)
	kafkaBrokers = flag.String("kafka.brokers", os.Getenv("KAFKA_BROKERS"), "comma-separated kafka brokers for the hazard feed")
	kafkaTopic   = flag.String("kafka.topic", "hazard-feed", "hazard feed topic")
	kafkaGroup   = flag.String("kafka.group", "embernav", "hazard feed consumer group")
	refresh      = flag.Duration("refresh", 5*time.Minute, "scorer cadence for the live feed")
	freshness    = flag.Duration("freshness", 15*time.Minute, "snapshot age beyond which responses carry a stale warning")

	// performance analysis
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "", "pprof listening address (empty disables)")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	_ = godotenv.Load() // ignore missing file
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	clock := clockwork.NewRealClock()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// road network
	coll, cleanup := openRoadCollection(*mongoURI, *roadnetPathStr)
	defer cleanup()
	provider := roadnet.NewProvider(coll, *cacheDir, geo.DefaultResolution, metrics)
	bbox := roadnet.BoundingBox{
		MinLat: *regionMinLat, MinLon: *regionMinLon,
		MaxLat: *regionMaxLat, MaxLon: *regionMaxLon,
	}
	if coll != nil || *cacheDir != "" {
		if err := provider.Load(context.Background(), bbox); err != nil {
			log.Fatalf("failed to load road network: %v", err)
		}
	} else {
		log.Warn("no road data source configured, route requests will fail until one is loaded")
	}

	// hazard scorer
	snapshots := hazard.NewSnapshotStore(*freshness)
	scorer := hazard.NewScorer(hazard.DefaultScorerConfig(), clock, snapshots, metrics)

	// router
	router := routing.New(provider, snapshots, routing.DefaultConfig(), clock, metrics)

	server := NewServer(scorer, snapshots, router, provider, clock, metrics, registry)

	if *pprofAddr != "" {
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		runBenchmark(provider, router)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	// live feed
	if *kafkaBrokers != "" {
		buffer := ingest.NewBuffer()
		consumer := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers: strings.Split(*kafkaBrokers, ","),
			Topic:   *kafkaTopic,
			GroupID: *kafkaGroup,
		}, buffer, metrics)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Errorf("feed consumer stopped: %v", err)
			}
		}()
		runner := hazard.NewRunner(scorer, buffer, clock, *refresh)
		go runner.Run(ctx)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // force exit on second signal
		}()
		cancel()
	}()

	if err := server.Run(ctx, *listenAddr); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
	log.Info("embernav closes")
}

// openRoadCollection resolves the {db}.{col} address into a mongo
// collection. A nil collection means cache-only operation.
func openRoadCollection(uri, dbDotColl string) (*mongo.Collection, func()) {
	noop := func() {}
	dbDotColl = strings.TrimSpace(dbDotColl)
	if uri == "" || dbDotColl == "" {
		return nil, noop
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 {
		log.Fatalf("roadnet path is invalid: %s", dbDotColl)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	return client.Database(splitted[0]).Collection(splitted[1]), func() {
		client.Disconnect(context.Background())
	}
}
