package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Dean-Rough/transferjuice-sub005/acquisition"
	"github.com/Dean-Rough/transferjuice-sub005/aggregator"
	"github.com/Dean-Rough/transferjuice-sub005/app_config"
	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/extractor"
	"github.com/Dean-Rough/transferjuice-sub005/ingest"
	"github.com/Dean-Rough/transferjuice-sub005/registry"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
	"github.com/Dean-Rough/transferjuice-sub005/utils/dotenv"
	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

var (
	AppConfigPath *string
	// Configuration to customize binary startup.
	AppConfig app_config.IngesterAppConfig
)

// init() will always be called on before the execution of main function.
func init() {
	AppConfigPath = flag.String("app_config_path", "cmd/ingester/config.yaml", "path to ingester app config")
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

func newDogStatsdClient(addr string) *statsd.Client {
	client, err := statsd.New(addr)
	if err != nil {
		Logger.Log.Warnln("statsd unavailable, metrics disabled:", err)
		return nil
	}
	return client
}

func newStateStore() acquisition.StateStore {
	store, err := storage.GetRedisStateStore()
	if err != nil {
		// The ingester degrades gracefully without redis, it just starts
		// every source from the default strategy after a restart.
		Logger.Log.Warnln("redis unavailable, acquisition state will not persist:", err)
		return nil
	}
	return store
}

func main() {
	AppConfig = app_config.ParseIngesterAppConfig(*AppConfigPath)

	db, err := storage.GetDBConnection()
	if err != nil {
		Logger.Log.Fatalln("cannot connect to database:", err)
	}
	if err := storage.DatabaseSetupAndMigration(db); err != nil {
		Logger.Log.Fatalln("cannot migrate database:", err)
	}
	repo := storage.NewGormRepository(db)

	tracker := reliability.NewTracker(repo)
	if err := registry.Seed(repo, tracker); err != nil {
		Logger.Log.Fatalln("cannot seed source registry:", err)
	}

	clk := clock.Real{}
	client := acquisition.NewClient(
		acquisition.NewScraperStrategy(clk),
		acquisition.NewAPIStrategy(nil, os.Getenv("TWITTER_BEARER_TOKEN"), clk),
		acquisition.NewFeedStrategy(nil, clk),
		newStateStore(),
		clk,
	)

	pipeline := ingest.NewPipeline(
		repo,
		client,
		extractor.NewExtractor(nil),
		aggregator.NewAggregator(repo, tracker, clk),
		tracker,
		clk,
	)
	pipeline.Configure(AppConfig.ACQUISITION_WORKER_COUNT, AppConfig.MAX_ITEMS_PER_SOURCE)

	eventbus := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
	ctx, cancel := context.WithCancel(context.Background())

	// Initialize all engine modules here.
	modules := []ingest.Module{
		// Reporter forwards cycle metrics to datadog for monitoring.
		ingest.NewReporter(ingest.ReporterConfig{Name: "reporter"}, newDogStatsdClient(AppConfig.STATSD_ADDR), eventbus),
		// Scheduler triggers an ingest cycle on a fixed cadence.
		ingest.NewScheduler(ingest.SchedulerConfig{
			Name:     "scheduler",
			Interval: time.Duration(AppConfig.CYCLE_INTERVAL_MINUTE) * time.Minute,
		}, eventbus),
		// Orchestrator listens for triggers and runs the pipeline.
		ingest.NewOrchestrator(ingest.OrchestratorConfig{Name: "orchestrator"}, pipeline, eventbus),
	}

	engine := ingest.NewEngine(modules, ctx, cancel, eventbus)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		engine.Shutdown()
	}()

	Logger.Log.Infoln("ingester starts up")

	// blocking call.
	engine.Run()

	Logger.Log.Infoln("engine stopped execution")
}
