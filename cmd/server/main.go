package main

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Dean-Rough/transferjuice-sub005/acquisition"
	"github.com/Dean-Rough/transferjuice-sub005/aggregator"
	"github.com/Dean-Rough/transferjuice-sub005/clock"
	"github.com/Dean-Rough/transferjuice-sub005/extractor"
	"github.com/Dean-Rough/transferjuice-sub005/ingest"
	"github.com/Dean-Rough/transferjuice-sub005/registry"
	"github.com/Dean-Rough/transferjuice-sub005/reliability"
	"github.com/Dean-Rough/transferjuice-sub005/server"
	"github.com/Dean-Rough/transferjuice-sub005/storage"
	"github.com/Dean-Rough/transferjuice-sub005/utils"
	"github.com/Dean-Rough/transferjuice-sub005/utils/dotenv"
	Logger "github.com/Dean-Rough/transferjuice-sub005/utils/log"
)

func init() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	Logger.Log.Info("api server initialized")
}

func main() {
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
		nil,
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

	if utils.IsProdEnv() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Default with the Logger and Recovery middleware already attached.
	router := gin.Default()
	router.Use(cors.Default())

	router.GET("/stories", server.StoriesHandler(pipeline))
	router.GET("/health", server.HealthHandler(pipeline))
	router.POST("/cycle", server.CycleHandler(pipeline))

	Logger.Log.Info("api server starts up")
	router.Run(":8080")
}
