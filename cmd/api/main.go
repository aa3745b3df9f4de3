package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/asterolab/lightcurve-backend/config"
	analysishttp "github.com/asterolab/lightcurve-backend/internal/analysis/http"
	"github.com/asterolab/lightcurve-backend/internal/analysis/repository"
	"github.com/asterolab/lightcurve-backend/internal/analysis/service"
	"github.com/asterolab/lightcurve-backend/internal/archive"
	cronjob "github.com/asterolab/lightcurve-backend/internal/archive/cron"
	"github.com/asterolab/lightcurve-backend/internal/bootstrap"
	"github.com/asterolab/lightcurve-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: postgres.DSN(&cfg.Database)})
	if err != nil {
		log.Fatalf("Failed to open database pool: %v", err)
	}
	defer pool.Close()

	sqlDB, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer sqlDB.Close()

	archiveClient := archive.NewClient(cfg.Archive.BaseURL, cfg.Archive.APIKey,
		cfg.Archive.RateLimit, cfg.Archive.Burst)
	archiveSvc := archive.NewService(archiveClient, rdb, cfg)
	catalogRepo := archive.NewCatalogRepository(pool)

	sessionRepo := repository.NewSessionRepository(rdb)
	samplesRepo := repository.NewSamplesRepository(sqlDB)
	logRepo := repository.NewLogRepository(rdb)
	analysisSvc := service.NewAnalysisService(sessionRepo, samplesRepo, logRepo, archiveSvc, cfg)

	scheduler := cronjob.NewScheduler(archiveClient, catalogRepo, cfg.Archive.Missions)
	scheduler.Start()
	defer scheduler.Stop()

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:     "lightcurve-backend",
		Version:         cfg.App.Version,
		DB:              pool,
		Redis:           rdb,
		AnalysisHandler: analysishttp.New(analysisSvc),
		ArchiveHandler:  archive.NewHandler(archiveSvc, catalogRepo),
	})

	log.Printf("Starting server on :%s (env=%s)", cfg.Server.Port, cfg.App.Environment)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
