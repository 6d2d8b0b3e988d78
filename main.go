package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tubetext/config"
	"tubetext/downloader"
	"tubetext/handlers/api"
	"tubetext/logger"
	"tubetext/proxy"
	"tubetext/repository/sqlite"
	"tubetext/services/media"
	"tubetext/storage"
	"tubetext/transcription"
	"tubetext/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.LogDir, cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := sqlite.InitDB(cfg.Database.Path, sqlite.DefaultDBConfig())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repo, err := sqlite.NewRepository(db)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}

	// Proxy pool with its snapshot cache. The initial refresh runs in the
	// background so startup is never blocked on the upstream listing.
	pool := proxy.NewPool(
		proxy.NewListingSource(cfg.Proxy.SourceURL, cfg.Proxy.APIKey, cfg.Proxy.FetchTimeout),
		proxy.NewHTTPChecker(cfg.Proxy.CheckURL, cfg.Proxy.CheckTimeout),
		proxy.NewFileStore(cfg.Proxy.SnapshotPath),
		proxy.PoolConfig{SnapshotTTL: cfg.Proxy.SnapshotTTL},
	)
	go pool.Refresh(context.Background())

	store := storage.NewStore(cfg.MediaDir(), cfg.SubtitleDir())

	runner := downloader.NewRunner(downloader.RunnerConfig{
		Timeout:      cfg.Download.Timeout,
		ProbeTimeout: cfg.Download.ProbeTimeout,
		MaxHeight:    cfg.Download.MaxHeight,
		AudioQuality: cfg.Download.AudioQuality,
	})
	orchestrator := downloader.NewOrchestrator(runner, pool, store, cfg.Download.CookiesFile)

	engine := transcription.NewEngine(transcription.EngineConfig{
		BinPath: cfg.Transcription.WhisperBin,
		Model:   cfg.Transcription.Model,
		Timeout: cfg.Transcription.Timeout,
	})

	var mirror media.SubtitleMirror
	if cfg.Spaces.Enabled {
		spaces, err := storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: cfg.Spaces.AccessKey,
			SecretKey: cfg.Spaces.SecretKey,
			Region:    cfg.Spaces.Region,
			Endpoint:  cfg.Spaces.Endpoint,
			Bucket:    cfg.Spaces.Bucket,
		})
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		mirror = spaces
	}

	mediaService := media.NewService(
		repo,
		orchestrator,
		engine,
		store,
		mirror,
		validation.NewValidator(),
		media.Config{
			ProcessTimeout: cfg.Download.Timeout + cfg.Transcription.Timeout,
			Workers:        cfg.Queue.Workers,
			MaxQueueSize:   cfg.Queue.MaxQueueSize,
		},
	)
	defer mediaService.Close()

	if err := mediaService.RecoverStale(context.Background()); err != nil {
		log.Printf("Failed to recover stale jobs: %v", err)
	}

	server := api.NewServer(cfg, api.WithServices(mediaService, store, pool))

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
