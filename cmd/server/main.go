package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vod-scheduler/internal/filecache"
	"vod-scheduler/internal/platform/config"
	"vod-scheduler/internal/platform/logger"
	"vod-scheduler/internal/platform/metrics"
	"vod-scheduler/internal/vod"
	"vod-scheduler/internal/youtube"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	statePath := config.GetEnv("STATE_FILE", "playlists.json")
	location := config.GetEnv("MAPPING_LOCATION", "mapping")
	localPrefix := config.GetEnv("LOCAL_PREFIX", "/local")
	remotePrefix := config.GetEnv("REMOTE_PREFIX", "/remote")
	cacheDir := config.GetEnv("CACHE_DIR", "cache")
	cacheWorkers := config.GetEnvInt("CACHE_WORKERS", 2)
	sourceInterval := config.GetEnvDuration("SOURCE_REFRESH_INTERVAL", vod.DefaultSourceRefreshInterval)
	positionInterval := config.GetEnvDuration("POSITION_REFRESH_INTERVAL", vod.DefaultPositionRefreshInterval)
	playerEndpoint := config.GetEnv("PLAYER_ENDPOINT", "")

	log := logger.New(logLevel, logFormat)

	store, err := vod.Open(statePath)
	if err != nil {
		log.Error("state load failed", "path", statePath, "error", err)
		os.Exit(1)
	}

	cache, err := filecache.New(cacheDir, cacheWorkers, logger.Component(log, "filecache"))
	if err != nil {
		log.Error("file cache init failed", "dir", cacheDir, "error", err)
		os.Exit(1)
	}

	provider := youtube.NewClient().WithEndpoint(playerEndpoint)
	prefixes := vod.PathPrefixes{Local: localPrefix, Remote: remotePrefix}
	met := metrics.New()
	svc := vod.NewService(store, provider, cache, prefixes, logger.Component(log, "vod"), met)
	h := vod.NewHandler(svc, log, met)

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	go svc.RunSourceRefresh(jobsCtx, sourceInterval)
	go svc.RunPositionRefresh(jobsCtx, positionInterval)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetPlaylistsStored(store.Len()) }).ServeHTTP(w, r)
	})
	h.Routes(r, location)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"state_file", statePath,
		"playlists", store.Len(),
		"mapping_location", location,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := cache.Shutdown(ctx); err != nil {
		log.Error("file cache drain error", "error", err)
	}

	log.Info("server stopped")
}
