package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peerchat/internal/core/services"
	httphandlers "peerchat/internal/handlers/http"
	"peerchat/internal/handlers/ws"
	"peerchat/internal/infrastructure/middleware"
	"peerchat/internal/infrastructure/monitoring"
	"peerchat/internal/infrastructure/repositories"
	webrtcinfra "peerchat/internal/infrastructure/webrtc"
	"peerchat/pkg/config"
	"peerchat/pkg/export"
	"peerchat/pkg/logger"
	"peerchat/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "peerchat",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracerProvider.Shutdown(ctx)
		}()
	}

	// Repositories
	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	profileRepo, err := repoFactory.CreateProfileRepository()
	if err != nil {
		log.Fatalw("failed to create profile repository", "error", err)
	}
	peerRepo, err := repoFactory.CreatePeerRepository()
	if err != nil {
		log.Fatalw("failed to create peer repository", "error", err)
	}
	historyRepo, err := repoFactory.CreateHistoryRepository()
	if err != nil {
		log.Fatalw("failed to create history repository", "error", err)
	}

	exportStorage, err := export.NewFileStorage(cfg.Export.Dir)
	if err != nil {
		log.Fatalw("failed to create export storage", "error", err)
	}

	// WebRTC transport (STUN fallback when not configured)
	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	transportFactory := webrtcinfra.NewFactory(webrtcinfra.Config{
		ICEServers:    iceServers,
		GatherTimeout: cfg.WebRTC.GatherTimeout,
	}, log)

	// Services
	collector := monitoring.NewPrometheusCollector()
	profileService := services.NewProfileService(profileRepo, peerRepo, log)
	mediaService := services.NewMediaService(cfg.Media.MaxImageBytes, cfg.Media.MaxVideoBytes)
	sessionManager := services.NewSessionManager(profileService, historyRepo, mediaService, transportFactory, collector, log)
	exportService := services.NewExportService(profileService, historyRepo, exportStorage, log)

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("storage", repoFactory.HealthCheck, 2*time.Second)

	// HTTP layer
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggerMiddleware(zapLogger))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	profileHandler := httphandlers.NewProfileHandler(profileService, peerRepo, historyRepo)
	sessionHandler := httphandlers.NewSessionHandler(sessionManager)
	exportHandler := httphandlers.NewExportHandler(exportService)
	eventFeed := ws.NewEventFeed(sessionManager, log)

	profileHandler.SetupRoutes(router)
	sessionHandler.SetupRoutes(router)
	exportHandler.SetupRoutes(router)
	eventFeed.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":             "healthy",
			"timestamp":          time.Now(),
			"uptime":             time.Since(startTime).String(),
			"event_feed_clients": eventFeed.ClientCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"checks": status.Checks,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"checks": status.Checks,
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting peerchat API on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down peerchat...")

	// Tear down any live session before the server stops serving events.
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sessionManager.Disconnect(disconnectCtx); err != nil {
		log.Warnw("failed to close session", "error", err)
	}
	disconnectCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("peerchat stopped")
}
