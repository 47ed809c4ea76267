package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"citymonitor/internal/config"
	"citymonitor/internal/handler"
	"citymonitor/internal/logger"
	"citymonitor/internal/repository/sqlite"
	"citymonitor/internal/route"
	"citymonitor/internal/service"
	"citymonitor/internal/service/ai"
	"citymonitor/internal/service/alerts"
	"citymonitor/internal/service/storage"
	"citymonitor/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
	server        *http.Server
}

func NewApp() (*App, error) {
	cfg := config.Load()
	logger := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cameraRepo := sqlite.NewCameraRepository(db)
	alertRepo := sqlite.NewAlertRepository(db)
	snapshotRepo := sqlite.NewSnapshotRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	buffer := storage.NewBufferService(cfg, logger, snapshotRepo, detectionRepo)
	hub := websocket.NewHubService(logger)
	alertService := alerts.NewService(cfg, alertRepo, buffer, hub, logger)
	manager := service.NewManager(cfg, ai.NewBackend(cfg, logger), hub, buffer, alertService, cameraRepo, logger)

	router := route.SetupRoutes(route.Deps{
		Config:     cfg,
		Logger:     logger,
		Manager:    manager,
		Alerts:     alertService,
		Hub:        hub,
		Cameras:    cameraRepo,
		Snapshots:  snapshotRepo,
		Detections: detectionRepo,
	})

	return &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		manager:       manager,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	defer a.db.Close()
	defer a.manager.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hubService.Run(ctx) })
	g.Go(func() error { return a.bufferService.Run(ctx) })
	g.Go(func() error { return a.manager.StartStreams(ctx) })
	g.Go(func() error { return handler.UDPCameraHandler(ctx, a.manager, a.logger, a.config) })

	g.Go(func() error {
		a.logger.Info("Security camera server listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Snapshots: %s, database: %s, model: %s", a.config.ImageDirectory, a.config.DatabasePath, a.config.DefaultModelType)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.logger.Info("Server stopped")
	return err
}
