package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/database"
	"github.com/chakriappu140/collaborative-study-planner/internal/handlers"
	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/notify"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/services"
	"github.com/chakriappu140/collaborative-study-planner/internal/storage"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API and websocket server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	st := store.New(db)

	// Uploads answer 503 when storage is unreachable; the rest of the API
	// keeps working.
	var objects storage.ObjectStorage
	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logger.Error("storage_init_failed", err, map[string]interface{}{"endpoint": cfg.MinIO.Endpoint})
	} else if err := minioClient.EnsureBucket(cmd.Context()); err != nil {
		logger.Error("storage_bucket_failed", err, map[string]interface{}{"bucket": cfg.MinIO.Bucket})
	} else {
		objects = minioClient
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	access := services.NewAccessService(st)
	hub := realtime.NewHub()
	manager := realtime.NewManager(hub, access, realtime.Options{
		SendBuffer:   cfg.Realtime.SendBuffer,
		DrawingRate:  cfg.Realtime.DrawingRate,
		DrawingBurst: cfg.Realtime.DrawingBurst,
		WriteTimeout: cfg.Realtime.WriteTimeout,
	})
	engine := notify.NewEngine(st, hub)
	auth := middleware.NewAuthMiddleware(st)

	h := handlers.Handlers{
		Users:          handlers.NewUsersHandler(st, objects),
		Groups:         handlers.NewGroupsHandler(st, access, hub, engine, cfg.Server.FrontendURL, cfg.Invite.TokenTTL),
		Tasks:          handlers.NewTasksHandler(st, access, hub, engine),
		Calendar:       handlers.NewCalendarHandler(st, access, hub, engine),
		Messages:       handlers.NewMessagesHandler(st, access, hub, engine),
		DirectMessages: handlers.NewDirectMessagesHandler(st, hub, engine),
		Files:          handlers.NewFilesHandler(st, objects, access, hub, engine),
		Notifications:  handlers.NewNotificationsHandler(st),
		Realtime:       handlers.NewRealtimeHandler(ctx, manager, auth, cfg.Realtime.AllowLegacyUID),
	}

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})
	if cfg.Server.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	handlers.RegisterRoutes(app, h, auth)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server_starting", map[string]interface{}{
		"port":       cfg.Server.Port,
		"address":    listenAddr,
		"body_limit": fmt.Sprintf("%dMB", cfg.Server.BodyLimitMB),
		"storage":    objects != nil,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("server_stopping", map[string]interface{}{"reason": "signal"})
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server_shutdown_failed", err, nil)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
