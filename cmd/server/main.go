// Package main runs the venue check-in and occupancy HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/covidjournal/backend/config"
	"github.com/covidjournal/backend/internal/auth"
	"github.com/covidjournal/backend/internal/checkins"
	"github.com/covidjournal/backend/internal/infections"
	"github.com/covidjournal/backend/internal/middleware"
	"github.com/covidjournal/backend/internal/organizations"
	"github.com/covidjournal/backend/internal/places"
	"github.com/covidjournal/backend/internal/realtime"
	"github.com/covidjournal/backend/pkg/database"
	"github.com/covidjournal/backend/pkg/queue"
	"github.com/covidjournal/backend/pkg/redis"
	"github.com/covidjournal/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Places (occupancy, gauge, proximity search)
	policy := places.NewLevelPolicy(cfg.Gauge)
	placeRepo := places.NewRepository(pool, policy)
	placeHandler := places.NewHandler(placeRepo, policy, logger)

	// Check-ins
	checkinRepo := checkins.NewRepository(pool)
	checkinHandler := checkins.NewHandler(checkinRepo, placeRepo, logger)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, jwtService, logger)

	// Infections
	jobQueue := queue.NewQueue(rdb.Client, logger)
	infectionRepo := infections.NewRepository(pool)
	infectionHandler := infections.NewHandler(infectionRepo, placeRepo, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/", func(c *gin.Context) { response.OK(c, gin.H{"healthy": true}) })

	// Public
	router.GET("/places/search", placeHandler.Search)
	router.GET("/places/:id", placeHandler.GetByID)
	router.POST("/checkins", checkinHandler.Create)
	router.GET("/checkins", checkinHandler.ListBySession)
	router.POST("/organizations", orgHandler.Register)

	// Protected API (organization bearer token required; disabled
	// organizations fail resolution regardless of token validity)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService, orgRepo))
	{
		api.GET("/places", placeHandler.List)
		api.POST("/places", placeHandler.Create)
		api.PATCH("/places/:id", placeHandler.Update)
		api.DELETE("/places/:id", placeHandler.Disable)
		api.GET("/places/:id/occupancy", placeHandler.Occupancy)

		api.GET("/organizations", orgHandler.Get)
		api.PATCH("/organizations", orgHandler.Rename)

		api.POST("/infections", infectionHandler.Create)
		api.GET("/infections", infectionHandler.List)

		api.POST("/gauges/refresh", placeHandler.RefreshGauges)
	}

	// Live gauge feed (place_id in query; gauge data is public)
	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Periodic gauge refresh, broadcast to watchers
	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	defer refresherCancel()
	refresher := places.NewRefresher(placeRepo,
		func(placeID uuid.UUID, snapshot places.GaugeSnapshot) {
			hub.BroadcastToPlaceAndPublish(placeID, "gauge", snapshot)
		},
		time.Duration(cfg.Gauge.RefreshIntervalSec)*time.Second, logger)
	go refresher.Run(refresherCtx)
	logger.Info("gauge refresher started", zap.Int("interval_sec", cfg.Gauge.RefreshIntervalSec))

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	refresherCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
