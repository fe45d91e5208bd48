package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/frombarmars/flickshare-sub000/internal/blockchain"
	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/internal/handler"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/internal/scheduler"
	"github.com/frombarmars/flickshare-sub000/internal/service"
	apperrors "github.com/frombarmars/flickshare-sub000/pkg/errors"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Movie{},
		&models.Review{},
		&models.Support{},
		&models.ReviewLike{},
		&models.PointTransaction{},
		&models.Notification{},
		&models.CheckIn{},
		&models.ListenerCheckpoint{},
	); err != nil {
		logger.Fatal("Failed to migrate schema:", err)
	}

	userRepo := repository.NewUserRepository(db)
	movieRepo := repository.NewMovieRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	supportRepo := repository.NewSupportRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	checkinRepo := repository.NewCheckinRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	checkpointRepo := repository.NewCheckpointRepository(db)

	decoder, err := blockchain.NewDecoder(cfg.Chain.TokenDecimals)
	if err != nil {
		logger.Fatal("Failed to build event decoder:", err)
	}

	resolver := service.NewResolver(userRepo, reviewRepo)
	ledger := service.NewLedger(pointsRepo, &cfg.Points)
	reconciler := service.NewReconciler(resolver, movieRepo, reviewRepo, supportRepo,
		likeRepo, notificationRepo, checkinRepo, ledger, decoder, &cfg.Points)

	manager := blockchain.NewManager(&cfg.Chain, decoder, checkpointRepo, reconciler,
		func() (blockchain.LogSource, error) {
			return blockchain.NewClient(&cfg.Chain, decoder)
		})

	if cfg.Chain.Enabled {
		if err := manager.Start(); err != nil {
			logger.Error("Listener failed to start, toggle via admin API:", err)
		}
	}
	defer manager.Stop()

	replayScheduler := scheduler.NewReplayScheduler(manager, cfg.Chain.ReplayCron)
	if err := replayScheduler.Start(); err != nil {
		logger.Fatal("Failed to start replay scheduler:", err)
	}
	defer replayScheduler.Stop()

	router := setupHTTPRouter(manager, ledger, userRepo, pointsRepo, notificationRepo)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDatabaseConnect, "failed to open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func setupHTTPRouter(
	manager *blockchain.Manager,
	ledger *service.Ledger,
	userRepo *repository.UserRepository,
	pointsRepo *repository.PointsRepository,
	notificationRepo *repository.NotificationRepository,
) http.Handler {
	router := http.NewServeMux()

	listenerHandler := handler.NewListenerHandler(manager)
	rewardsHandler := handler.NewRewardsHandler(ledger)
	pointsHandler := handler.NewPointsHandler(userRepo, pointsRepo)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)

	router.HandleFunc("/api/listener/start", listenerHandler.Start)
	router.HandleFunc("/api/listener/stop", listenerHandler.Stop)
	router.HandleFunc("/api/listener/status", listenerHandler.Status)
	router.HandleFunc("/api/checkin", rewardsHandler.Checkin)
	router.HandleFunc("/api/reviews/award", rewardsHandler.ReviewAward)
	router.HandleFunc("/api/tasks/follow", rewardsHandler.FollowClaim)
	router.HandleFunc("/api/invite/accept", rewardsHandler.InviteAccept)
	router.HandleFunc("/api/points/", pointsHandler.GetPoints)
	router.HandleFunc("/api/notifications/read", notificationHandler.MarkRead)
	router.HandleFunc("/api/notifications/", notificationHandler.List)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
