package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"applypilot/config"
	"applypilot/controllers"
	"applypilot/database"
	"applypilot/middleware"
	"applypilot/models"
	"applypilot/services"
	"applypilot/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := utils.NewLogger()
	slog.SetDefault(logger)

	cfg := config.GetAppConfig()

	db, err := database.Connect(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.DBName, cfg.Database.SSLMode,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.CreateTables(db); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	accounts := models.NewAccountModel(db)
	records := models.NewApplicationRecordModel(db)
	discovered := models.NewDiscoveredJobModel(db)
	activities := models.NewActivityLogModel(db)

	launcher := services.NewExecLauncher(cfg.Supervisor.WorkerBinary)
	supervisor := services.NewSessionSupervisor(cfg.Supervisor, launcher, accounts, accounts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go supervisor.Monitor(ctx)

	jwtService := services.NewJWTService(cfg.JWTSecret)
	sessionCtrl := controllers.NewSessionController(supervisor)
	historyCtrl := controllers.NewHistoryController(records, discovered, activities)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(cors.Default())

	limiters := middleware.CreateRateLimiters()
	caches := middleware.CreateCaches()
	auth := middleware.Auth(jwtService)

	router.Use(middleware.MaxRequestSize(1 << 20))
	router.Use(middleware.RequireJSON())

	api := router.Group("/api")
	{
		sessions := api.Group("/sessions", auth)
		{
			sessions.POST("/:userID/start", limiters["control"].Limit(), sessionCtrl.StartSession)
			sessions.POST("/:userID/stop", limiters["control"].Limit(), sessionCtrl.StopSession)
			sessions.GET("/:userID/status", limiters["general"].Limit(), sessionCtrl.SessionStatus)
		}
		users := api.Group("/users", auth, limiters["general"].Limit())
		{
			users.GET("/:userID/applications", caches["history"].Cache(), historyCtrl.GetApplications)
			users.GET("/:userID/discovered-jobs", caches["history"].Cache(), historyCtrl.GetDiscoveredJobs)
			users.GET("/:userID/sessions/:sessionID/activity", historyCtrl.GetSessionActivity)
		}
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Supervisor listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down, stopping all sessions")
	supervisor.StopAll("supervisor shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Supervisor.StopGracePeriod+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.Any("error", err))
	}
	os.Exit(0)
}
