package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"applypilot/config"
	"applypilot/database"
	"applypilot/models"
	"applypilot/services"
	"applypilot/utils"
)

// Exit codes read by the supervisor.
const (
	exitCompleted = 0
	exitFailed    = 1
	exitAuth      = 2
	exitStopped   = 3
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// stdout carries the event stream; all logging goes to stderr.
	logger := utils.NewWorkerLogger()
	slog.SetDefault(logger)
	log.SetOutput(os.Stderr)

	var spec models.WorkerSpec
	if err := json.NewDecoder(os.Stdin).Decode(&spec); err != nil {
		log.Fatalf("Failed to read worker spec from stdin: %v", err)
	}
	if spec.UserID == 0 || spec.SessionID == "" {
		log.Fatalf("Worker spec is missing user or session id")
	}

	cfg := config.GetAppConfig()
	db, err := database.Connect(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.DBName, cfg.Database.SSLMode,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var stopFlag atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal asks for a cooperative stop: the current application is
	// finished, then the traversal winds down. A second signal cancels
	// outright.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		logger.Info("Stop requested, finishing current application")
		stopFlag.Store(true)
		<-sigCh
		logger.Warn("Second stop signal, cancelling immediately")
		cancel()
	}()

	s3svc, err := services.NewS3Service()
	if err != nil {
		logger.Warn("File store unavailable", slog.Any("error", err))
		s3svc = nil
	}
	telegram, err := services.NewTelegramReporter(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		telegram = nil
	}

	worker := services.NewWorkerService(spec, services.WorkerDeps{
		Logger:      logger,
		Events:      models.NewEventWriter(os.Stdout),
		Credentials: models.NewAccountModel(db),
		Recorder:    models.NewApplicationRecordModel(db),
		Discovered:  models.NewDiscoveredJobModel(db),
		Audit:       models.NewUnresolvedQuestionModel(db),
		Activity:    models.NewActivityLogModel(db),
		S3:          s3svc,
		Gemini:      services.NewGeminiClient(cfg.GeminiAPIKey),
		Telegram:    telegram,
		Classifier:  services.NewEnglishClassifier(),
		StopFlag:    &stopFlag,
	})

	err = worker.Run(ctx)
	switch {
	case err == nil:
		os.Exit(exitCompleted)
	case errors.Is(err, services.ErrStopRequested), errors.Is(err, context.Canceled):
		os.Exit(exitStopped)
	default:
		var authErr *services.AuthError
		if errors.As(err, &authErr) {
			os.Exit(exitAuth)
		}
		logger.Error("Worker failed", slog.Any("error", err))
		os.Exit(exitFailed)
	}
}
