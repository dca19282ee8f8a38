package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/contentd/moderation/internal/application/dispatcher"
	"github.com/contentd/moderation/internal/application/port"
	"github.com/contentd/moderation/internal/application/service"
	"github.com/contentd/moderation/internal/application/tasktype"
	"github.com/contentd/moderation/internal/config"
	"github.com/contentd/moderation/internal/infrastructure/external/smtp"
	"github.com/contentd/moderation/internal/infrastructure/persistence/repository"
	"github.com/contentd/moderation/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/contentd/moderation/internal/interfaces/http"
	"github.com/contentd/moderation/internal/notification"
	"github.com/contentd/moderation/internal/report"
	"github.com/contentd/moderation/pkg/database"
	"github.com/contentd/moderation/pkg/utils"
)

func main() {
	// Load .env if present, real environment wins
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting moderation workflow engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	kv := utils.NewKVLogger(logger)
	txManager := sqlite.NewDB(db.DB, logger)

	// Repositories
	workflowRepo := repository.NewWorkflowRepository(db.DB, logger)
	taskRepo := repository.NewTaskRepository(db.DB, logger)
	stateRepo := repository.NewWorkflowStateRepository(db.DB, logger)
	taskStateRepo := repository.NewTaskStateRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	pageRepo := repository.NewPageRepository(db.DB, logger)

	// Task type registry with the built-in variants
	registry := tasktype.NewRegistry()
	tasktype.RegisterDefaults(registry, userRepo)

	// Events and notifications
	events := dispatcher.New(kv)
	defer events.Close()

	var mail port.MailSender
	if cfg.Mail.Enabled {
		mail = smtp.NewSender(smtp.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			From:     cfg.Mail.From,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}, logger)
	} else {
		mail = smtp.NewLogSender(logger)
	}

	notifier := notification.NewNotifier(registry, userRepo, mail,
		notification.Config{IncludeSuperusers: cfg.Notifications.IncludeSuperusers}, kv)
	notifier.Register(events)

	// Services
	engine := service.NewWorkflowService(
		workflowRepo, taskRepo, stateRepo, taskStateRepo,
		pageRepo, userRepo, registry, txManager, events,
		cfg.Notifications.FinishAction, kv,
	)
	admin := service.NewAdminService(
		workflowRepo, taskRepo, stateRepo, taskStateRepo,
		registry, txManager, engine, kv,
	)

	exporter := report.NewExporter(workflowRepo, taskRepo, stateRepo, taskStateRepo, pageRepo, logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, engine, admin, pageRepo, userRepo, exporter, kv)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
