package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/config"
	"github.com/velora-im/velora-chat-api/internal/database"
	"github.com/velora-im/velora-chat-api/internal/handler"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/repository"
	"github.com/velora-im/velora-chat-api/internal/router"
	"github.com/velora-im/velora-chat-api/internal/service"
	"github.com/velora-im/velora-chat-api/pkg/ai"
	cloud "github.com/velora-im/velora-chat-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.RegistrationDocument{}, &models.Channel{}, &models.Message{}, &models.NotificationLog{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudName,
			APIKey:    cfg.CloudAPIKey,
			APISecret: cfg.CloudAPISecret,
			Folder:    cfg.CloudFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	var completer ai.Completer
	if cfg.OpenAIAPIKey != "" {
		openaiCompleter, err := ai.NewOpenAICompleter(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai completer: %v", err)
		}
		completer = openaiCompleter
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	rootCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()

	streamService := service.NewStreamService(messageRepo, redisClient, "velora", natsConn, logger)
	streamService.Start(rootCtx)

	seedService := service.NewSeedService(channelRepo, logger)
	if err := seedService.EnsureChannels(rootCtx, cfg.DefaultChannels); err != nil {
		log.Fatalf("failed to seed channels: %v", err)
	}

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, logger)
	assistantService := service.NewAssistantService(completer, cfg.BotPersona, logger)
	adminService := service.NewAdminService(userRepo, notificationRepo, validate, logger)
	broadcastService := service.NewBroadcastService(channelRepo, streamService, notificationRepo, validate, logger)
	documentService := service.NewDocumentService(userRepo, uploader, logger)
	embedService, err := service.NewEmbedService(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create embed service: %v", err)
	}

	authHandler := handler.NewAuthHandler(authService, documentService, logger)
	chatHandler := handler.NewChatHandler(handler.ChatHandlerConfig{
		Stream:       streamService,
		Assistant:    assistantService,
		Channels:     channelRepo,
		Validator:    validate,
		BotNickname:  cfg.BotNickname,
		HistoryLimit: cfg.HistoryLimit,
		PrefsDir:     cfg.PrefsDir,
	}, logger)
	adminHandler := handler.NewAdminHandler(adminService, broadcastService, logger)
	embedHandler := handler.NewEmbedHandler(embedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowedOrigins})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:   authHandler,
		ChatHandler:   chatHandler,
		AdminHandler:  adminHandler,
		EmbedHandler:  embedHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
