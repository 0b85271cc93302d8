package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/config"
	"github.com/mroshb/ludus_arena/internal/coordination"
	"github.com/mroshb/ludus_arena/internal/database"
	"github.com/mroshb/ludus_arena/internal/handlers"
	"github.com/mroshb/ludus_arena/internal/middleware"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/services"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"github.com/mroshb/ludus_arena/telegram"
)

// lateNotifier is handed to the services before the bot exists, because the
// bot in turn calls back into the acceptance service.
type lateNotifier struct {
	services.MatchNotifier
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	logger.Info("Starting arena matchmaking service...")

	// Validate production security settings
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis is optional; without it locks and log hints stay in-process.
	var (
		locker coordination.ArenaLocker = coordination.NewLocalLocker(cfg.GetArenaLockWait())
		bus    coordination.LogBus      = coordination.NewLocalLogBus()
	)
	if cfg.RedisURL != "" {
		rdb, err := coordination.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", err)
		}
		defer rdb.Close()

		locker = coordination.NewRedisLocker(rdb, cfg.GetArenaLockTTL(), cfg.GetArenaLockWait())
		bus = coordination.NewRedisLogBus(rdb)
		logger.Info("Redis coordination enabled")
	} else {
		logger.Warn("REDIS_URL not set, arena locks are local to this instance")
	}

	clock := clockwork.NewRealClock()
	notifier := &lateNotifier{MatchNotifier: services.NopNotifier()}

	orchestrator := services.NewOrchestrator(db, locker, notifier, clock, cfg.GetAcceptanceWindow())
	queueSvc := services.NewQueueService(db, orchestrator, clock)
	acceptanceSvc := services.NewAcceptanceService(db, orchestrator, notifier, bus, clock, services.AcceptanceOptions{
		RequeueOnDecline: cfg.RequeueOnDecline,
	})
	matchSvc := services.NewMatchService(db)
	streamer := services.NewLogStreamer(db, bus, clock, cfg.GetStreamPollInterval(), cfg.GetStreamPingInterval())
	contacts := repositories.NewContactRepository(db)
	contactSvc := services.NewContactService(db, clock)

	// Telegram is optional; without it owners only learn of matches over HTTP.
	var bot *telegram.Bot
	if cfg.TelegramBotToken != "" {
		api, err := telegram.InitBot(cfg.TelegramBotToken, cfg.AppEnv)
		if err != nil {
			logger.Fatal("Failed to initialize bot", err)
		}
		bot = telegram.NewBot(api, contacts, acceptanceSvc, contactSvc, cfg.GetAcceptanceWindow(), 4)
		notifier.MatchNotifier = bot

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		go bot.Listen(ctx, api.GetUpdatesChan(u))
	}

	sweeper, err := services.NewSweeper(acceptanceSvc, cfg.GetSweepInterval(), cfg.GetReconcileInterval(), cfg.GetReconcileGrace())
	if err != nil {
		logger.Fatal("Failed to create sweeper", err)
	}
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start sweeper", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerOwner, cfg.RateLimitPerOwner*4, time.Minute, clock)

	app := fiber.New(fiber.Config{
		AppName:      "ludus-arena",
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Cache-Control",
	}))

	h := handlers.NewArenaHandler(ctx, queueSvc, acceptanceSvc, matchSvc, streamer, contactSvc)
	handlers.SetupArenaRoutes(app, h, cfg.JWTSecret, limiter)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Error("Server error", "error", err)
		}
	}()

	logger.Info("Service started successfully", "env", cfg.AppEnv, "port", cfg.AppPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
	// Cancelling ctx ends open log streams and the bot's update loop.
	stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := sweeper.Stop(); err != nil {
		logger.Warn("Sweeper shutdown incomplete", "error", err)
	}
	limiter.Stop()
	if bot != nil {
		bot.Stop()
	}
	logger.Info("Service stopped")
}
