package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ecostore/internal/config"
	"ecostore/internal/events"
	"ecostore/internal/handlers"
	"ecostore/internal/models"
	"ecostore/internal/repositories"
	"ecostore/internal/services"
	"ecostore/pkg/rabbitmq"
	"ecostore/pkg/razorpay"
)

// App is the order backend: the Fiber server plus the resources it owns.
type App struct {
	Fiber       *fiber.App
	Broadcaster *events.Broadcaster

	mqClient *rabbitmq.Client
	sqlClose func() error
}

func main() {
	// --- Configuration ---
	cfg, err := config.LoadServer(config.New())
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.Port)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.Port); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// NewApp wires repositories, services and handlers for cfg.
func NewApp(cfg config.Server) (*App, error) {
	// --- Database ---
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	app := &App{
		Broadcaster: events.NewBroadcaster(cfg.StreamBuffer),
		sqlClose:    sqlDB.Close,
	}

	// --- Events ---
	// With RabbitMQ configured, services publish to the queue and the
	// consumer feeds the live stream; otherwise they publish to it directly.
	var publisher events.Publisher = app.Broadcaster
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue})
		if err != nil {
			return nil, app.abort(fmt.Errorf("failed to initialize RabbitMQ client: %w", err))
		}
		app.mqClient = mqClient
		publisher = mqClient

		log.Println("Starting RabbitMQ consumer for order events...")
		if err := mqClient.ConsumeOrderEvents(app.Broadcaster.PublishOrderEvent); err != nil {
			return nil, app.abort(fmt.Errorf("failed to start RabbitMQ consumer: %w", err))
		}
	}

	gateway, err := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		Sandbox:   cfg.RazorpaySandbox,
	})
	if err != nil {
		return nil, app.abort(err)
	}

	// --- Repositories and services ---
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	orderService := services.NewOrderService(orderRepo, publisher)
	paymentService := services.NewPaymentService(orderRepo, gateway, publisher)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)

	// --- Fiber ---
	app.Fiber = fiber.New(fiber.Config{AppName: "ecostore"})
	app.Fiber.Use(logger.New())

	api := app.Fiber.Group("/api")
	handlers.NewAuthHandler(authService, cfg.AdminRegistrationKey).RegisterRoutes(api)
	handlers.NewStreamHandler(app.Broadcaster, authService, cfg.StreamHeartbeat).RegisterRoutes(api)
	handlers.NewPaymentHandler(paymentService).RegisterRoutes(api)
	handlers.NewOrderHandler(orderService, authService).RegisterRoutes(api)

	// --- Health Check Endpoint ---
	app.Fiber.Get("/health", func(c *fiber.Ctx) error {
		broker := "disabled"
		if app.mqClient != nil {
			broker = "connected"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":      "healthy",
			"time":        time.Now().Format(time.RFC3339),
			"rabbitmq":    broker,
			"subscribers": app.Broadcaster.Subscribers(),
		})
	})

	return app, nil
}

// Close stops the server and releases the broker and database connections.
func (a *App) Close() error {
	var errs []error
	if a.Fiber != nil {
		errs = append(errs, a.Fiber.Shutdown())
	}
	if a.mqClient != nil {
		errs = append(errs, a.mqClient.Close())
	}
	if a.sqlClose != nil {
		errs = append(errs, a.sqlClose())
	}
	return errors.Join(errs...)
}

// abort releases whatever NewApp opened before failing with err.
func (a *App) abort(err error) error {
	if cerr := a.Close(); cerr != nil {
		log.Printf("Error releasing resources after failed start: %v", cerr)
	}
	return err
}

func openDatabase(cfg config.Server) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case config.DriverMemory:
		dialector = sqlite.Open("file::memory:?cache=shared")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}
