package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"digistore/internal/handlers"
	"digistore/internal/models"
	"digistore/internal/repositories"
	"digistore/internal/services"
	"digistore/pkg/cloudinary"
	"digistore/pkg/rabbitmq"
	"digistore/pkg/razorpay"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_DSN", "")
	viper.SetDefault("SQLITE_PATH", "digistore.db")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("RAZORPAY_KEY_ID", "")
	viper.SetDefault("RAZORPAY_KEY_SECRET", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	viper.SetDefault("CLOUDINARY_API_KEY", "")
	viper.SetDefault("CLOUDINARY_API_SECRET", "")
	viper.SetDefault("ADMIN_EMAIL", "admin@digitalstore.com")
	viper.SetDefault("ADMIN_PASSWORD", "admin123")
	viper.AutomaticEnv()

	// --- Database ---
	db, err := openDatabase()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.Entitlement{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	var productRepo repositories.ProductRepository = repositories.NewGORMProductRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	entitlementRepo := repositories.NewGORMEntitlementRepository(db)

	if addr := viper.GetString("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		productRepo = repositories.NewCachedProductRepository(productRepo, client, 5*time.Minute)
		log.Printf("Product cache enabled via Redis at %s", addr)
	}

	// --- Collaborators ---
	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:     viper.GetString("RAZORPAY_KEY_ID"),
		KeySecret: viper.GetString("RAZORPAY_KEY_SECRET"),
	})

	var blobs *cloudinary.Client
	if cloudName := viper.GetString("CLOUDINARY_CLOUD_NAME"); cloudName != "" {
		blobs = cloudinary.NewClient(cloudinary.Config{
			CloudName: cloudName,
			APIKey:    viper.GetString("CLOUDINARY_API_KEY"),
			APISecret: viper.GetString("CLOUDINARY_API_SECRET"),
		})
	} else {
		log.Println("Blob host is not configured; downloads redirect to stored links")
	}

	var mqClient *rabbitmq.Client
	if mqURL := viper.GetString("RABBITMQ_URL"); mqURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: mqURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
	} else {
		log.Println("RabbitMQ is not configured; payment events will not be published")
	}

	// --- Services ---
	authService := services.NewAuthService(userRepo, entitlementRepo, viper.GetString("JWT_SECRET"))
	catalogService := services.NewCatalogService(productRepo, entitlementRepo, userRepo)
	cartService := services.NewCartService(cartRepo, productRepo)

	var events services.EventPublisher
	if mqClient != nil {
		events = mqClient
	}
	orderService := services.NewOrderService(
		orderRepo, productRepo, cartRepo, entitlementRepo, userRepo,
		authService, gateway, events,
	)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, catalogService)
	productHandler := handlers.NewProductHandler(catalogService, authService, blobs)
	cartHandler := handlers.NewCartHandler(cartService, authService)
	orderHandler := handlers.NewOrderHandler(orderService, authService)
	adminHandler := handlers.NewAdminHandler(catalogService, orderService, authService, blobs)

	// --- Fiber App ---
	app := fiber.New()
	app.Use(logger.New())

	api := app.Group("/api")
	authHandler.RegisterRoutes(api)
	productHandler.RegisterRoutes(api)
	cartHandler.RegisterRoutes(api)
	orderHandler.RegisterRoutes(api)
	adminHandler.RegisterRoutes(api)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Payment Event Consumer ---
	// Replays entitlement grants from order.paid events. The grant is
	// idempotent, so reprocessing after a crash between the order-status
	// write and the ledger write converges to the correct ledger state.
	if mqClient != nil {
		messageHandler := func(msg amqp.Delivery) error {
			if msg.Type != "order.paid" {
				return nil
			}
			var event services.OrderEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				log.Printf("Dropping malformed payment event %d: %v", msg.DeliveryTag, err)
				return nil
			}
			if err := entitlementRepo.GrantAll(event.UserID, event.ProductIDs); err != nil {
				return err
			}
			log.Printf("Replayed entitlement grant for order %s", event.OrderID)
			return nil
		}
		if consumerErr := mqClient.Consume(messageHandler); consumerErr != nil {
			log.Printf("Failed to start payment event consumer: %v", consumerErr)
		}
	}

	// --- Start HTTP Server ---
	appPort := viper.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// openDatabase connects to Postgres when DATABASE_DSN is set and falls back
// to a local SQLite file for development. TranslateError turns driver
// unique-constraint violations into gorm.ErrDuplicatedKey, which the cart
// and user repositories rely on.
func openDatabase() (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if dsn := viper.GetString("DATABASE_DSN"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	log.Println("DATABASE_DSN not set, using local SQLite database")
	return gorm.Open(sqlite.Open(viper.GetString("SQLITE_PATH")), cfg)
}
