package main

import (
	"log"
	"os"

	_ "github.com/AlphaSudo/HmS2/api/swagger" // swagger docs
	"github.com/AlphaSudo/HmS2/internal/cache"
	"github.com/AlphaSudo/HmS2/internal/database"
	"github.com/AlphaSudo/HmS2/internal/events"
	"github.com/AlphaSudo/HmS2/internal/handler"
	"github.com/AlphaSudo/HmS2/internal/middleware"
	"github.com/AlphaSudo/HmS2/internal/repository"
	"github.com/AlphaSudo/HmS2/internal/service"
	"github.com/AlphaSudo/HmS2/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Hospital Billing API
// @version         1.0
// @description     Invoice and billing service for the hospital management system.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	logger, err := zap.NewProduction()
	if os.Getenv("GIN_MODE") != "release" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "hospital_billing"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// WebSocket hub streams invoice events to staff dashboards
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	publishers := events.Fanout{websocket.NewPublisher(wsHub, logger)}

	// RabbitMQ is optional; without it events only reach connected dashboards
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		conn, err := amqp.Dial(amqpURL)
		if err != nil {
			logger.Warn("RabbitMQ connection failed, continuing without queue publishing", zap.Error(err))
		} else {
			amqpPublisher, err := events.NewAMQPPublisher(conn, logger)
			if err != nil {
				logger.Warn("RabbitMQ channel setup failed, continuing without queue publishing", zap.Error(err))
			} else {
				defer func() { _ = amqpPublisher.Close() }()
				publishers = append(publishers, amqpPublisher)
				logger.Info("Publishing invoice events to RabbitMQ", zap.String("queue", events.InvoiceEventQueue))
			}
		}
	}

	// Redis is optional; without it billing stats hit the database every time
	var statsCache service.StatsCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		statsCache = cache.NewStatsCache(rdb, cache.DefaultStatsTTL, logger)
		logger.Info("Billing stats cache enabled", zap.String("addr", redisAddr), zap.Duration("ttl", cache.DefaultStatsTTL))
	}

	// Repository -> Service -> Handler
	invoiceRepo := repository.NewInvoiceRepository(db)
	txManager := repository.NewTransactionManager(db)
	invoiceService := service.NewInvoiceService(invoiceRepo, txManager, publishers, statsCache, logger)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	invoiceHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("Server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
