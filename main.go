package main

import (
	"fmt"
	"strconv"
	"time"

	"snapshot-server/cleanup"
	"snapshot-server/config"
	"snapshot-server/database"
	"snapshot-server/handlers"
	"snapshot-server/rabbitmq"
	"snapshot-server/ratelimit"
	"snapshot-server/shortcode"
	"snapshot-server/utils"
	"snapshot-server/version"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	EndPointHealth     = "/health"
	EndPointUpload     = "/upload"
	EndPointLog        = "/log/:code"
	EndPointLogByQuery = "/log"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Info("Starting the snapshot server...")

	// Connect to database
	db, err := utils.DBConnect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize database schema
	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Initialize services
	logsService := database.NewLogsService(db)
	codes := shortcode.New(cfg.CodePrefix)
	limiter := ratelimit.New(ratelimit.Options{
		Capacity:     cfg.RateLimitCapacity,
		RefillAmount: cfg.RateLimitRefillAmount,
		RefillPeriod: time.Duration(cfg.RateLimitRefillMinutes) * time.Minute,
	})

	// Optional RabbitMQ publisher for downstream analysis
	var publisher handlers.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Warnf("RabbitMQ publisher not available, continuing without: %v", err)
		} else {
			defer amqpPublisher.Close()
			publisher = amqpPublisher
		}
	}

	// Initialize handlers
	logHandlers := handlers.NewHandlers(logsService, codes, limiter, publisher)

	// Start retention cleanup loop
	cleaner := cleanup.NewCleaner(logsService,
		time.Duration(cfg.RetentionHours)*time.Hour,
		time.Duration(cfg.CleanupIntervalMinutes)*time.Minute)
	cleaner.Start()
	defer cleaner.Stop()

	// Setup router
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, version.Get("snapshot-server"))
	})

	// Register health endpoint (outside API group)
	router.GET(EndPointHealth, logHandlers.HealthCheck)

	// Create API v1 router group
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST(EndPointUpload, logHandlers.UploadLog)
		apiV1.GET(EndPointLog, logHandlers.GetLog)
		apiV1.GET(EndPointLogByQuery, logHandlers.GetLogByQuery)
	}

	// Get server port from config
	serverPort, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Fatalf("Invalid PORT configuration: %v", err)
	}

	// Start server
	log.Infof("Snapshot server starting on port %d", serverPort)
	if err := router.Run(fmt.Sprintf(":%d", serverPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
