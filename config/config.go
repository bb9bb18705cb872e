package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the snapshot server
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Rate limiting configuration (per submitter, shared settings)
	RateLimitCapacity      int
	RateLimitRefillAmount  int
	RateLimitRefillMinutes int

	// Debug code configuration
	CodePrefix string

	// Retention configuration
	RetentionHours         int
	CleanupIntervalMinutes int

	// RabbitMQ configuration (publisher disabled when URL is empty)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "snapshot"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Rate limiting defaults
		RateLimitCapacity:      getIntEnv("RATE_LIMIT_CAPACITY", 3),
		RateLimitRefillAmount:  getIntEnv("RATE_LIMIT_REFILL_AMOUNT", 3),
		RateLimitRefillMinutes: getIntEnv("RATE_LIMIT_REFILL_MINUTES", 10),

		// Debug code defaults
		CodePrefix: getEnv("CODE_PREFIX", "DBG-"),

		// Retention defaults
		RetentionHours:         getIntEnv("RETENTION_HOURS", 24),
		CleanupIntervalMinutes: getIntEnv("CLEANUP_INTERVAL_MINUTES", 60),

		// RabbitMQ defaults
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "snapshot-exchange"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "snapshot.uploaded"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
