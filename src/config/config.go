// backend/src/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string
	DataDir  string

	// Shopify Admin API settings
	ShopifyShop        string
	ShopifyAccessToken string
	ShopifyAPIVersion  string
	ShopifyTimeout     time.Duration

	// Request handling
	MaxBodyBytes        int64
	SubmissionsCacheTTL time.Duration

	// CORS
	AllowedOrigins []string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	// --- Shopify credentials (required, fail fast) ---
	shopifyShop := getRequiredEnv("SHOPIFY_SHOP")
	shopifyAccessToken := getRequiredEnv("SHOPIFY_ACCESS_TOKEN")

	// --- Request body size limit ---
	maxBodyBytesStr := getEnv("MAX_BODY_BYTES", "10485760") // 10MB default
	maxBodyBytes, err := strconv.ParseInt(maxBodyBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_BODY_BYTES format '%s'. Using default 10MB. Error: %v", maxBodyBytesStr, err)
		maxBodyBytes = 10 * 1024 * 1024
	}

	// --- Populate the Global Config Struct ---
	Cfg = &AppConfig{
		// Core
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  getEnv("DATA_DIR", "./data"),

		// Shopify
		ShopifyShop:        shopifyShop,
		ShopifyAccessToken: shopifyAccessToken,
		ShopifyAPIVersion:  getEnv("SHOPIFY_API_VERSION", "2024-01"),
		ShopifyTimeout:     getEnvAsDuration("SHOPIFY_TIMEOUT", 20*time.Second),

		// Request handling
		MaxBodyBytes:        maxBodyBytes,
		SubmissionsCacheTTL: getEnvAsDuration("SUBMISSIONS_CACHE_TTL", 30*time.Second),

		// CORS
		AllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DataDir=%s, Shop=%s, APIVersion=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DataDir, Cfg.ShopifyShop, Cfg.ShopifyAPIVersion)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start.", key)
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getList retrieves and parses a comma-separated environment variable.
func getList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}
