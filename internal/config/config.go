package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	MongoURI string
	DBName   string

	JWTSecret string
	TokenTTL  time.Duration

	ClientURL   string
	AdminURL    string
	CORSOrigins []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string

	TaxRate     float64
	DeliveryFee float64

	AdminEmail        string
	AdminPasswordHash string

	AMQPURL string

	PublicDir string
}

// Load reads the process environment, optionally seeded from a .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	clientURL := getEnvOrDefault("CLIENT_URL", "http://localhost:8080")
	adminURL := getEnvOrDefault("ADMIN_URL", "http://localhost:4001")

	cfg := Config{
		Port:     getEnvOrDefault("PORT", "3001"),
		GinMode:  getEnvOrDefault("GIN_MODE", "release"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		MongoURI: getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		DBName:   getEnvOrDefault("DB_NAME", "restaurantDB"),

		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		TokenTTL:  getDurationEnv("TOKEN_TTL", 7, 24*time.Hour),

		ClientURL:   clientURL,
		AdminURL:    adminURL,
		CORSOrigins: getListEnv("CORS_ORIGINS", []string{clientURL, adminURL}),

		GoogleClientID:     getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnvOrDefault("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  getEnvOrDefault("GOOGLE_CALLBACK_URL", "http://localhost:3001/api/auth/google/callback"),

		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		PaymentCurrency:     strings.ToLower(getEnvOrDefault("PAYMENT_CURRENCY", "usd")),

		TaxRate:     getFloatEnv("TAX_RATE", 0.0825),
		DeliveryFee: getFloatEnv("DELIVERY_FEE", 3.99),

		AdminEmail:        strings.ToLower(getEnvOrDefault("ADMIN_EMAIL", "")),
		AdminPasswordHash: getEnvOrDefault("ADMIN_PASSWORD_HASH", ""),

		AMQPURL: getEnvOrDefault("AMQP_URL", ""),

		PublicDir: getEnvOrDefault("PUBLIC_DIR", "./public"),
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET is empty; tokens will be rejected until it is set")
	}
	return cfg
}
