package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	Port          string
	AccountEmail  string
	APIToken      string
	IMAPServer    string
	IMAPUsername  string
	IMAPPassword  string
	IMAPUseTLS    bool
	SMTPServer    string
	SMTPUsername  string
	SMTPPassword  string
	GeminiAPIKey  string
	GeminiModel   string
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	WebhookSecret string
	DBHost        string
	DBPort        string
	DBUsername    string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	Timezone      string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILPILOT_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:   env,
		Port:          getEnvOrDefault("PORT", "8080"),
		AccountEmail:  os.Getenv("MAILPILOT_ACCOUNT_EMAIL"),
		APIToken:      os.Getenv("MAILPILOT_API_TOKEN"),
		IMAPServer:    os.Getenv("MAILPILOT_IMAP_SERVER"),
		IMAPUsername:  os.Getenv("MAILPILOT_IMAP_USER"),
		IMAPPassword:  os.Getenv("MAILPILOT_IMAP_PASSWORD"),
		IMAPUseTLS:    getEnvOrDefault("MAILPILOT_IMAP_TLS", "true") == "true",
		SMTPServer:    os.Getenv("MAILPILOT_SMTP_SERVER"),
		SMTPUsername:  os.Getenv("MAILPILOT_SMTP_USER"),
		SMTPPassword:  os.Getenv("MAILPILOT_SMTP_PASSWORD"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnvOrDefault("MAILPILOT_GEMINI_MODEL", "gemini-2.5-flash"),
		RedisAddr:     getEnvOrDefault("MAILPILOT_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("MAILPILOT_REDIS_PASSWORD"),
		CacheTTL:      getEnvSeconds("MAILPILOT_CACHE_TTL_SECONDS", 1800),
		WebhookSecret: os.Getenv("MAILPILOT_WEBHOOK_SECRET"),
		DBHost:        getEnvOrDefault("MAILPILOT_DB_HOST", "localhost"),
		DBPort:        getEnvOrDefault("MAILPILOT_DB_PORT", "5432"),
		DBUsername:    getEnvOrDefault("MAILPILOT_DB_USER", "mailpilot"),
		DBPassword:    os.Getenv("MAILPILOT_DB_PASSWORD"),
		DBName:        getEnvOrDefault("MAILPILOT_DB_NAME", "mailpilot"),
		DBSSLMode:     getEnvOrDefault("MAILPILOT_DB_SSLMODE", "disable"),
		Timezone:      getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings the server cannot start without. The Gemini
// API key is deliberately not required here: the server starts without it and
// classification fails at trigger time instead.
func (c *Config) Validate() error {
	if c.IMAPServer == "" {
		return fmt.Errorf("MAILPILOT_IMAP_SERVER is required")
	}

	if c.IMAPUsername == "" {
		return fmt.Errorf("MAILPILOT_IMAP_USER is required")
	}

	if c.IMAPPassword == "" {
		return fmt.Errorf("MAILPILOT_IMAP_PASSWORD is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("MAILPILOT_DB_PASSWORD is required")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultSeconds) * time.Second
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		fmt.Printf("Warning: invalid %s value %q, using default\n", key, value)
		return time.Duration(defaultSeconds) * time.Second
	}

	return time.Duration(seconds) * time.Second
}
