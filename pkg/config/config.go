package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all runtime configuration for the Knowledge Nest backend.
type Config struct {
	Environment string
	Port        string

	// Database
	PostgresDSN string
	UseMemoryDB bool

	// JWT
	JWTSecret string

	// Operator API key for org verification / membership administration
	AdminAPIKey string

	// Blob store (S3 or compatible)
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3KeyPrefix       string
	UploadURLTTL      time.Duration
	DownloadURLTTL    time.Duration

	// Upload limits
	MaxUploadBytes int64

	// CORS
	AllowedOrigins []string

	Debug bool
}

// LoadConfig loads configuration from the environment, with .env file
// fallbacks for local development.
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		Port:        getEnvWithDefault("PORT", "3000"),
		JWTSecret:   getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		AdminAPIKey: strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
		Debug:       getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.UseMemoryDB = getEnvBool("USE_MEMORY_DB", config.PostgresDSN == "")

	// Blob store
	config.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	config.S3Region = getEnvWithDefault("S3_REGION", "us-east-1")
	config.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	config.S3AccessKeyID = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID"))
	config.S3SecretAccessKey = strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY"))
	config.S3KeyPrefix = getEnvWithDefault("S3_KEY_PREFIX", "knowledge-nest/")
	config.UploadURLTTL = getEnvDuration("UPLOAD_URL_TTL", 15*time.Minute)
	config.DownloadURLTTL = getEnvDuration("DOWNLOAD_URL_TTL", time.Hour)

	config.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", 50*1024*1024)

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	if config.Environment == "production" {
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config. On serverless platforms
// it initializes once per cold start and reuses it across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate checks the configuration for misuse that should stop startup.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.Environment == "production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	if !c.UseMemoryDB && c.PostgresDSN == "" {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or USE_MEMORY_DB=true")
	}

	if c.Environment == "production" {
		if c.UseMemoryDB {
			return fmt.Errorf("in-memory database is not allowed in production; set POSTGRES_DSN")
		}
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set in production")
		}
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return nil
}

// UseMemoryBlobs reports whether the in-memory blob store should be used
// instead of S3. Only allowed outside production.
func (c *Config) UseMemoryBlobs() bool {
	return c.S3Bucket == ""
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// helpers

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile loads KEY=VALUE pairs from a .env style file into the process
// environment. Existing variables win.
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return
	}

	file, err := os.Open(filename)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
