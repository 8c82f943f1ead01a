package common

import (
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Extraction ExtractionConfig
	PDF        PDFConfig
	Usage      UsageConfig
	Logging    LoggingConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr     string
	HTTPAddr     string
	QueueSize    int
	BatchTimeout time.Duration
	// StatusRetention bounds how long finished batches stay in memory.
	StatusRetention time.Duration
}

// ExtractionConfig holds batch limits and the optional rules override file.
type ExtractionConfig struct {
	RulesFile   string
	MaxFiles    int
	MaxFileSize string
	FileTimeout time.Duration
}

// PDFConfig holds PDF rendering configuration
type PDFConfig struct {
	Pdftotext string
	MaxPages  int
}

// UsageConfig holds usage-log endpoint configuration
type UsageConfig struct {
	URL         string
	Retries     int
	RetryDelay  time.Duration
	Timeout     time.Duration
	ToolVersion string
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from a .env file (when present) and
// environment variables. Variables already set in the environment win.
func LoadConfig() *Config {
	_ = godotenv.Load() // .env is optional
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:        getEnv("HTTP_ADDR", ":8081"),
			QueueSize:       getEnvAsInt("QUEUE_SIZE", 16),
			BatchTimeout:    getEnvAsDuration("BATCH_TIMEOUT", 30*time.Minute),
			StatusRetention: getEnvAsDuration("STATUS_RETENTION", time.Hour),
		},
		Extraction: ExtractionConfig{
			RulesFile:   getEnv("RULES_FILE", ""),
			MaxFiles:    getEnvAsInt("MAX_FILES", constants.DefaultMaxFiles),
			MaxFileSize: getEnv("MAX_FILE_SIZE", constants.DefaultMaxFileSize),
			FileTimeout: getEnvAsDuration("FILE_TIMEOUT", constants.DefaultFileTimeoutSec*time.Second),
		},
		PDF: PDFConfig{
			Pdftotext: getEnv("PDFTOTEXT", ""),
			MaxPages:  getEnvAsInt("PDF_MAX_PAGES", 0),
		},
		Usage: UsageConfig{
			URL:         getEnv("USAGE_LOG_URL", ""),
			Retries:     getEnvAsInt("USAGE_LOG_RETRIES", 3),
			RetryDelay:  getEnvAsDuration("USAGE_LOG_RETRY_DELAY", time.Second),
			Timeout:     getEnvAsDuration("USAGE_LOG_TIMEOUT", 10*time.Second),
			ToolVersion: getEnv("TOOL_VERSION", constants.ToolVersion),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// MaxFileSizeBytes parses the human readable size limit (e.g. "10MiB").
func (c ExtractionConfig) MaxFileSizeBytes() (int64, error) {
	return units.RAMInBytes(c.MaxFileSize)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	return c.Extraction.Validate()
}

// Validate checks batch limits.
func (c ExtractionConfig) Validate() error {
	if c.MaxFiles <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILES must be positive", ErrInvalidInput)
	}
	size, err := c.MaxFileSizeBytes()
	if err != nil {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_SIZE is not a valid size", err)
	}
	if size <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}
