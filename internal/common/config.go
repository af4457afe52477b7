package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Blob       BlobConfig
	Store      StoreConfig
	Pipeline   PipelineConfig
	Validation ValidationConfig
	Taxonomy   TaxonomyConfig
	Log        LogConfig
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
	GRPCAddr string
}

// BlobConfig selects and configures the document store.
type BlobConfig struct {
	Backend        string // local | memory | gcs | s3
	Root           string
	Bucket         string
	Prefix         string
	Endpoint       string
	Region         string
	MaxObjectBytes int64
	Timeout        time.Duration
}

// StoreConfig selects where statement records live.
type StoreConfig struct {
	Backend          string // sql | firestore | memory
	FirestoreProject string
	FirestoreRecords string
}

// PipelineConfig holds orchestrator tuning.
type PipelineConfig struct {
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	CacheTTL        time.Duration
	RunTimeout      time.Duration
	Workers         int
	QueueSize       int
	DefaultCurrency string
}

// ValidationConfig holds identity tolerances and confidence penalties.
type ValidationConfig struct {
	TolerancePct   float64
	ToleranceUnits int64
	ErrorPenalty   float64
	WarningPenalty float64
}

// TaxonomyConfig points at an optional alias-table override.
type TaxonomyConfig struct {
	Path string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json | zap
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Blob: BlobConfig{
			Backend:        getEnv("BLOB_BACKEND", "local"),
			Root:           getEnv("BLOB_ROOT", "./data/blobs"),
			Bucket:         getEnv("BLOB_BUCKET", ""),
			Prefix:         getEnv("BLOB_PREFIX", ""),
			Endpoint:       getEnv("BLOB_ENDPOINT", ""),
			Region:         getEnv("BLOB_REGION", "us-east-1"),
			MaxObjectBytes: getEnvAsInt64("BLOB_MAX_OBJECT_BYTES", 20<<20),
			Timeout:        getEnvAsDuration("BLOB_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			Backend:          getEnv("RECORD_STORE", "sql"),
			FirestoreProject: getEnv("FIRESTORE_PROJECT", ""),
			FirestoreRecords: getEnv("FIRESTORE_COLLECTION", "statement_records"),
		},
		Pipeline: PipelineConfig{
			RetryAttempts:   getEnvAsInt("PIPELINE_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:  getEnvAsDuration("PIPELINE_RETRY_BASE_DELAY", 200*time.Millisecond),
			RetryMaxDelay:   getEnvAsDuration("PIPELINE_RETRY_MAX_DELAY", 5*time.Second),
			CacheTTL:        getEnvAsDuration("PIPELINE_CACHE_TTL", 24*time.Hour),
			RunTimeout:      getEnvAsDuration("PIPELINE_RUN_TIMEOUT", 3*time.Minute),
			Workers:         getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:       getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		},
		Validation: ValidationConfig{
			TolerancePct:   getEnvAsFloat64("VALIDATION_TOLERANCE_PCT", 0.005),
			ToleranceUnits: getEnvAsInt64("VALIDATION_TOLERANCE_UNITS", 1),
			ErrorPenalty:   getEnvAsFloat64("VALIDATION_ERROR_PENALTY", 0.3),
			WarningPenalty: getEnvAsFloat64("VALIDATION_WARNING_PENALTY", 0.1),
		},
		Taxonomy: TaxonomyConfig{
			Path: getEnv("TAXONOMY_PATH", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
	v := NewValidator()
	v.Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "sqlite"))
	if c.Store.Backend == "sql" {
		v.Field("DB_URL", c.Database.DSN, Required)
	}
	v.Field("GRPC_ADDR", c.Server.GRPCAddr, Required)
	v.Field("BLOB_BACKEND", c.Blob.Backend, OneOf("local", "memory", "gcs", "s3"))
	switch c.Blob.Backend {
	case "local":
		v.Field("BLOB_ROOT", c.Blob.Root, Required)
	case "gcs", "s3":
		v.Field("BLOB_BUCKET", c.Blob.Bucket, Required)
	}
	v.Field("RECORD_STORE", c.Store.Backend, OneOf("sql", "firestore", "memory"))
	if c.Store.Backend == "firestore" {
		v.Field("FIRESTORE_PROJECT", c.Store.FirestoreProject, Required)
	}
	v.Field("DEFAULT_CURRENCY", c.Pipeline.DefaultCurrency, CurrencyCode)
	v.Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json", "zap"))

	if c.Pipeline.RetryAttempts < 1 {
		return NewAppError(CodeConfig, "PIPELINE_RETRY_ATTEMPTS must be >= 1", ErrInvalidInput)
	}
	if c.Validation.TolerancePct < 0 || c.Validation.TolerancePct >= 1 {
		return NewAppError(CodeConfig, "VALIDATION_TOLERANCE_PCT must be in [0,1)", ErrInvalidInput)
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
