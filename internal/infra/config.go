package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverS3         = "s3"
	StorageDriverFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	QueueName   string

	StorageDriver         string
	StorageEndpoint       string
	StoragePublicEndpoint string
	StorageAccessKey      string
	StorageSecretKey      string
	StorageRegion         string
	StorageUseSSL         bool
	StoragePath           string
	StorageBaseURL        string
	BucketUploads         string
	BucketResults         string

	OpenRouterAPIKey   string
	OpenRouterBaseURL  string
	OpenRouterReferer  string
	OpenRouterTitle    string
	AnalysisModel      string
	GenerationModel    string
	TextTimeout        time.Duration
	ImageTimeout       time.Duration
	WorkerConcurrency  int
	WorkerShutdown     time.Duration
	StaleJobAfter      time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// A .env file in the working directory is read first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		QueueName:   getEnv("QUEUE_NAME", "staging:jobs"),

		StorageDriver:         strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverS3)),
		StorageEndpoint:       getEnv("STORAGE_ENDPOINT", "minio:9000"),
		StoragePublicEndpoint: getEnv("STORAGE_PUBLIC_ENDPOINT", "localhost:9000"),
		StorageAccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
		StorageRegion:         getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:         getEnvBool("STORAGE_USE_SSL", false),
		StoragePath:           getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:        strings.TrimRight(getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)), "/"),
		BucketUploads:         getEnv("BUCKET_UPLOADS", "uploads"),
		BucketResults:         getEnv("BUCKET_RESULTS", "results"),

		OpenRouterAPIKey:   strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterReferer:  getEnv("OPENROUTER_REFERER", "https://stage-master.app"),
		OpenRouterTitle:    getEnv("OPENROUTER_TITLE", "Stage Master"),
		AnalysisModel:      getEnv("ANALYSIS_MODEL", "openrouter/google/gemini-2.5-flash"),
		GenerationModel:    getEnv("GENERATION_MODEL", "google/gemini-2.5-flash-image-preview"),
		TextTimeout:        time.Second * time.Duration(getEnvInt("OPENROUTER_TEXT_TIMEOUT_SECONDS", 120)),
		ImageTimeout:       time.Second * time.Duration(getEnvInt("OPENROUTER_IMAGE_TIMEOUT_SECONDS", 60)),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerShutdown:     time.Second * time.Duration(getEnvInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", 90)),
		StaleJobAfter:      time.Second * time.Duration(getEnvInt("STALE_JOB_SECONDS", 30)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageDriver {
	case StorageDriverS3, StorageDriverFilesystem:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER %q is not supported", cfg.StorageDriver)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

// StorageScheme returns the URL scheme used to reach the object storage endpoints.
func (c *Config) StorageScheme() string {
	if c.StorageUseSSL {
		return "https"
	}
	return "http"
}

// StoragePrefixes lists the URL prefixes under which stored objects are addressed.
// Source image URLs that start with one of them are read straight from storage.
func (c *Config) StoragePrefixes() []string {
	if c.StorageDriver == StorageDriverFilesystem {
		return []string{c.StorageBaseURL + "/"}
	}
	scheme := c.StorageScheme()
	prefixes := []string{fmt.Sprintf("%s://%s/", scheme, c.StorageEndpoint)}
	if c.StoragePublicEndpoint != "" && c.StoragePublicEndpoint != c.StorageEndpoint {
		prefixes = append(prefixes, fmt.Sprintf("%s://%s/", scheme, c.StoragePublicEndpoint))
	}
	return prefixes
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
