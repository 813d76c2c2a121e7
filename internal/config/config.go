package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the service reads from the environment.
type Config struct {
	Addr            string
	DatabaseDSN     string
	RedisAddr       string
	JWTSecret       string
	JWTAudience     string
	ModelDir        string
	CascadeFile     string
	MatchThreshold  float64
	BlurThreshold   float64
	ResultCacheTTL  time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultMatchThreshold = 0.6
	defaultBlurThreshold  = 100.0
)

// Load reads configuration from the environment, honoring an optional .env
// file in the working directory.
func Load() *Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Addr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=kycml port=5432 sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		ModelDir:        getEnv("FACE_MODEL_DIR", "/opt/models/dlib"),
		CascadeFile:     getEnv("FACE_CASCADE_FILE", "/opt/models/haarcascade_frontalface_default.xml"),
		MatchThreshold:  getEnvFloat("FACE_MATCH_THRESHOLD", defaultMatchThreshold),
		BlurThreshold:   getEnvFloat("LIVENESS_BLUR_THRESHOLD", defaultBlurThreshold),
		ResultCacheTTL:  getEnvDuration("RESULT_CACHE_TTL", 5*time.Minute),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
