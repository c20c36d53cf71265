package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by MNEME_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("MNEME_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; the process environment still applies.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// ServerPort returns the HTTP port. Defaults to 8080 if not set.
func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

// ServerAddr returns the listen address for the HTTP server.
func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL returns the Postgres connection string.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// StoreBackend returns "postgres" or "memory". When unset it is postgres if
// DATABASE_URL is present, memory otherwise.
func StoreBackend() string {
	switch b := strings.ToLower(os.Getenv("STORE_BACKEND")); b {
	case BackendPostgres, BackendMemory:
		return b
	}
	if DatabaseURL() != "" {
		return BackendPostgres
	}
	return BackendMemory
}

// RunMigrations defaults to true.
func RunMigrations() bool {
	v, err := strconv.ParseBool(os.Getenv("RUN_MIGRATIONS"))
	if err != nil {
		return true
	}
	return v
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// ChunkMinEpisodes is the minimum group size for chunking. Defaults to 3.
func ChunkMinEpisodes() int {
	n, err := strconv.Atoi(os.Getenv("CHUNK_MIN_EPISODES"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// ChunkConfidenceThreshold is the confidence a new pattern needs. Defaults to 0.6.
func ChunkConfidenceThreshold() float64 {
	return unitFloat("CHUNK_CONFIDENCE_THRESHOLD", 0.6)
}

// RuleLearningRate is the default EMA step for new rules. Defaults to 0.1.
func RuleLearningRate() float64 {
	return unitFloat("RULE_LEARNING_RATE", 0.1)
}

// RecallDefaultLimit caps recall when no limit is given. Defaults to 50.
func RecallDefaultLimit() int {
	n, err := strconv.Atoi(os.Getenv("RECALL_DEFAULT_LIMIT"))
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

// BeliefSessionTTL is how long an untouched belief session lives. Defaults to 24h.
func BeliefSessionTTL() time.Duration {
	return duration("BELIEF_SESSION_TTL", 24*time.Hour)
}

// BeliefSweepInterval is how often idle belief sessions are expired. Defaults to 10m.
func BeliefSweepInterval() time.Duration {
	return duration("BELIEF_SWEEP_INTERVAL", 10*time.Minute)
}

func unitFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 || v > 1 {
		return def
	}
	return v
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
