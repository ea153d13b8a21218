package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort      string
	MongoURI      string
	MongoDatabase string
	RedisURI      string
	StoreDriver   string // "mongo" or "memory"
	JWTSecret     string
	LogLevel      string
	CORSOrigins   string

	StartDelay     time.Duration
	TransitionGap  time.Duration
	DefaultBudget  int // seconds, used when a room sets no per-question time
	ScoringMode    string
	AutoAdvance    bool
	MaxProcessed   int
	ResumeTokenTTL time.Duration

	StaleAfter          time.Duration
	StaleSweepInterval  time.Duration
	PlayerGrace         time.Duration
	PlayerPurgeInterval time.Duration
	ResyncInterval      time.Duration
	MonitorInterval     time.Duration
}

// Load reads the environment, after applying an optional .env file
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "quizroom"),
		RedisURI:      getEnv("REDIS_URI", "localhost:6379"),
		StoreDriver:   getEnv("STORE_DRIVER", "mongo"),
		JWTSecret:     getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),

		StartDelay:     getEnvDuration("START_DELAY", 3*time.Second),
		TransitionGap:  getEnvDuration("TRANSITION_GAP", 3*time.Second),
		DefaultBudget:  getEnvInt("DEFAULT_QUESTION_SECONDS", 20),
		ScoringMode:    getEnv("SCORING_MODE", "trusted"),
		AutoAdvance:    getEnvBool("AUTO_ADVANCE", false),
		MaxProcessed:   getEnvInt("MAX_PROCESSED_REQUESTS", 64),
		ResumeTokenTTL: getEnvDuration("RESUME_TOKEN_TTL", 24*time.Hour),

		StaleAfter:          getEnvDuration("STALE_AFTER", 30*time.Minute),
		StaleSweepInterval:  getEnvDuration("STALE_SWEEP_INTERVAL", 5*time.Minute),
		PlayerGrace:         getEnvDuration("PLAYER_GRACE", 5*time.Minute),
		PlayerPurgeInterval: getEnvDuration("PLAYER_PURGE_INTERVAL", time.Minute),
		ResyncInterval:      getEnvDuration("RESYNC_INTERVAL", 5*time.Second),
		MonitorInterval:     getEnvDuration("MONITOR_INTERVAL", time.Minute),
	}
}

// RedisAddr strips an optional redis:// scheme
func (c *Config) RedisAddr() string {
	return strings.TrimPrefix(c.RedisURI, "redis://")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("30m") or plain milliseconds ("3000")
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
