package config

import (
	"os"
	"strconv"
	"time"
)

// Config is everything the gateway binary reads from the environment.
type Config struct {
	Addr      string // listen address, e.g. ":8080"
	JWTSecret string

	// Optional shared presence store. Empty addr = in-memory roster.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration

	// Optional delivery mirroring. Empty URL = bridge disabled.
	NatsURL    string
	NatsPrefix string

	NodeName string
}

// Load reads the environment. Only the JWT secret has no default; the
// caller decides whether its absence is fatal.
func Load() Config {
	return Config{
		Addr:          getEnv("CHAT_ADDR", ":8080"),
		JWTSecret:     os.Getenv("CHAT_JWT_SECRET"),
		RedisAddr:     os.Getenv("CHAT_REDIS_ADDR"),
		RedisPassword: os.Getenv("CHAT_REDIS_PASSWORD"),
		RedisDB:       getEnvInt("CHAT_REDIS_DB", 0),
		PresenceTTL:   getEnvDuration("CHAT_PRESENCE_TTL", 2*time.Minute),
		NatsURL:       os.Getenv("CHAT_NATS_URL"),
		NatsPrefix:    getEnv("CHAT_NATS_PREFIX", "campuschat.deliver"),
		NodeName:      getEnv("CHAT_NODE_NAME", "gateway-1"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
