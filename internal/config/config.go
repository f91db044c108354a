// Package config provides configuration for the chat clients and the relay.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the shared configuration.
type Config struct {
	// Backend settings
	APIBaseURL string // REST base, e.g. http://localhost:8082/api/v1
	WSBaseURL  string // transport base, e.g. ws://localhost:8082/ws/chat

	// Relay settings
	RelayPort int

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	DialTimeout    time.Duration
	MaxMessageSize int64

	// Reconnect settings (opt-in automatic reconnect)
	ReconnectEnabled  bool
	ReconnectMax      int
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration

	// Local cache
	CachePath string

	// Logging
	LogLevel string
}

// Load loads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8082/api/v1"),
		WSBaseURL:         getEnv("WS_BASE_URL", "ws://localhost:8082/ws/chat"),
		RelayPort:         getEnvInt("RELAY_PORT", 8082),
		PingInterval:      time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:      time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:       time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		DialTimeout:       time.Duration(getEnvInt("WS_DIAL_TIMEOUT_MS", 10000)) * time.Millisecond,
		MaxMessageSize:    int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		ReconnectEnabled:  getEnvBool("WS_RECONNECT", false),
		ReconnectMax:      getEnvInt("WS_RECONNECT_MAX", 5),
		ReconnectBaseWait: time.Duration(getEnvInt("WS_RECONNECT_BASE_MS", 500)) * time.Millisecond,
		ReconnectMaxWait:  time.Duration(getEnvInt("WS_RECONNECT_MAX_WAIT_MS", 15000)) * time.Millisecond,
		CachePath:         getEnv("CACHE_PATH", "chat-cache.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
