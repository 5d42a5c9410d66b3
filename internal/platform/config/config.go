package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the server.
type Config struct {
	Port              string
	LogLevel          string
	LogFormat         string
	QueueMaxItems     int
	QueuePollInterval time.Duration
	SubscriberBuffer  int
	PingInterval      time.Duration
	CommandTimeout    time.Duration
	SimZones          []string
	SimTick           time.Duration
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the environment, falling back to defaults.
func FromEnv() Config {
	return Config{
		Port:              GetEnv("PORT", "3443"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		LogFormat:         GetEnv("LOG_FORMAT", "json"),
		QueueMaxItems:     GetEnvInt("QUEUE_MAX_ITEMS", 20),
		QueuePollInterval: GetEnvDuration("QUEUE_POLL_INTERVAL", 2*time.Second),
		SubscriberBuffer:  GetEnvInt("SUBSCRIBER_BUFFER", 256),
		PingInterval:      GetEnvDuration("PING_INTERVAL", 20*time.Second),
		CommandTimeout:    GetEnvDuration("COMMAND_TIMEOUT", 10*time.Second),
		SimZones:          GetEnvList("SIM_ZONES", []string{"Kitchen", "Living Room"}),
		SimTick:           GetEnvDuration("SIM_TICK", time.Second),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses the variable with time.ParseDuration ("2s", "500ms").
// A bare integer is read as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvList splits a comma-separated variable, trimming blanks and dropping
// empty items.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
