package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rohanthewiz/logger"
)

const (
	defaultAddr        = ":8080"
	defaultCacheSize   = 128
	defaultIdleTimeout = 60 * time.Second

	// DBOff as SHADER_DB disables persistence
	DBOff = "off"
)

// Config holds application configuration
type Config struct {
	ShaderDir   string
	Addr        string
	DBPath      string // empty when persistence is disabled
	CacheSize   int
	IdleTimeout time.Duration
	Verbose     bool
}

// globalConfig holds the application configuration instance
var globalConfig *Config

// Initialize loads an optional .env file, then sets up the configuration from environment variables
func Initialize() {
	_ = godotenv.Load()
	globalConfig = FromEnv(os.Getenv)
}

// Get returns the global configuration instance
func Get() *Config {
	if globalConfig == nil {
		Initialize()
	}
	return globalConfig
}

// FromEnv builds a Config from the lookup function, applying defaults.
func FromEnv(getenv func(string) string) *Config {
	return &Config{
		ShaderDir:   firstNonEmpty(getenv("SHADER_DIR"), "."),
		Addr:        normalizeAddr(firstNonEmpty(getenv("SHADER_ADDR"), defaultAddr)),
		DBPath:      resolveDBPath(getenv("SHADER_DB")),
		CacheSize:   positiveInt("SHADER_CACHE_SIZE", getenv("SHADER_CACHE_SIZE"), defaultCacheSize),
		IdleTimeout: positiveDuration("SHADER_IDLE_TIMEOUT", getenv("SHADER_IDLE_TIMEOUT"), defaultIdleTimeout),
		Verbose:     truthy(getenv("SHADER_VERBOSE")),
	}
}

// resolveDBPath returns the database location, or empty if disabled
func resolveDBPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, DBOff) {
		return ""
	}
	if raw != "" {
		return raw
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.LogErr(err, "no home directory, persistence disabled")
		return ""
	}
	return filepath.Join(homeDir, ".local", "share", "shaderworkshop", "workshop.db")
}

// normalizeAddr accepts a bare port ("8080") as well as host:port
func normalizeAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func positiveInt(key, raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		logger.Warn("Ignoring invalid setting", "key", key, "value", raw)
		return def
	}
	return n
}

func positiveDuration(key, raw string, def time.Duration) time.Duration {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		logger.Warn("Ignoring invalid setting", "key", key, "value", raw)
		return def
	}
	return d
}

func truthy(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
