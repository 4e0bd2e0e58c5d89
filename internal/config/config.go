package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bus host.
type Config struct {
	// HTTP control API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Logging
	LogLevel string
	LogFile  string

	// Storage settings
	DataDir          string
	JournalDir       string
	JournalMaxMB     int
	JournalBuffer    int
	JournalMaxBytes  int
	FrameworkMapPath string
	FrameworkDir     string

	// Reported host state
	Locale     string
	TimeFormat string
	Timezone   string

	// Banner messages are posted here when set (ntfy topic URL)
	NotifyURL string

	// Bus socket rate limit, frames per second per connection
	WSRate  float64
	WSBurst int

	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	LaunchBrowser bool
	ProfileDir    string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	dataDir := getEnvOrDefault("LUNA_DATA_DIR", "./luna_data")
	cfg := &Config{
		BindAddr:         getEnvOrDefault("LUNA_BIND_ADDR", "127.0.0.1:8290"),
		PortCandidates:   splitList(getEnvOrDefault("LUNA_PORT_CANDIDATES", "127.0.0.1:8291,127.0.0.1:8292,127.0.0.1:8293")),
		PortAutoFallback: getEnvBoolOrDefault("LUNA_PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("LUNA_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("LUNA_LOG_FILE", "logs/lunahost.log"),
		DataDir:          dataDir,
		JournalDir:       getEnvOrDefault("LUNA_JOURNAL_DIR", filepath.Join(dataDir, "journal")),
		JournalMaxMB:     getEnvIntOrDefault("LUNA_JOURNAL_MAX_MB", 50),
		JournalBuffer:    getEnvIntOrDefault("LUNA_JOURNAL_BUFFER", 1000),
		JournalMaxBytes:  getEnvIntOrDefault("LUNA_JOURNAL_MAX_PAYLOAD_BYTES", 64*1024),
		FrameworkMapPath: getEnvOrDefault("LUNA_FRAMEWORK_MAP", ""),
		FrameworkDir:     getEnvOrDefault("LUNA_FRAMEWORK_DIR", "./frameworks"),
		Locale:           getEnvOrDefault("LUNA_LOCALE", "en_US"),
		TimeFormat:       strings.ToUpper(getEnvOrDefault("LUNA_TIME_FORMAT", "HH12")),
		Timezone:         getEnvOrDefault("LUNA_TIMEZONE", ""),
		NotifyURL:        getEnvOrDefault("LUNA_NOTIFY_URL", ""),
		WSRate:           getEnvFloatOrDefault("LUNA_WS_RATE", 50),
		WSBurst:          getEnvIntOrDefault("LUNA_WS_BURST", 100),
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9230),
		LaunchBrowser:    getEnvBoolOrDefault("LUNA_LAUNCH_BROWSER", false),
		ProfileDir:       getEnvOrDefault("LUNA_BROWSER_PROFILE_DIR", filepath.Join(dataDir, "browser")),
	}

	if cfg.TimeFormat != "HH12" && cfg.TimeFormat != "HH24" {
		return nil, fmt.Errorf("LUNA_TIME_FORMAT must be HH12 or HH24, got %q", cfg.TimeFormat)
	}
	if cfg.JournalMaxMB < 1 {
		cfg.JournalMaxMB = 1
	}
	if cfg.JournalBuffer < 1 {
		cfg.JournalBuffer = 1
	}
	if cfg.WSBurst < 1 {
		cfg.WSBurst = 1
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

// PackageDir is where installed packages are extracted.
func (c *Config) PackageDir() string {
	return filepath.Join(c.DataDir, "packages")
}

// Use24Hour reports whether the configured time format is HH24.
func (c *Config) Use24Hour() bool {
	return c.TimeFormat == "HH24"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
