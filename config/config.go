package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendLocal    = "local"
	BackendDocument = "document"
	BackendAPI      = "api"
)

// Page drivers
const (
	DriverBrowser = "browser"
	DriverHTTP    = "http"
)

// Config represents the application configuration
type Config struct {
	// Storage configuration
	StorageBackend string
	LocalDBDir     string

	// Redis configuration (document store and result stream)
	RedisAddr      string
	RedisDB        int
	RedisKeyPrefix string

	// Remote API configuration
	RemoteAPIURL     string
	RemoteAPIKey     string
	RemoteAPITimeout time.Duration

	// Memcache configuration
	MemcacheAddr string
	BlockTime    time.Duration

	// Result stream configuration
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Page driver configuration
	Driver            string
	Headless          bool
	BrowserControlURL string
	BrowserProxy      string
	NavigationTimeout time.Duration

	// Load timing
	ScrollDelay      time.Duration
	MaxScrolls       int
	StableScrolls    int
	ClickSettleDelay time.Duration
	NavigationDelay  time.Duration
	QuickScrollDelay time.Duration

	// Worker configuration
	CrawlInterval time.Duration
	JobsFile      string

	// Server configuration
	ServeAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		StorageBackend:       getEnv("STORAGE_BACKEND", BackendLocal),
		LocalDBDir:           getEnv("LOCAL_DB_DIR", "./data"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix:       getEnv("REDIS_KEY_PREFIX", "asins"),
		RemoteAPIURL:         strings.TrimRight(getEnv("REMOTE_API_URL", "http://localhost:3000/api"), "/"),
		RemoteAPIKey:         getEnv("REMOTE_API_KEY", ""),
		RemoteAPITimeout:     getEnvSeconds("REMOTE_API_TIMEOUT_SECONDS", 10),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		BlockTime:            getEnvSeconds("BLOCK_TIME_SECONDS", 600),
		RedisStream:          getEnv("REDIS_STREAM", ""),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		Driver:               getEnv("PAGE_DRIVER", DriverBrowser),
		Headless:             getEnvBool("BROWSER_HEADLESS", true),
		BrowserControlURL:    getEnv("BROWSER_CONTROL_URL", ""),
		BrowserProxy:         getEnv("BROWSER_PROXY", ""),
		NavigationTimeout:    getEnvSeconds("NAVIGATION_TIMEOUT_SECONDS", 45),
		ScrollDelay:          getEnvMillis("SCROLL_DELAY_MS", 1500),
		MaxScrolls:           getEnvInt("MAX_SCROLLS", 50),
		StableScrolls:        getEnvInt("STABLE_SCROLLS", 5),
		ClickSettleDelay:     getEnvMillis("CLICK_SETTLE_DELAY_MS", 2000),
		NavigationDelay:      getEnvMillis("NAVIGATION_DELAY_MS", 3000),
		QuickScrollDelay:     getEnvMillis("QUICK_SCROLL_DELAY_MS", 300),
		CrawlInterval:        getEnvSeconds("CRAWL_INTERVAL_SECONDS", 3600),
		JobsFile:             getEnv("JOBS_FILE", "jobs.yaml"),
		ServeAddr:            getEnv("SERVE_ADDR", ":3000"),
		Environment:          getEnv("ASIN_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the services cannot start with
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendLocal:
		if c.LocalDBDir == "" {
			return fmt.Errorf("LOCAL_DB_DIR is required for the local backend")
		}
	case BackendDocument:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the document backend")
		}
	case BackendAPI:
		if !strings.HasPrefix(c.RemoteAPIURL, "http://") && !strings.HasPrefix(c.RemoteAPIURL, "https://") {
			return fmt.Errorf("REMOTE_API_URL must be an http(s) URL, got %q", c.RemoteAPIURL)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s, %s or %s)",
			c.StorageBackend, BackendLocal, BackendDocument, BackendAPI)
	}

	if c.Driver != DriverBrowser && c.Driver != DriverHTTP {
		return fmt.Errorf("unknown PAGE_DRIVER %q (want %s or %s)", c.Driver, DriverBrowser, DriverHTTP)
	}
	if c.MaxScrolls < 1 {
		return fmt.Errorf("MAX_SCROLLS must be positive")
	}
	if c.StableScrolls < 1 {
		return fmt.Errorf("STABLE_SCROLLS must be positive")
	}
	if c.RedisStream != "" && c.RedisStreamCount < 1 {
		return fmt.Errorf("REDIS_STREAM_COUNT must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

func getEnvMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Millisecond
}
