package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the crawler.
type Config struct {
	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	TabURLFilter  string
	QuotesURL     string
	EvalTimeoutMS int

	// Browser launch
	LaunchBrowser bool
	ProfileDir    string

	// Control API
	BindAddr      string
	BindFallbacks []string
	BindFallback  bool
	APIEnabled    bool

	// Logging
	LogLevel string
	LogFile  string

	// Controller timing, in ticks of TickInterval
	TickInterval    time.Duration
	AwaitLimit      int
	OpenWaitTicks   int
	ReloadWaitTicks int
	// RetryTicks spaces repeated toggle and show-more clicks.
	RetryTicks      int

	// Strike pager
	PageSize    int
	EdgeClicks  int
	SettleTicks int

	// Expiration list
	EndIndices    []int
	WarmStart     bool
	SelectorsFile string

	// Export
	Format      string
	OutDir      string
	ArchiveDir  string
	ArchiveKeep int

	// Cross-instance store
	StorePath string

	// Record journal; empty JournalDir disables it
	JournalDir       string
	JournalMaxSizeMB int
	JournalBuffer    int

	// Postgres ingest; empty DatabaseURL disables it
	DatabaseURL string
	LockKey     int64

	// Completion notification; empty disables it
	NtfyURL string

	// Trading session gate
	SessionGate   bool
	SessionWindow string
	SessionMICs   []string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	endIndices, err := getEnvIntsOrDefault("ODAX_END_INDICES", []int{20, 21, 22})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CDPAddress:    getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:       getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		TabURLFilter:  getEnvOrDefault("ODAX_TAB_URL_FILTER", "eurex.com"),
		QuotesURL:     getEnvOrDefault("ODAX_QUOTES_URL", "https://www.eurex.com/ex-en/markets/idx/dax/dax-options-139884"),
		EvalTimeoutMS: getEnvIntOrDefault("ODAX_EVAL_TIMEOUT_MS", 5000),

		LaunchBrowser: getEnvBoolOrDefault("ODAX_LAUNCH_BROWSER", false),
		ProfileDir:    getEnvOrDefault("ODAX_PROFILE_DIR", "./browser_profile"),

		BindAddr:      getEnvOrDefault("ODAX_BIND_ADDR", "127.0.0.1:8190"),
		BindFallbacks: getEnvListOrDefault("ODAX_BIND_FALLBACKS", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		BindFallback:  getEnvBoolOrDefault("ODAX_BIND_FALLBACK", true),
		APIEnabled:    getEnvBoolOrDefault("ODAX_API_ENABLED", true),

		LogLevel: strings.ToLower(getEnvOrDefault("ODAX_LOG_LEVEL", "info")),
		LogFile:  getEnvOrDefault("ODAX_LOG_FILE", "logs/odax_crawler.log"),

		TickInterval:    time.Duration(getEnvIntOrDefault("ODAX_TICK_MS", 500)) * time.Millisecond,
		AwaitLimit:      getEnvIntOrDefault("ODAX_AWAIT_LIMIT", 240),
		OpenWaitTicks:   getEnvIntOrDefault("ODAX_OPEN_WAIT_TICKS", 6),
		ReloadWaitTicks: getEnvIntOrDefault("ODAX_RELOAD_WAIT_TICKS", 20),
		RetryTicks:      getEnvIntOrDefault("ODAX_RETRY_TICKS", 4),

		PageSize:    getEnvIntOrDefault("ODAX_PAGE_SIZE", 14),
		EdgeClicks:  getEnvIntOrDefault("ODAX_EDGE_CLICKS", 400),
		SettleTicks: getEnvIntOrDefault("ODAX_SETTLE_TICKS", 4),

		EndIndices:    endIndices,
		WarmStart:     getEnvBoolOrDefault("ODAX_WARM_START", false),
		SelectorsFile: getEnvOrDefault("ODAX_SELECTORS_FILE", ""),

		Format:      getEnvOrDefault("ODAX_FORMAT", "html"),
		OutDir:      getEnvOrDefault("ODAX_OUT_DIR", "./out"),
		ArchiveDir:  getEnvOrDefault("ODAX_ARCHIVE_DIR", "./out/archive"),
		ArchiveKeep: getEnvIntOrDefault("ODAX_ARCHIVE_KEEP", 200),

		StorePath: getEnvOrDefault("ODAX_STORE_PATH", "./state/odax.db"),

		JournalDir:       getEnvOrDefault("ODAX_JOURNAL_DIR", ""),
		JournalMaxSizeMB: getEnvIntOrDefault("ODAX_JOURNAL_MAX_SIZE_MB", 100),
		JournalBuffer:    getEnvIntOrDefault("ODAX_JOURNAL_BUFFER", 5000),

		DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		LockKey:     int64(getEnvIntOrDefault("ODAX_LOCK_KEY", 1234567890)),

		NtfyURL: getEnvOrDefault("ODAX_NTFY_URL", ""),

		SessionGate:   getEnvBoolOrDefault("ODAX_SESSION_GATE", true),
		SessionWindow: getEnvOrDefault("ODAX_SESSION_WINDOW", "08:00-22:00"),
		SessionMICs:   getEnvListOrDefault("ODAX_SESSION_MICS", []string{"xeur", "xfra"}),
	}

	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.TickInterval < 50*time.Millisecond {
		cfg.TickInterval = 50 * time.Millisecond
	}
	if cfg.AwaitLimit < 1 {
		return nil, fmt.Errorf("ODAX_AWAIT_LIMIT must be positive, got %d", cfg.AwaitLimit)
	}
	return cfg, nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
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

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvIntsOrDefault(key string, defaultVal []int) ([]int, error) {
	parts := getEnvListOrDefault(key, nil)
	if parts == nil {
		return defaultVal, nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", key, p)
		}
		out = append(out, i)
	}
	return out, nil
}
