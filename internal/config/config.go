package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverBolt     = "bolt"
	StoreDriverMemory   = "memory"

	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"

	NotifierTelegram = "telegram"
	NotifierLog      = "log"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Bolt        BoltConfig
	Redis       RedisConfig
	Clarify     ClarifyConfig
	Parser      ParserConfig
	Telegram    TelegramConfig
	Notifier    NotifierConfig
	Reminder    ReminderConfig
	Wellness    WellnessConfig
	Assistant   AssistantConfig
	Monitor     MonitorConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthCheck     time.Duration
	ConnectTimeout  time.Duration
	SSLMode         string
	// ApplicationName is reported to the server as application_name.
	ApplicationName string
}

type BoltConfig struct {
	Path    string
	Timeout time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type ClarifyConfig struct {
	Driver   string
	TTL      time.Duration
	Capacity int
}

type ParserConfig struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type TelegramConfig struct {
	Token     string
	APIBase   string
	ParseMode string
	Timeout   time.Duration
}

type NotifierConfig struct {
	Driver string
}

type ReminderConfig struct {
	SendTimeout time.Duration
}

type WellnessConfig struct {
	Enabled            bool
	Interval           time.Duration
	GracePeriod        time.Duration
	ImmediateKeywords  []string
	RequireLowPriority bool
	NotifyPrimary      bool
}

type AssistantConfig struct {
	Timezone       string
	PrimaryUserID  string
	ConflictPolicy string
}

type MonitorConfig struct {
	Interval time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskpilot"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 40*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getString("STORE_DRIVER", StoreDriverBolt)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskpilot"),
			User:            getString("DB_USER", "taskpilot"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getDuration("DB_CONN_IDLE_TIME", 30*time.Minute),
			HealthCheck:     getDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:  getDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
			SSLMode:         getString("DB_SSLMODE", "disable"),
			ApplicationName: getString("DB_APPLICATION_NAME", getString("APP_NAME", "taskpilot")),
		},
		Bolt: BoltConfig{
			Path:    getString("BOLTDB_PATH", "./data/tasks.db"),
			Timeout: getDuration("BOLTDB_OPEN_TIMEOUT", time.Second),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Clarify: ClarifyConfig{
			Driver:   strings.ToLower(getString("CLARIFY_CACHE_DRIVER", CacheDriverMemory)),
			TTL:      getDuration("CLARIFY_TTL", 30*time.Minute),
			Capacity: getInt("CLARIFY_CACHE_SIZE", 1024),
		},
		Parser: ParserConfig{
			URL:         getString("PARSER_API_URL", "https://api.anthropic.com/v1/messages"),
			APIKey:      os.Getenv("PARSER_API_KEY"),
			Model:       getString("PARSER_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:   getInt("PARSER_MAX_TOKENS", 2000),
			Temperature: getFloat("PARSER_TEMPERATURE", 0.1),
			Timeout:     getDuration("PARSER_TIMEOUT", 30*time.Second),
		},
		Telegram: TelegramConfig{
			Token:     os.Getenv("TELEGRAM_BOT_TOKEN"),
			APIBase:   getString("TELEGRAM_API_BASE", "https://api.telegram.org"),
			ParseMode: getString("TELEGRAM_PARSE_MODE", "Markdown"),
			Timeout:   getDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Notifier: NotifierConfig{
			Driver: strings.ToLower(getString("NOTIFIER_DRIVER", NotifierLog)),
		},
		Reminder: ReminderConfig{
			SendTimeout: getDuration("REMINDER_SEND_TIMEOUT", 10*time.Second),
		},
		Wellness: WellnessConfig{
			Enabled:            getBool("WELLNESS_ENABLED", true),
			Interval:           getDuration("WELLNESS_INTERVAL", 30*time.Minute),
			GracePeriod:        getDuration("WELLNESS_GRACE_PERIOD", 15*time.Minute),
			ImmediateKeywords:  getList("WELLNESS_IMMEDIATE_KEYWORDS", []string{"break"}),
			RequireLowPriority: getBool("WELLNESS_REQUIRE_LOW_PRIORITY", true),
			NotifyPrimary:      getBool("WELLNESS_NOTIFY_PRIMARY", false),
		},
		Assistant: AssistantConfig{
			Timezone:       getString("ASSISTANT_TIMEZONE", "Local"),
			PrimaryUserID:  os.Getenv("ASSISTANT_PRIMARY_USER_ID"),
			ConflictPolicy: strings.ToLower(getString("COMPLETION_CONFLICT_POLICY", "abort")),
		},
		Monitor: MonitorConfig{
			Interval: getDuration("MONITOR_INTERVAL", 10*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 35*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and inconsistent policy settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverBolt, StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Clarify.Driver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("config: unknown CLARIFY_CACHE_DRIVER %q", c.Clarify.Driver)
	}
	switch c.Notifier.Driver {
	case NotifierLog:
	case NotifierTelegram:
		if c.Telegram.Token == "" {
			return fmt.Errorf("config: TELEGRAM_BOT_TOKEN is required for the telegram notifier")
		}
	default:
		return fmt.Errorf("config: unknown NOTIFIER_DRIVER %q", c.Notifier.Driver)
	}
	switch c.Assistant.ConflictPolicy {
	case "abort", "skip":
	default:
		return fmt.Errorf("config: COMPLETION_CONFLICT_POLICY must be abort or skip, got %q", c.Assistant.ConflictPolicy)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: ASSISTANT_TIMEZONE: %w", err)
	}
	if c.Wellness.NotifyPrimary && c.Assistant.PrimaryUserID == "" {
		return fmt.Errorf("config: WELLNESS_NOTIFY_PRIMARY needs ASSISTANT_PRIMARY_USER_ID")
	}
	return nil
}

// Location resolves the assistant timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Assistant.Timezone)
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
