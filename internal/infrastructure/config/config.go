package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Queue       QueueConfig    `mapstructure:"queue"`
	Pool        PoolConfig     `mapstructure:"pool"`
	Pricing     PricingConfig  `mapstructure:"pricing"`
	Monitor     MonitorConfig  `mapstructure:"monitor"`
	Email       EmailConfig    `mapstructure:"email"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// QueueConfig controls the FIFO wait-queue store
type QueueConfig struct {
	// Store selects the backing list client: "redis" or "memory"
	Store string `mapstructure:"store"`
	// KeyPrefix namespaces the per-currency list keys
	KeyPrefix string `mapstructure:"key_prefix"`
	// TTLSeconds is (re)applied on every push to bound orphaned queues
	TTLSeconds int `mapstructure:"ttl_seconds"`
	// StatsSampleSize bounds the peek used for average-wait computation
	StatsSampleSize int `mapstructure:"stats_sample_size"`
}

// PoolConfig controls wallet allocation
type PoolConfig struct {
	// Strategy selects the allocation algorithm: "immediate" or "queue"
	Strategy string `mapstructure:"strategy"`
	// MinAvailable maps currency -> minimum available wallets before the
	// pool is considered critical
	MinAvailable map[string]int `mapstructure:"min_available"`
}

// CurrencyRateConfig is the per-currency pricing table
type CurrencyRateConfig struct {
	// Margin is the static business margin, e.g. 0.025 for 2.5%
	Margin float64 `mapstructure:"margin"`
	// CompetitiveBuffer is added back to stay competitive, e.g. 0.003
	CompetitiveBuffer float64 `mapstructure:"competitive_buffer"`
	// FallbackRateUAH is served when every provider fails
	FallbackRateUAH float64 `mapstructure:"fallback_rate_uah"`
	// FallbackRateUSD is the USD counterpart of the static fallback
	FallbackRateUSD float64 `mapstructure:"fallback_rate_usd"`
}

type PricingConfig struct {
	FreshnessWindowSeconds int `mapstructure:"freshness_window_seconds"`
	HardCeilingSeconds     int `mapstructure:"hard_ceiling_seconds"`

	BinanceBaseURL        string `mapstructure:"binance_base_url"`
	BinanceTimeoutSeconds int    `mapstructure:"binance_timeout_seconds"`

	CoinGeckoBaseURL        string `mapstructure:"coingecko_base_url"`
	CoinGeckoTimeoutSeconds int    `mapstructure:"coingecko_timeout_seconds"`

	// FallbackMarkup multiplies the static fallback rate as a safety margin
	FallbackMarkup float64 `mapstructure:"fallback_markup"`

	Currencies map[string]CurrencyRateConfig `mapstructure:"currencies"`
}

type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CronSpec drives the threshold poll schedule
	CronSpec string `mapstructure:"cron_spec"`
}

type EmailConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	// OpsEmail receives low-pool operator alerts
	OpsEmail string `mapstructure:"ops_email"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "obmin_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	// Queue defaults
	viper.SetDefault("queue.store", "redis")
	viper.SetDefault("queue.key_prefix", "wallet_queue:")
	viper.SetDefault("queue.ttl_seconds", 86400)
	viper.SetDefault("queue.stats_sample_size", 25)

	// Pool defaults
	viper.SetDefault("pool.strategy", "queue")
	viper.SetDefault("pool.min_available", map[string]int{
		"BTC": 3, "ETH": 3, "USDT": 5, "LTC": 2,
	})

	// Pricing defaults
	viper.SetDefault("pricing.freshness_window_seconds", 30)
	viper.SetDefault("pricing.hard_ceiling_seconds", 300)
	viper.SetDefault("pricing.binance_base_url", "https://api.binance.com")
	viper.SetDefault("pricing.binance_timeout_seconds", 5)
	viper.SetDefault("pricing.coingecko_base_url", "https://api.coingecko.com")
	viper.SetDefault("pricing.coingecko_timeout_seconds", 8)
	viper.SetDefault("pricing.fallback_markup", 1.05)
	viper.SetDefault("pricing.currencies", map[string]interface{}{
		"BTC":  map[string]interface{}{"margin": 0.025, "competitive_buffer": 0.003, "fallback_rate_uah": 2650000.0, "fallback_rate_usd": 64000.0},
		"ETH":  map[string]interface{}{"margin": 0.025, "competitive_buffer": 0.003, "fallback_rate_uah": 138000.0, "fallback_rate_usd": 3300.0},
		"USDT": map[string]interface{}{"margin": 0.025, "competitive_buffer": 0.003, "fallback_rate_uah": 41.5, "fallback_rate_usd": 1.0},
		"LTC":  map[string]interface{}{"margin": 0.025, "competitive_buffer": 0.003, "fallback_rate_uah": 3400.0, "fallback_rate_usd": 82.0},
	})

	// Monitor defaults
	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.cron_spec", "@every 1m")

	// Email defaults
	viper.SetDefault("email.from_email", "no-reply@obmin.example")
	viper.SetDefault("email.from_name", "Obmin Service")
}

func overrideFromEnv() {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		parseRedisURL(redisURL)
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			viper.Set("redis.port", p)
		}
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	if store := os.Getenv("QUEUE_STORE"); store != "" {
		viper.Set("queue.store", strings.ToLower(store))
	}
	if ttl := os.Getenv("QUEUE_TTL_SECONDS"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			viper.Set("queue.ttl_seconds", v)
		}
	}

	if strategy := os.Getenv("POOL_STRATEGY"); strategy != "" {
		viper.Set("pool.strategy", strings.ToLower(strategy))
	}

	if sendgridKey := os.Getenv("SENDGRID_API_KEY"); sendgridKey != "" {
		viper.Set("email.api_key", sendgridKey)
	}
	if opsEmail := os.Getenv("OPS_ALERT_EMAIL"); opsEmail != "" {
		viper.Set("email.ops_email", opsEmail)
	}
}

// parseRedisURL accepts redis://[:password@]host:port[/db]
func parseRedisURL(raw string) {
	trimmed := strings.TrimPrefix(raw, "redis://")
	if at := strings.LastIndex(trimmed, "@"); at >= 0 {
		auth := trimmed[:at]
		trimmed = trimmed[at+1:]
		if colon := strings.Index(auth, ":"); colon >= 0 {
			viper.Set("redis.password", auth[colon+1:])
		}
	}
	if slash := strings.Index(trimmed, "/"); slash >= 0 {
		if db, err := strconv.Atoi(trimmed[slash+1:]); err == nil {
			viper.Set("redis.db", db)
		}
		trimmed = trimmed[:slash]
	}
	if colon := strings.Index(trimmed, ":"); colon >= 0 {
		viper.Set("redis.host", trimmed[:colon])
		if p, err := strconv.Atoi(trimmed[colon+1:]); err == nil {
			viper.Set("redis.port", p)
		}
	} else if trimmed != "" {
		viper.Set("redis.host", trimmed)
	}
}

func validate(config *Config) error {
	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	switch config.Queue.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported queue store %q", config.Queue.Store)
	}

	switch config.Pool.Strategy {
	case "immediate", "queue":
	default:
		return fmt.Errorf("unsupported pool strategy %q", config.Pool.Strategy)
	}

	if config.Queue.Store == "redis" && config.Redis.Host == "" {
		return fmt.Errorf("redis host is required for the redis queue store")
	}

	if len(config.Pricing.Currencies) == 0 {
		return fmt.Errorf("pricing currency table is required")
	}
	for cur, rc := range config.Pricing.Currencies {
		if rc.FallbackRateUAH <= 0 {
			return fmt.Errorf("pricing fallback rate for %s must be positive", cur)
		}
	}

	return nil
}
