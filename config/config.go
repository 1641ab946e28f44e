package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Market     MarketConfig     `mapstructure:"market"`
	Fees       FeesConfig       `mapstructure:"fees"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StorageConfig selects the intent store backend.
type StorageConfig struct {
	Driver   string `mapstructure:"driver"`   // memory, postgres
	Capacity int    `mapstructure:"capacity"` // memory driver only
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	// StatementTimeout is sent as the session statement_timeout; 0 leaves the server default.
	StatementTimeout  time.Duration `mapstructure:"statement_timeout"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	RiskTTL  time.Duration `mapstructure:"risk_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ChainConfig describes the EVM network used for settlement, fee estimation
// and live market sampling.
type ChainConfig struct {
	RPCURL         string            `mapstructure:"rpc_url"`
	ChainID        int64             `mapstructure:"chain_id"`
	TokenContracts map[string]string `mapstructure:"token_contracts"` // symbol -> ERC-20 address
}

// AnalysisConfig points at an OpenAI-compatible chat completions API.
type AnalysisConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

type SettlementConfig struct {
	Driver         string        `mapstructure:"driver"` // simulated, evm
	PrivateKey     string        `mapstructure:"private_key"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SimMinDelay    time.Duration `mapstructure:"sim_min_delay"`
	SimMaxDelay    time.Duration `mapstructure:"sim_max_delay"`
	SimFailureRate float64       `mapstructure:"sim_failure_rate"`
	Seed           uint64        `mapstructure:"seed"` // 0 = random
}

type MarketConfig struct {
	Source       string        `mapstructure:"source"` // simulated, rpc
	Interval     time.Duration `mapstructure:"interval"`
	PriceURL     string        `mapstructure:"price_url"`
	PriceAssetID string        `mapstructure:"price_asset_id"`
}

type FeesConfig struct {
	Model            string  `mapstructure:"model"` // none, rpc
	ThresholdGwei    int64   `mapstructure:"threshold_gwei"`
	FallbackRateGwei int64   `mapstructure:"fallback_rate_gwei"`
	GasHeadroom      float64 `mapstructure:"gas_headroom"`
}

type EngineConfig struct {
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
	SettlementTimeout time.Duration `mapstructure:"settlement_timeout"`
	DeferralWindow    time.Duration `mapstructure:"deferral_window"`
	RiskCacheSize     int           `mapstructure:"risk_cache_size"`
	ListLimit         int           `mapstructure:"list_limit"`
}

type RetentionConfig struct {
	Schedule string        `mapstructure:"schedule"` // cron expression, "" disables
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// AuthConfig holds the operator credentials allowed to execute intents.
type AuthConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // argon2id encoded
}

// Enabled reports whether operator authentication is configured.
func (a AuthConfig) Enabled(jwt JWTConfig) bool {
	return jwt.Secret != "" && a.Username != "" && a.PasswordHash != ""
}

type WebhookConfig struct {
	URL            string          `mapstructure:"url"`
	Secret         string          `mapstructure:"secret"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RetryIntervals []time.Duration `mapstructure:"retry_intervals"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"` // OTLP gRPC, "" disables
}

type RateLimitConfig struct {
	CreatePerMinute  int64 `mapstructure:"create_per_minute"`
	ExecutePerMinute int64 `mapstructure:"execute_per_minute"`
	LoginPerMinute   int64 `mapstructure:"login_per_minute"`
	ReadPerMinute    int64 `mapstructure:"read_per_minute"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PIE_.
// Nested keys use underscore: PIE_DATABASE_HOST, PIE_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
		if c.Storage.Capacity <= 0 {
			return fmt.Errorf("storage.capacity must be positive for the memory driver")
		}
	case "postgres":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Settlement.Driver {
	case "simulated":
	case "evm":
		if c.Chain.RPCURL == "" || c.Settlement.PrivateKey == "" || c.Chain.ChainID == 0 {
			return fmt.Errorf("evm settlement requires chain.rpc_url, chain.chain_id and settlement.private_key")
		}
	default:
		return fmt.Errorf("unknown settlement.driver %q", c.Settlement.Driver)
	}

	switch c.Market.Source {
	case "simulated":
	case "rpc":
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("rpc market source requires chain.rpc_url")
		}
	default:
		return fmt.Errorf("unknown market.source %q", c.Market.Source)
	}

	if c.Fees.Model == "rpc" && c.Chain.RPCURL == "" {
		return fmt.Errorf("rpc fee model requires chain.rpc_url")
	}
	if c.Market.Interval <= 0 {
		return fmt.Errorf("market.interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.capacity", 10000)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_intents")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.statement_timeout", "10s")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "2s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.risk_ttl", "24h")

	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 31337)

	v.SetDefault("analysis.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.model", "deepseek-chat")
	v.SetDefault("analysis.timeout", "8s")
	v.SetDefault("analysis.breaker_threshold", 5)
	v.SetDefault("analysis.breaker_cooldown", "30s")

	v.SetDefault("settlement.driver", "simulated")
	v.SetDefault("settlement.confirm_timeout", "30s")
	v.SetDefault("settlement.poll_interval", "2s")
	v.SetDefault("settlement.sim_min_delay", "2s")
	v.SetDefault("settlement.sim_max_delay", "5s")
	v.SetDefault("settlement.sim_failure_rate", 0.0)
	v.SetDefault("settlement.seed", 0)

	v.SetDefault("market.source", "simulated")
	v.SetDefault("market.interval", "5s")
	v.SetDefault("market.price_url", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("market.price_asset_id", "ethereum")

	v.SetDefault("fees.model", "none")
	v.SetDefault("fees.threshold_gwei", 25)
	v.SetDefault("fees.fallback_rate_gwei", 20)
	v.SetDefault("fees.gas_headroom", 1.0)

	v.SetDefault("engine.stage_timeout", "10s")
	v.SetDefault("engine.settlement_timeout", "60s")
	v.SetDefault("engine.deferral_window", "2h")
	v.SetDefault("engine.risk_cache_size", 4096)
	v.SetDefault("engine.list_limit", 100)

	v.SetDefault("retention.schedule", "@hourly")
	v.SetDefault("retention.max_age", "720h")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "payment-intent-engine")

	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password_hash", "")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.retry_intervals", []string{"15s", "1m", "5m"})

	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("ratelimit.create_per_minute", 60)
	v.SetDefault("ratelimit.execute_per_minute", 30)
	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.read_per_minute", 300)
}
