package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Config represents application configuration
type Config struct {
	Scan       ScanConfig       `envconfig:"SCAN"`
	Polymarket PolymarketConfig `envconfig:"POLYMARKET"`
	AI         AIConfig         `envconfig:"AI"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Health     HealthConfig     `envconfig:"HEALTH"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// ScanConfig represents edge detection parameters. Defaults mirror
// models.DefaultScanParams so an empty environment is runnable.
type ScanConfig struct {
	LambdaGain      float64       `envconfig:"SCAN_LAMBDA_GAIN" default:"0.10"`
	EdgeThreshold   float64       `envconfig:"SCAN_EDGE_THRESHOLD" default:"0.04"`
	LambdaDays      float64       `envconfig:"SCAN_LAMBDA_DAYS" default:"5"`
	GraceDays       float64       `envconfig:"SCAN_GRACE_DAYS" default:"1"`
	OrbConjunction  float64       `envconfig:"SCAN_ORB_CONJUNCTION" default:"6"`
	OrbSquare       float64       `envconfig:"SCAN_ORB_SQUARE" default:"8"`
	OrbOpposition   float64       `envconfig:"SCAN_ORB_OPPOSITION" default:"8"`
	KCap            float64       `envconfig:"SCAN_K_CAP" default:"5.0"`
	EclipseAmp      float64       `envconfig:"SCAN_ECLIPSE_AMP" default:"1.5"`
	MinorSeverity   float64       `envconfig:"SCAN_MINOR_SEVERITY" default:"0.5"`
	MinLiquidity    float64       `envconfig:"SCAN_MIN_LIQUIDITY" default:"0.5"`
	MinDaysBuffer   float64       `envconfig:"SCAN_MIN_DAYS_BUFFER" default:"2"`
	FeeBps          float64       `envconfig:"SCAN_FEE_BPS" default:"60"`
	Spread          float64       `envconfig:"SCAN_SPREAD" default:"0.01"`
	Slippage        float64       `envconfig:"SCAN_SLIPPAGE" default:"0.005"`
	KellyMultiplier float64       `envconfig:"SCAN_KELLY_MULTIPLIER" default:"0.25"`
	MaxPositionSize float64       `envconfig:"SCAN_MAX_POSITION_SIZE" default:"0.05"`
	MaxPositions    int           `envconfig:"SCAN_MAX_POSITIONS" default:"10"`
	Interval        time.Duration `envconfig:"SCAN_INTERVAL" default:"24h"`
	Workers         int           `envconfig:"SCAN_WORKERS" default:"0"`
	ImpactMapFile   string        `envconfig:"SCAN_IMPACT_MAP_FILE" required:"false"`
}

// Params converts the environment view into the immutable parameter
// value the pipeline consumes.
func (c *ScanConfig) Params() models.ScanParams {
	return models.ScanParams{
		LambdaGain:    c.LambdaGain,
		EdgeThreshold: c.EdgeThreshold,
		LambdaDays:    c.LambdaDays,
		GraceDays:     c.GraceDays,
		OrbLimits: models.OrbLimits{
			Conjunction: c.OrbConjunction,
			Square:      c.OrbSquare,
			Opposition:  c.OrbOpposition,
		},
		KCap:            c.KCap,
		EclipseAmp:      c.EclipseAmp,
		MinorSeverity:   c.MinorSeverity,
		MinLiquidity:    c.MinLiquidity,
		MinDaysBuffer:   c.MinDaysBuffer,
		Costs:           models.Costs{FeeBps: c.FeeBps, Spread: c.Spread, Slippage: c.Slippage},
		KellyMultiplier: c.KellyMultiplier,
		MaxPositionSize: c.MaxPositionSize,
		MaxPositions:    c.MaxPositions,
		ScanInterval:    c.Interval,
	}
}

// PolymarketConfig represents Polymarket API endpoints and limits
type PolymarketConfig struct {
	GammaURL      string        `envconfig:"POLYMARKET_GAMMA_URL" default:"https://gamma-api.polymarket.com"`
	ClobURL       string        `envconfig:"POLYMARKET_CLOB_URL" default:"https://clob.polymarket.com"`
	WSURL         string        `envconfig:"POLYMARKET_WS_URL" default:"wss://ws-subscriptions-clob.polymarket.com/ws/market"`
	RatePerSecond float64       `envconfig:"POLYMARKET_RATE_PER_SECOND" default:"5"`
	RateBurst     int           `envconfig:"POLYMARKET_RATE_BURST" default:"10"`
	Timeout       time.Duration `envconfig:"POLYMARKET_TIMEOUT" default:"15s"`
	PageSize      int           `envconfig:"POLYMARKET_PAGE_SIZE" default:"100"`
	PriceInterval time.Duration `envconfig:"POLYMARKET_PRICE_INTERVAL" default:"5m"`
	StreamEnabled bool          `envconfig:"POLYMARKET_STREAM_ENABLED" default:"false"`
}

// AIConfig represents the LLM used for market category tagging
type AIConfig struct {
	APIKey      string        `envconfig:"AI_API_KEY" required:"false"`
	BaseURL     string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	Model       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Enabled     bool          `envconfig:"AI_TAGGER_ENABLED" default:"false"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	Temperature float64       `envconfig:"AI_TEMPERATURE" default:"0.0"`
}

// TelegramConfig represents Telegram alerting configuration
type TelegramConfig struct {
	BotToken        string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID          int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
	AlertOnSignals  bool   `envconfig:"TELEGRAM_ALERT_ON_SIGNALS" default:"true"`
	AlertOnRuns     bool   `envconfig:"TELEGRAM_ALERT_ON_RUNS" default:"true"`
	AlertOnErrors   bool   `envconfig:"TELEGRAM_ALERT_ON_ERRORS" default:"true"`
	MaxAlertsPerRun int    `envconfig:"TELEGRAM_MAX_ALERTS_PER_RUN" default:"5"`
}

// Enabled reports whether alerting is configured at all
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"astroedge"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig represents Redis connection parameters
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// ClickHouseConfig represents the analytics sink connection
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Addr     string `envconfig:"CLICKHOUSE_ADDR" default:"localhost:9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"astroedge"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s/%s", c.User, c.Password, c.Addr, c.Database)
}

// HealthConfig represents the health endpoint
type HealthConfig struct {
	Port int `envconfig:"HEALTH_PORT" default:"8080"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" required:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if err := c.Scan.Params().Validate(); err != nil {
		return fmt.Errorf("scan parameters: %w", err)
	}

	if c.Polymarket.RatePerSecond <= 0 {
		return fmt.Errorf("polymarket rate limit must be positive")
	}
	if c.Polymarket.PageSize <= 0 {
		return fmt.Errorf("polymarket page size must be positive")
	}
	if c.Polymarket.PriceInterval <= 0 {
		return fmt.Errorf("polymarket price interval must be positive")
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai tagger enabled but no api key configured")
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram bot token set but chat_id missing")
	}

	if c.Health.Port <= 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health port out of range: %d", c.Health.Port)
	}

	return nil
}
