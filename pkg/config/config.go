package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type string `yaml:"type"` // "alpaca" or "clickhouse"
	} `yaml:"backend"`
	MarketData struct {
		BaseURL   string        `yaml:"base_url"`
		KeyID     string        `yaml:"key_id"`
		SecretKey string        `yaml:"secret_key"`
		Feed      string        `yaml:"feed"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"marketdata"`
	Broker struct {
		BaseURL   string        `yaml:"base_url"`
		KeyID     string        `yaml:"key_id"`
		SecretKey string        `yaml:"secret_key"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"broker"`
	Scoring struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"scoring"`
	Scan struct {
		Symbols []string `yaml:"symbols"`
		Workers int      `yaml:"workers"`
	} `yaml:"scan"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		Table        string        `yaml:"table"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		AuditTopic   string        `yaml:"audit_topic"`
		LogTopic     string        `yaml:"log_topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		Linger       time.Duration `yaml:"linger"`
		BatchSize    int           `yaml:"batch_size"`
		BatchBytes   int           `yaml:"batch_bytes"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Guardrails struct {
		RequireMarketOpen  bool    `yaml:"require_market_open"`
		MaxOpenPositions   int     `yaml:"max_open_positions"`
		MaxRiskPerTradePct float64 `yaml:"max_risk_per_trade_pct"`
		MaxExposurePct     float64 `yaml:"max_exposure_pct"`
		CooldownMinutes    int     `yaml:"cooldown_minutes"`
		MaxDailyLossPct    float64 `yaml:"max_daily_loss_pct"`
	} `yaml:"guardrails"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Guardrail caps and the symbol universe are additionally re-read from the
// environment on every request, so an operator change takes effect without
// a restart; the values here are only startup defaults.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		c.MarketData.KeyID = v
		c.Broker.KeyID = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		c.MarketData.SecretKey = v
		c.Broker.SecretKey = v
	}
	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		c.Scan.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("SCORING_URL"); v != "" {
		c.Scoring.ServiceURL = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "alpaca" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'alpaca' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Scan.Symbols) == 0 {
		return fmt.Errorf("scan.symbols cannot be empty")
	}
	return nil
}
