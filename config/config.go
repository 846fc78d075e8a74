package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full application configuration, loaded once at startup.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Binance      BinanceConfig      `json:"binance"`
	Trading      TradingConfig      `json:"trading"`
	Engine       EngineConfig       `json:"engine"`
	Notification NotificationConfig `json:"notification"`
	Logging      LoggingConfig      `json:"logging"`
	Vault        VaultConfig        `json:"vault"`
	Database     DatabaseConfig     `json:"database"`
	Redis        RedisConfig        `json:"redis"`
	Auth         AuthConfig         `json:"auth"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// BinanceConfig holds venue credentials and the traded instrument.
// Credentials here are a fallback; when Vault is enabled they are
// fetched from the credential store instead.
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	Testnet   bool   `json:"testnet"`
	Symbol    string `json:"symbol"`
}

// TradingConfig holds the default trading policy applied at startup.
// The policy can be replaced at runtime through the configure endpoint.
type TradingConfig struct {
	Enabled           bool    `json:"enabled"`
	MinScore          float64 `json:"min_score"`
	MinOrderInterval  int     `json:"min_order_interval_sec"`
	AccountPercentage float64 `json:"account_percentage"`
	Leverage          int     `json:"leverage"`
	MarginType        string  `json:"margin_type"` // CROSSED or ISOLATED
}

// EngineConfig holds bar aggregation and analysis parameters.
type EngineConfig struct {
	IntervalMinutes  int `json:"interval_minutes"`
	HistoryLimit     int `json:"history_limit"`
	SeedLimit        int `json:"seed_limit"`
	MinBars          int `json:"min_bars"`
	AnalysisInterval int `json:"analysis_interval_sec"`
	WarmupDelay      int `json:"warmup_delay_sec"`
	SignalCooldown   int `json:"signal_cooldown_sec"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// VaultConfig holds the credential store configuration.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

// DatabaseConfig holds the trade journal connection settings.
// An empty host disables the journal.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AuthConfig holds operator authentication for the API surface.
// PasswordHash is a bcrypt hash; an empty hash disables auth.
type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	PasswordHash  string `json:"password_hash"`
	TokenDuration int    `json:"token_duration_min"`
}

// Interval returns the bar interval as a duration.
func (e EngineConfig) Interval() time.Duration {
	return time.Duration(e.IntervalMinutes) * time.Minute
}

// BinanceInterval returns the interval in Binance kline notation, e.g. "5m".
func (e EngineConfig) BinanceInterval() string {
	return fmt.Sprintf("%dm", e.IntervalMinutes)
}

// Load reads configuration from the file named by CONFIG_PATH (default
// config.json), then applies environment overrides. A missing file is not an
// error; defaults plus environment are enough to run.
func Load() (*Config, error) {
	cfg := defaults()

	path := getEnv("CONFIG_PATH", "config.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Binance.Symbol == "" {
		cfg.Binance.Symbol = "BTCUSDT"
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Binance: BinanceConfig{
			Symbol:  "BTCUSDT",
			Testnet: true,
		},
		Trading: TradingConfig{
			Enabled:           false,
			MinScore:          60,
			MinOrderInterval:  900,
			AccountPercentage: 10,
			Leverage:          10,
			MarginType:        "ISOLATED",
		},
		Engine: EngineConfig{
			IntervalMinutes:  5,
			HistoryLimit:     200,
			SeedLimit:        100,
			MinBars:          50,
			AnalysisInterval: 60,
			WarmupDelay:      5,
			SignalCooldown:   300,
		},
		Logging: LoggingConfig{Level: "info"},
		Vault: VaultConfig{
			MountPath:  "secret",
			SecretPath: "trading-bot/binance",
		},
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{Address: "localhost:6379"},
		Auth:  AuthConfig{TokenDuration: 60},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	cfg.Binance.APIKey = getEnv("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.SecretKey = getEnv("BINANCE_SECRET_KEY", cfg.Binance.SecretKey)
	cfg.Binance.Symbol = getEnv("BINANCE_SYMBOL", cfg.Binance.Symbol)
	cfg.Binance.Testnet = getEnvBool("BINANCE_TESTNET", cfg.Binance.Testnet)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", cfg.Vault.Enabled)
	cfg.Vault.Address = getEnv("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnv("VAULT_TOKEN", cfg.Vault.Token)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnv("REDIS_ADDR", cfg.Redis.Address)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.PasswordHash = getEnv("AUTH_PASSWORD_HASH", cfg.Auth.PasswordHash)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
