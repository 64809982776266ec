package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"RestoPOS/app/security"
)

const configFileName = "config.json"

// AppConfig holds all application configuration
type AppConfig struct {
	// Remote relational source used by the sync bridge
	Database DatabaseConfig `json:"database"`

	// Local durable store
	Local LocalConfig `json:"local"`

	Server ServerConfig `json:"server"`
	Sync   SyncConfig   `json:"sync"`
	Kafka  KafkaConfig  `json:"kafka"`
	Redis  RedisConfig  `json:"redis"`
	Log    LogConfig    `json:"log"`

	// Business Information
	Business BusinessConfig `json:"business"`

	Environment string `json:"environment"` // development, production

	dataDir string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string `json:"url,omitempty"` // takes precedence over the fields below
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

// Enabled reports whether a remote database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != "" || d.Host != ""
}

// LocalConfig holds the local SQLite settings
type LocalConfig struct {
	Path string `json:"path"` // relative paths resolve against the data directory
}

// ServerConfig holds the LAN server settings
type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	PublicURL      string   `json:"public_url"` // base of customer QR links
	EnableMDNS     bool     `json:"enable_mdns"`
}

// SyncConfig holds the sync bridge settings
type SyncConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
	SyncTables      bool `json:"sync_tables"`
	MaxRetrySeconds int  `json:"max_retry_seconds"`
}

// Interval returns the polling interval
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// MaxRetry returns the longest time a single fetch or push is retried
func (s SyncConfig) MaxRetry() time.Duration {
	return time.Duration(s.MaxRetrySeconds) * time.Second
}

// KafkaConfig holds the order event stream settings
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// RedisConfig holds the idempotency cache settings
type RedisConfig struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level         string `json:"level"`
	RetentionDays int    `json:"retention_days"`
}

// BusinessConfig holds business information
type BusinessConfig struct {
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	TaxRate  float64 `json:"tax_rate"`
}

// DataDir returns the directory the config was loaded from
func (cfg *AppConfig) DataDir() string {
	return cfg.dataDir
}

// LocalPath returns the absolute path of the local database
func (cfg *AppConfig) LocalPath() string {
	if filepath.IsAbs(cfg.Local.Path) {
		return cfg.Local.Path
	}
	return filepath.Join(cfg.dataDir, cfg.Local.Path)
}

// IsDevelopment reports whether the app runs in development mode
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment != "production"
}

// GetDataDir returns the application data directory.
// POS_DATA_DIR wins over $HOME/.restopos.
func GetDataDir() (string, error) {
	dir := os.Getenv("POS_DATA_DIR")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".restopos")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	return dir, nil
}

// Default returns the configuration used when no file exists
func Default() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		Local: LocalConfig{Path: "restopos.db"},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
			EnableMDNS:     true,
		},
		Sync: SyncConfig{
			Enabled:         false,
			IntervalSeconds: 30,
			MaxRetrySeconds: 20,
		},
		Kafka: KafkaConfig{Topic: "pos.orders"},
		Redis: RedisConfig{TTLSeconds: 86400},
		Log: LogConfig{
			Level:         "info",
			RetentionDays: 30,
		},
		Business: BusinessConfig{
			Name:     "RestoPOS",
			Currency: "THB",
		},
		Environment: "development",
	}
}

// Load reads config.json from dataDir, decrypts sensitive fields and applies
// environment overrides. A missing file yields the defaults.
func Load(dataDir string) (*AppConfig, error) {
	cfg := Default()
	cfg.dataDir = dataDir

	data, err := os.ReadFile(filepath.Join(dataDir, configFileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("could not read config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
		if err := cfg.decryptSensitiveFields(); err != nil {
			return nil, fmt.Errorf("could not decrypt sensitive fields: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Save writes cfg to config.json after encrypting sensitive fields
func Save(cfg *AppConfig) error {
	cfgCopy := *cfg
	if err := cfgCopy.encryptSensitiveFields(); err != nil {
		return fmt.Errorf("could not encrypt sensitive fields: %w", err)
	}

	data, err := json.MarshalIndent(&cfgCopy, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	// restrictive permissions, the file holds credentials
	if err := os.WriteFile(filepath.Join(cfg.dataDir, configFileName), data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return nil
}

// Validate checks values that would make the app misbehave
func (cfg *AppConfig) Validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Sync.Enabled && cfg.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("sync interval must be positive, got %d", cfg.Sync.IntervalSeconds)
	}
	if cfg.Sync.Enabled && !cfg.Database.Enabled() {
		return errors.New("sync is enabled but no database is configured")
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic == "" {
		return errors.New("kafka brokers set without a topic")
	}
	return nil
}

// applyEnv overrides file values with environment variables
func (cfg *AppConfig) applyEnv() {
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Local.Path = getEnv("LOCAL_DB_PATH", cfg.Local.Path)
	cfg.Server.Port = getEnvInt("WS_PORT", cfg.Server.Port)
	cfg.Server.PublicURL = getEnv("PUBLIC_URL", cfg.Server.PublicURL)

	cfg.Sync.Enabled = getEnvBool("SYNC_ENABLED", cfg.Sync.Enabled)
	cfg.Sync.IntervalSeconds = getEnvInt("SYNC_INTERVAL_SECONDS", cfg.Sync.IntervalSeconds)

	cfg.Kafka.Brokers = getEnvSlice("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
}

// cipher opens the key stored next to the config file
func (cfg *AppConfig) cipher() (*security.Cipher, error) {
	return security.NewCipher(filepath.Join(cfg.dataDir, security.KeyFileName))
}

func (cfg *AppConfig) encryptSensitiveFields() error {
	if cfg.Database.Password == "" && cfg.Redis.Password == "" {
		return nil
	}
	c, err := cfg.cipher()
	if err != nil {
		return err
	}

	if cfg.Database.Password, err = c.Encrypt(cfg.Database.Password); err != nil {
		return fmt.Errorf("could not encrypt database password: %w", err)
	}
	if cfg.Redis.Password, err = c.Encrypt(cfg.Redis.Password); err != nil {
		return fmt.Errorf("could not encrypt redis password: %w", err)
	}
	return nil
}

// decryptSensitiveFields leaves values that fail to decrypt as they are, so a
// plain text password typed into the file keeps working.
func (cfg *AppConfig) decryptSensitiveFields() error {
	if cfg.Database.Password == "" && cfg.Redis.Password == "" {
		return nil
	}
	c, err := cfg.cipher()
	if err != nil {
		return err
	}

	if decrypted, err := c.Decrypt(cfg.Database.Password); err == nil {
		cfg.Database.Password = decrypted
	}
	if decrypted, err := c.Decrypt(cfg.Redis.Password); err == nil {
		cfg.Redis.Password = decrypted
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
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

func getEnvSlice(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
