package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayEndpoint lets tests and sandbox setups point an adapter at a
// different base URL. Empty means the provider's production endpoint.
type GatewayEndpoint struct {
	BaseURL string `yaml:"base_url"`
}

type GatewaysConfig struct {
	Timeout     time.Duration   `yaml:"timeout"` // per outbound provider call
	Asaas       GatewayEndpoint `yaml:"asaas"`
	MercadoPago GatewayEndpoint `yaml:"mercadopago"`
	Pagarme     GatewayEndpoint `yaml:"pagarme"`
	Efi         GatewayEndpoint `yaml:"efi"`
}

type MailerConfig struct {
	URL     string        `yaml:"url"` // external mailer service endpoint
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	AdminAPIKey string        `yaml:"admin_api_key"` // exchanged for a JWT at /auth/token
	TTL         time.Duration `yaml:"ttl"`
}

type WorkersConfig struct {
	ReconcileInterval  time.Duration `yaml:"reconcile_interval"`
	StaleAfter         time.Duration `yaml:"stale_after"`
	ExpiryInterval     time.Duration `yaml:"expiry_interval"`
	ExpiringWithinDays int           `yaml:"expiring_within_days"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // 16/24/32 bytes, AES-GCM for stored credentials
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateways GatewaysConfig `yaml:"gateways"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Auth     AuthConfig     `yaml:"auth"`
	Workers  WorkersConfig  `yaml:"workers"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Gateways.Timeout <= 0 {
		cfg.Gateways.Timeout = 15 * time.Second
	}
	if cfg.Mailer.Timeout <= 0 {
		cfg.Mailer.Timeout = 10 * time.Second
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 30 * time.Minute
	}
	if cfg.Workers.ReconcileInterval <= 0 {
		cfg.Workers.ReconcileInterval = time.Minute
	}
	if cfg.Workers.StaleAfter <= 0 {
		cfg.Workers.StaleAfter = 10 * time.Minute
	}
	if cfg.Workers.ExpiryInterval <= 0 {
		cfg.Workers.ExpiryInterval = 24 * time.Hour
	}
	if cfg.Workers.ExpiringWithinDays <= 0 {
		cfg.Workers.ExpiringWithinDays = 3
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
