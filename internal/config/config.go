package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"xquisito-tap/internal/pricing"
)

// Config holds runtime configuration parsed from environment variables and an optional YAML file.
type Config struct {
	HTTPAddr        string
	DBConnString    string
	BackendURL      string
	BackendTimeout  time.Duration
	ShutdownTimeout time.Duration
	AMQPURL         string
	AMQPExchange    string
	CORSOrigins     []string
	RestaurantTZ    string
	MigrationDelay  time.Duration
	MenuCacheTTL    time.Duration
	ConfigFile      string

	Pricing Pricing
}

// Pricing is the tunable part of the calculator. Zero values mean "use the built-in defaults".
type Pricing struct {
	Rates         pricing.Rates    `yaml:"rates"`
	MinimumAmount float64          `yaml:"minimum_amount"`
	MSI           pricing.Schedule `yaml:"msi"`
}

// Calculator builds a pricing calculator from the configured rates.
func (p Pricing) Calculator() *pricing.Calculator {
	return pricing.NewCalculator(p.Rates, p.MinimumAmount)
}

// Schedule returns the configured installment table, falling back per brand group.
func (p Pricing) Schedule() pricing.Schedule {
	s := p.MSI
	if len(s.Amex) == 0 {
		s.Amex = pricing.DefaultSchedule.Amex
	}
	if len(s.Other) == 0 {
		s.Other = pricing.DefaultSchedule.Other
	}
	return s
}

// fileConfig mirrors the YAML layout. Durations are strings ("300ms", "5m").
type fileConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	BackendURL     string   `yaml:"backend_url"`
	BackendTimeout string   `yaml:"backend_timeout"`
	AMQPURL        string   `yaml:"amqp_url"`
	AMQPExchange   string   `yaml:"amqp_exchange"`
	CORSOrigins    []string `yaml:"cors_origins"`
	RestaurantTZ   string   `yaml:"restaurant_tz"`
	MigrationDelay string   `yaml:"migration_delay"`
	MenuCacheTTL   string   `yaml:"menu_cache_ttl"`
	Pricing        Pricing  `yaml:"pricing"`
}

// FromEnv builds Config with defaults, overridden by environment variables.
func FromEnv() Config {
	return Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		DBConnString:    os.Getenv("DB_DSN"),
		BackendURL:      envOrDefault("BACKEND_URL", "http://localhost:5000/api"),
		BackendTimeout:  envDuration("BACKEND_TIMEOUT_SECONDS", 15*time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    envOrDefault("AMQP_EXCHANGE", "checkout_topic"),
		CORSOrigins:     envList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RestaurantTZ:    envOrDefault("RESTAURANT_TZ", "America/Mexico_City"),
		MigrationDelay:  envMillis("MIGRATION_DELAY_MS", 300*time.Millisecond),
		MenuCacheTTL:    envDuration("MENU_CACHE_TTL_SECONDS", 5*time.Minute),
		ConfigFile:      os.Getenv("CONFIG_FILE"),
	}
}

// Load reads the environment and then overlays the YAML file at path, if any.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		path = cfg.ConfigFile
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.overlay(raw); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}

func (c *Config) overlay(raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if f.HTTPAddr != "" {
		c.HTTPAddr = f.HTTPAddr
	}
	if f.BackendURL != "" {
		c.BackendURL = f.BackendURL
	}
	if f.AMQPURL != "" {
		c.AMQPURL = f.AMQPURL
	}
	if f.AMQPExchange != "" {
		c.AMQPExchange = f.AMQPExchange
	}
	if len(f.CORSOrigins) > 0 {
		c.CORSOrigins = f.CORSOrigins
	}
	if f.RestaurantTZ != "" {
		c.RestaurantTZ = f.RestaurantTZ
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{f.BackendTimeout, &c.BackendTimeout},
		{f.MigrationDelay, &c.MigrationDelay},
		{f.MenuCacheTTL, &c.MenuCacheTTL},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	c.Pricing = f.Pricing
	return nil
}

// Location resolves the restaurant time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RestaurantTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		seconds, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		ms, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
