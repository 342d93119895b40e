package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the eventd process configuration: YAML file first, environment
// overrides second so container deployments can skip the file entirely.
type Config struct {
	DB struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"db"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
		Queue   string `yaml:"queue"`
		Workers int    `yaml:"workers"`
	} `yaml:"nats"`

	Redis struct {
		Addr            string `yaml:"addr"`
		DedupTTLSeconds int    `yaml:"dedup_ttl_seconds"`
	} `yaml:"redis"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Engine struct {
		Sequence          string `yaml:"sequence"`
		DpName            string `yaml:"dp_name"`
		ResolverCacheSize int    `yaml:"resolver_cache_size"`
		DedupMaxKeys      int    `yaml:"dedup_max_keys"`
	} `yaml:"engine"`
}

// Load reads the config file (missing file is not an error) and applies
// defaults and env overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.DB.Host = "localhost"
	cfg.DB.Port = "5432"
	cfg.DB.SSLMode = "disable"
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.Subject = "nms.events.normalized"
	cfg.NATS.Queue = "eventd"
	cfg.NATS.Workers = 4
	cfg.Redis.DedupTTLSeconds = 300
	cfg.HTTP.Addr = ":8091"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Engine.Sequence = "eventsnxtid"
	cfg.Engine.DpName = "localhost"
	cfg.Engine.ResolverCacheSize = 256
	cfg.Engine.DedupMaxKeys = 4096
	return cfg
}

func applyEnv(cfg *Config) {
	setIfEnv(&cfg.DB.Host, "DB_HOST")
	setIfEnv(&cfg.DB.Port, "DB_PORT")
	setIfEnv(&cfg.DB.User, "DB_USER")
	setIfEnv(&cfg.DB.Password, "DB_PASSWORD")
	setIfEnv(&cfg.DB.Name, "DB_NAME")
	setIfEnv(&cfg.DB.SSLMode, "DB_SSLMODE")
	setIfEnv(&cfg.NATS.URL, "NATS_URL")
	setIfEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	setIfEnv(&cfg.HTTP.Addr, "HTTP_ADDR")
	setIfEnv(&cfg.Logging.Level, "LOG_LEVEL")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ConnString builds the Postgres DSN.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}
