package takarik

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/takarik/takarik-data-sub002/dialect/sql"
)

// Config describes one database connection.
type Config struct {
	// Adapter is the dialect name: "mysql", "postgres", or "sqlite".
	Adapter string `yaml:"adapter"`

	// DSN is the driver connection string.
	DSN string `yaml:"dsn"`

	// Pool bounds the open connections. Zero keeps the driver default.
	Pool int `yaml:"pool"`

	// IdleTimeout bounds how long an idle connection is kept.
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Duration is a time.Duration decoded from its YAML string form ("30s",
// "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("takarik: parsing duration %q: %w", node.Value, err)
	}
	*d = Duration(v)
	return nil
}

// Environments maps an environment name ("development", "test",
// "production") to its connection config.
type Environments map[string]*Config

// LoadConfig reads an environment-keyed YAML config file.
func LoadConfig(path string) (Environments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("takarik: reading config: %w", err)
	}
	var envs Environments
	if err := yaml.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("takarik: parsing config: %w", err)
	}
	return envs, nil
}

// Env returns the config of the named environment.
func (e Environments) Env(name string) (*Config, error) {
	cfg, ok := e[name]
	if !ok {
		return nil, fmt.Errorf("takarik: environment %q not configured", name)
	}
	return cfg, nil
}

// Open connects a store using the config and the given registry.
func Open(cfg *Config, registry *Registry) (*Store, error) {
	drv, err := sql.Open(cfg.Adapter, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db := drv.DB()
	if cfg.Pool > 0 {
		db.SetMaxOpenConns(cfg.Pool)
		db.SetMaxIdleConns(cfg.Pool)
	}
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeout))
	}
	return NewStore(drv, registry), nil
}
