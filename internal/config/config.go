// Package config builds the server's immutable ServerConfig from CLI flags,
// the process environment, and a .env file, in that priority order.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config is the ServerConfig built once at startup.
type Config struct {
	Dir        string `env:"KVNODE_DIR" envDefault:"."`
	DBFilename string `env:"KVNODE_DBFILENAME" envDefault:"dump.rdb"`
	Port       int    `env:"KVNODE_PORT" envDefault:"6379"`
	ReplicaOf  string `env:"KVNODE_REPLICAOF" envDefault:""`

	LogLevel  string `env:"KVNODE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"KVNODE_LOG_FORMAT" envDefault:"json"`

	MetricsAddr string `env:"KVNODE_METRICS_ADDR" envDefault:":9121"`
}

// Load parses CLI flags, then layers .env and environment variables over
// their defaults; explicit flags take priority over both.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	flags := pflag.NewFlagSet("kvnode", pflag.ContinueOnError)
	dir := flags.String("dir", cfg.Dir, "directory to search for the snapshot file")
	dbfilename := flags.String("dbfilename", cfg.DBFilename, "snapshot filename")
	port := flags.Int("port", cfg.Port, "listening port")
	replicaof := flags.String("replicaof", cfg.ReplicaOf, `"host port" of an upstream master`)
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg.Dir = *dir
	cfg.DBFilename = *dbfilename
	cfg.Port = *port
	cfg.ReplicaOf = *replicaof

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", c.Port)
	}
	if c.Dir == "" {
		return fmt.Errorf("dir must not be empty")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log level must be one of debug, info, warn, error (got %s)", c.LogLevel)
	}
	return nil
}
