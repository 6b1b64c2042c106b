package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/procwatch/internal/logger"
	"github.com/loykin/procwatch/internal/snapshot"
)

// Config is the top-level TOML structure.
//
// Example:
//
//	sample_interval = "2s"
//	flush_interval = "20s"
//	data_file = "process_log.json"
//
//	[snapshot]
//	exclude_prefixes = ["System", "Registry"]
//	min_pid = 0
//
//	[server]
//	enabled = true
//	listen = ":8080"
//	base_path = "/api"
//
//	[log]
//	level = "info"
//	format = "text"
//	color = true
//
//	[[sinks]]
//	dsn = "sqlite:///var/lib/procwatch/lifecycle.db"
type Config struct {
	SampleInterval time.Duration  `mapstructure:"sample_interval"`
	FlushInterval  time.Duration  `mapstructure:"flush_interval"`
	DataFile       string         `mapstructure:"data_file"`
	Snapshot       SnapshotConfig `mapstructure:"snapshot"`
	Server         ServerConfig   `mapstructure:"server"`
	Log            logger.Config  `mapstructure:"log"`
	Sinks          []SinkConfig   `mapstructure:"sinks"`
}

type SnapshotConfig struct {
	ExcludePrefixes []string `mapstructure:"exclude_prefixes"`
	MinPID          int32    `mapstructure:"min_pid"`
}

type ServerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

type SinkConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Default returns the built-in configuration: 2s sampling, 20s flushes,
// the artifact next to the working directory, no API server, no sinks.
func Default() Config {
	return Config{
		SampleInterval: 2 * time.Second,
		FlushInterval:  20 * time.Second,
		DataFile:       "process_log.json",
		Snapshot: SnapshotConfig{
			ExcludePrefixes: snapshot.DefaultFilter().ExcludePrefixes,
		},
		Server: ServerConfig{
			Listen:   ":8080",
			BasePath: "/api",
		},
		Log: logger.Config{Level: "info", Format: "text", Color: true},
	}
}

// Load reads a TOML config file, applying defaults for unset keys.
func Load(path string) (Config, error) {
	def := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("sample_interval", def.SampleInterval)
	v.SetDefault("flush_interval", def.FlushInterval)
	v.SetDefault("data_file", def.DataFile)
	v.SetDefault("snapshot.exclude_prefixes", def.Snapshot.ExcludePrefixes)
	v.SetDefault("server.listen", def.Server.Listen)
	v.SetDefault("server.base_path", def.Server.BasePath)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.color", def.Log.Color)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects configurations the monitor cannot run with.
func (c Config) Validate() error {
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be > 0, got %s", c.SampleInterval)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be > 0, got %s", c.FlushInterval)
	}
	if c.DataFile == "" {
		return fmt.Errorf("data_file must not be empty")
	}
	for i, s := range c.Sinks {
		if s.DSN == "" {
			return fmt.Errorf("sinks[%d]: dsn must not be empty", i)
		}
	}
	return nil
}

// Filter converts the snapshot section into a snapshot.Filter.
func (c SnapshotConfig) Filter() snapshot.Filter {
	return snapshot.Filter{ExcludePrefixes: c.ExcludePrefixes, MinPID: c.MinPID}
}
