// Package config loads the runtime settings of a pipeline program from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ugparu/goflow/queue"
	"github.com/ugparu/goflow/reader"
	"github.com/ugparu/goflow/utils/pool"
)

// EnvPrefix prefixes the environment variables that override loaded values.
const EnvPrefix = "GOFLOW"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	LogLevel string       `yaml:"log_level"`
	Pool     PoolConfig   `yaml:"pool"`
	Queue    QueueConfig  `yaml:"queue"`
	Reader   ReaderConfig `yaml:"reader"`
}

// PoolConfig sizes the buffer pool classes, in bytes.
type PoolConfig struct {
	SmallSize   int `yaml:"small_size"`
	BigSize     int `yaml:"big_size"`
	MaxRetained int `yaml:"max_retained"`
}

type QueueConfig struct {
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type ReaderConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

// Default returns the settings used when nothing else is given.
func Default() *Config {
	return &Config{
		LogLevel: logrus.InfoLevel.String(),
		Pool: PoolConfig{
			SmallSize:   4 * 1024,
			BigSize:     64 * 1024,
			MaxRetained: 1024 * 1024,
		},
		Queue:  QueueConfig{PollTimeout: queue.DefaultPollTimeout},
		Reader: ReaderConfig{ChunkSize: reader.DefaultChunkSize},
	}
}

// Load reads path over the defaults, applies environment overrides and validates the
// result. An empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if val := os.Getenv(EnvPrefix + "_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv(EnvPrefix + "_QUEUE_POLL_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_QUEUE_POLL_TIMEOUT: %w", ErrInvalid, EnvPrefix, err)
		}
		c.Queue.PollTimeout = d
	}
	if val := os.Getenv(EnvPrefix + "_READER_CHUNK_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_READER_CHUNK_SIZE: %w", ErrInvalid, EnvPrefix, err)
		}
		c.Reader.ChunkSize = n
	}
	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	switch {
	case c.Pool.SmallSize <= 0:
		return fmt.Errorf("%w: pool.small_size must be positive, got %d", ErrInvalid, c.Pool.SmallSize)
	case c.Pool.BigSize <= c.Pool.SmallSize:
		return fmt.Errorf("%w: pool.big_size %d must exceed pool.small_size %d",
			ErrInvalid, c.Pool.BigSize, c.Pool.SmallSize)
	case c.Pool.MaxRetained < c.Pool.BigSize:
		return fmt.Errorf("%w: pool.max_retained %d is below pool.big_size %d",
			ErrInvalid, c.Pool.MaxRetained, c.Pool.BigSize)
	case c.Queue.PollTimeout <= 0:
		return fmt.Errorf("%w: queue.poll_timeout must be positive, got %s", ErrInvalid, c.Queue.PollTimeout)
	case c.Reader.ChunkSize <= 0:
		return fmt.Errorf("%w: reader.chunk_size must be positive, got %d", ErrInvalid, c.Reader.ChunkSize)
	}
	return nil
}

// Level returns the parsed log level. It assumes a validated config.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// PoolOptions returns the options configuring a pool.SizedPool with these settings.
func (c *Config) PoolOptions() []pool.Option {
	return []pool.Option{pool.WithSizeClasses(c.Pool.SmallSize, c.Pool.BigSize, c.Pool.MaxRetained)}
}

// QueueOptions returns the options configuring a queue.Queue with these settings.
func (c *Config) QueueOptions() []queue.Option {
	return []queue.Option{queue.WithPollTimeout(c.Queue.PollTimeout)}
}

// ReaderOptions returns the options configuring a reader.Source with these settings.
func (c *Config) ReaderOptions() []reader.Option {
	return []reader.Option{reader.WithChunkSize(c.Reader.ChunkSize)}
}
