// Package config reads engine settings from the environment with
// validated defaults. The Redis settings are optional; without an
// address the engine keeps policy state in process memory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds tunable settings for the FlowScript engine
type Config struct {
	LogLevel      string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	RedisDB       int
	Workers       int
	CacheSize     int
	StepTimeout   time.Duration
}

const (
	DefaultWorkers     = 16
	DefaultCacheSize   = 256
	DefaultStepTimeout = 30 * time.Second
	DefaultRedisPrefix = "flowscript"
	DefaultLogLevel    = "info"

	MaxWorkers   = 4096
	MaxCacheSize = 100_000

	envWorkers     = "FLOWSCRIPT_WORKERS"
	envCacheSize   = "FLOWSCRIPT_CACHE_SIZE"
	envStepTimeout = "FLOWSCRIPT_STEP_TIMEOUT"
	envLogLevel    = "FLOWSCRIPT_LOG_LEVEL"
	envRedisAddr   = "FLOWSCRIPT_REDIS_ADDR"
	envRedisPass   = "FLOWSCRIPT_REDIS_PASSWORD"
	envRedisDB     = "FLOWSCRIPT_REDIS_DB"
	envRedisPrefix = "FLOWSCRIPT_REDIS_PREFIX"
)

var (
	ErrInvalidWorkers     = errors.New("worker count must be positive")
	ErrWorkersTooLarge    = errors.New("worker count too large")
	ErrInvalidCacheSize   = errors.New("cache size must be positive")
	ErrCacheSizeTooLarge  = errors.New("cache size too large")
	ErrInvalidStepTimeout = errors.New("step timeout must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Workers:     DefaultWorkers,
		CacheSize:   DefaultCacheSize,
		StepTimeout: DefaultStepTimeout,
		LogLevel:    DefaultLogLevel,
		RedisPrefix: DefaultRedisPrefix,
	}
}

// FromEnv builds a validated Config from environment variables, falling
// back to defaults for anything unset
func FromEnv() (*Config, error) {
	c := NewDefaultConfig()

	var err error
	if c.Workers, err = intFromEnv(envWorkers, c.Workers); err != nil {
		return nil, err
	}
	if c.CacheSize, err = intFromEnv(
		envCacheSize, c.CacheSize); err != nil {
		return nil, err
	}
	if v := os.Getenv(envStepTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envStepTimeout, err)
		}
		c.StepTimeout = d
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
	c.RedisAddr = os.Getenv(envRedisAddr)
	c.RedisPassword = os.Getenv(envRedisPass)
	if c.RedisDB, err = intFromEnv(envRedisDB, 0); err != nil {
		return nil, err
	}
	if v := os.Getenv(envRedisPrefix); v != "" {
		c.RedisPrefix = v
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks bound constraints on the configuration
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.Workers > MaxWorkers {
		return ErrWorkersTooLarge
	}
	if c.CacheSize < 1 {
		return ErrInvalidCacheSize
	}
	if c.CacheSize > MaxCacheSize {
		return ErrCacheSizeTooLarge
	}
	if c.StepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}
	return nil
}

func intFromEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
