package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/flowscript/internal/config"
)

func TestDefaults(t *testing.T) {
	c := config.NewDefaultConfig()
	assert.Equal(t, config.DefaultWorkers, c.Workers)
	assert.Equal(t, config.DefaultCacheSize, c.CacheSize)
	assert.Equal(t, config.DefaultStepTimeout, c.StepTimeout)
	assert.Equal(t, config.DefaultLogLevel, c.LogLevel)
	assert.Equal(t, config.DefaultRedisPrefix, c.RedisPrefix)
	assert.NoError(t, c.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("FLOWSCRIPT_WORKERS", "32")
	t.Setenv("FLOWSCRIPT_STEP_TIMEOUT", "45s")
	t.Setenv("FLOWSCRIPT_LOG_LEVEL", "debug")
	t.Setenv("FLOWSCRIPT_REDIS_ADDR", "localhost:6379")
	t.Setenv("FLOWSCRIPT_REDIS_DB", "2")
	t.Setenv("FLOWSCRIPT_REDIS_PREFIX", "orders")

	c, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 32, c.Workers)
	assert.Equal(t, 45*time.Second, c.StepTimeout)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, "orders", c.RedisPrefix)
}

func TestFromEnvBadInt(t *testing.T) {
	t.Setenv("FLOWSCRIPT_WORKERS", "many")
	_, err := config.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLOWSCRIPT_WORKERS")
}

func TestFromEnvBadDuration(t *testing.T) {
	t.Setenv("FLOWSCRIPT_STEP_TIMEOUT", "soon")
	_, err := config.FromEnv()
	require.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	c := config.NewDefaultConfig()
	c.Workers = 0
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidWorkers)

	c = config.NewDefaultConfig()
	c.Workers = config.MaxWorkers + 1
	assert.ErrorIs(t, c.Validate(), config.ErrWorkersTooLarge)

	c = config.NewDefaultConfig()
	c.CacheSize = 0
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidCacheSize)

	c = config.NewDefaultConfig()
	c.CacheSize = config.MaxCacheSize + 1
	assert.ErrorIs(t, c.Validate(), config.ErrCacheSizeTooLarge)

	c = config.NewDefaultConfig()
	c.StepTimeout = 0
	assert.ErrorIs(t, c.Validate(), config.ErrInvalidStepTimeout)
}
