package flowscript

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/flowscript/internal/config"
)

func TestProgramCacheSizeFromEnv(t *testing.T) {
	t.Setenv("FLOWSCRIPT_CACHE_SIZE", "32")
	assert.Equal(t, 32, programCacheSize())
}

func TestProgramCacheSizeFallsBack(t *testing.T) {
	t.Setenv("FLOWSCRIPT_CACHE_SIZE", "many")
	assert.Equal(t, config.DefaultCacheSize, programCacheSize())
}
