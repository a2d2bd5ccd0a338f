package main

import (
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/transcode-api/internal/config"
)

func TestWriteTimeout(t *testing.T) {
	cfg, err := config.LoadFrom(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	// Defaults: 5m fetch, 10m normalize, 10m concatenate.
	assert.Equal(t, 30*time.Minute, writeTimeout(cfg))
	assert.Greater(t, writeTimeout(cfg), cfg.FetchTimeout+2*cfg.MergeTimeout)

	cfg.FetchTimeout = time.Minute
	cfg.MergeTimeout = 20 * time.Minute
	assert.Equal(t, 46*time.Minute, writeTimeout(cfg))
}
