package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("no arguments prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("help flag exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		_, exit, err := Parse([]string{"-h"}, &out)
		require.NoError(t, err)
		assert.True(t, exit)
	})

	t.Run("positional path populates the config", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"design.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		require.NotNil(t, cfg)
		assert.Equal(t, "design.hcl", cfg.ConfigPath)
		assert.Equal(t, "exact", cfg.Strategy)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("flags override the defaults", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{
			"-config", "d.hcl",
			"-out", "stream.txt",
			"-strategy", "anneal",
			"-iterations", "2000",
			"-restarts", "4",
			"-seed", "99",
			"-timeout", "5s",
			"-mask", "11110000",
			"-log-level", "debug",
		}, &out)
		require.NoError(t, err)
		assert.Equal(t, "d.hcl", cfg.ConfigPath)
		assert.Equal(t, "stream.txt", cfg.OutPath)
		assert.Equal(t, "anneal", cfg.Strategy)
		assert.Equal(t, 2000, cfg.Iterations)
		assert.Equal(t, 4, cfg.Restarts)
		assert.Equal(t, int64(99), cfg.Seed)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, "11110000", cfg.Mask)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("invalid strategy is a usage error", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-strategy", "greedy", "d.hcl"}, &out)
		require.Error(t, err)
		exitErr, ok := err.(*ExitError)
		require.True(t, ok)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid log level is a usage error", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-log-level", "loud", "d.hcl"}, &out)
		require.Error(t, err)
	})
}
