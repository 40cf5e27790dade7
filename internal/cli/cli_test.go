package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/panelsync/internal/config"
	"github.com/vk/panelsync/internal/testutil"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg, shouldExit, err := Parse([]string{"-root", root}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, config.GatewaySocketIO, cfg.Gateway.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Stability.InitialDelay)
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-gateway-url")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: "flag provided but not defined: -bogus"},
		{name: "positional argument", args: []string{"extra"}, wantErr: `unexpected argument "extra"`},
		{name: "bad log format", args: []string{"-log-format", "xml"}, wantErr: "invalid log format"},
		{name: "bad log level", args: []string{"-log-level", "loud"}, wantErr: "invalid log level"},
		{name: "bad gateway", args: []string{"-gateway", "pipe"}, wantErr: "invalid gateway mode"},
		{name: "zero workers", args: []string{"-workers", "0"}, wantErr: "workers must be positive"},
		{name: "missing config file", args: []string{"-config", "/definitely/not/here.hcl"}, wantErr: "failed to parse config file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Parse(append([]string{"-root", t.TempDir()}, tc.args...), &bytes.Buffer{})

			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}

func TestParse_FlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "panelsync.hcl", `
root      = "`+dir+`/from-file"
workers   = 7
log_level = "warn"

gateway {
  mode = "log"
}
`)

	// --- Act ---
	cfg, _, err := Parse([]string{"-config", path, "-workers", "3"}, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, dir+"/from-file", cfg.Root, "file value kept when flag absent")
	assert.Equal(t, 3, cfg.Workers, "explicit flag wins over file")
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, config.GatewayLog, cfg.Gateway.Mode)
}
