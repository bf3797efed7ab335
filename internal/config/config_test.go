package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	Reset()
	t.Cleanup(Reset)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlprobe.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitDefaults(t *testing.T) {
	reset(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	// t.Chdir requires Go 1.24; restore the working directory manually.
	prevDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prevDir) })

	require.NoError(t, Init())

	c := Get()
	assert.Equal(t, "", c.Display.Socket)
	assert.Equal(t, time.Duration(0), c.Display.SyncTimeout)
	assert.Equal(t, 16*time.Millisecond, c.Display.FlushInterval)
	assert.Equal(t, "", c.Logging.LogLevel)
}

func TestInitReadsFile(t *testing.T) {
	reset(t)
	SetConfigPath(writeConfig(t, `
[display]
socket = "wayland-1"
sync_timeout = "250ms"
flush_interval = "5ms"

[logging]
log_level = "debug"
`))

	require.NoError(t, Init())

	c := Get()
	assert.Equal(t, "wayland-1", c.Display.Socket)
	assert.Equal(t, 250*time.Millisecond, c.Display.SyncTimeout)
	assert.Equal(t, 5*time.Millisecond, c.Display.FlushInterval)
	assert.Equal(t, "debug", c.Logging.LogLevel)
	assert.Equal(t, "wlprobe.toml", filepath.Base(GetConfigPath()))
}

func TestInitEnvironmentOverrides(t *testing.T) {
	reset(t)
	SetConfigPath(writeConfig(t, `
[display]
socket = "wayland-1"
`))
	t.Setenv("WLPROBE_DISPLAY_SOCKET", "wayland-9")
	t.Setenv("WLPROBE_DISPLAY_SYNC_TIMEOUT", "1s")

	require.NoError(t, Init())

	c := Get()
	assert.Equal(t, "wayland-9", c.Display.Socket)
	assert.Equal(t, time.Second, c.Display.SyncTimeout)
}

func TestInitRejectsInvalidTOML(t *testing.T) {
	reset(t)
	SetConfigPath(writeConfig(t, "[display\nsocket = 1"))

	assert.Error(t, Init())
}

func TestInitRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative sync timeout", "[display]\nsync_timeout = \"-1s\"\n"},
		{"zero flush interval", "[display]\nflush_interval = \"0s\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset(t)
			SetConfigPath(writeConfig(t, tt.body))

			assert.Error(t, Init())
			assert.Same(t, &DefaultConfig, Get(), "a rejected config is not installed")
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	reset(t)

	SetConfigPath("/etc/wlprobe/custom.toml")
	assert.Equal(t, "/etc/wlprobe/custom.toml", GetConfigPath())

	SetConfigPath("")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, "/xdg/wlprobe/wlprobe.toml", GetConfigPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/probe")
	assert.Equal(t, "/home/probe/.config/wlprobe/wlprobe.toml", GetConfigPath())
}
