package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlclient/internal/wltest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Keep real config files out of the way
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	// t.Chdir requires Go 1.24; restore the working directory manually.
	prevDir, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prevDir) })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGlobalsCommand(t *testing.T) {
	srv := wltest.NewServer(t)

	out, err := run(t, "globals", "--socket", srv.Path())
	require.NoError(t, err)

	assert.Contains(t, out, "Globals (6)")
	assert.Contains(t, out, "wl_compositor")
	assert.Contains(t, out, "wl_data_device_manager")
	assert.Contains(t, out, "Screens (1)")
	assert.Contains(t, out, "wltest virtual-1")
	assert.Contains(t, out, "1920x1080@60.00Hz")
	assert.Contains(t, out, "seat0")
	assert.Contains(t, out, "pointer, keyboard")
	assert.Contains(t, out, "xrgb8888")
	assert.NotContains(t, out, "Not advertised")
}

func TestGlobalsCommandReportsMissingGlobals(t *testing.T) {
	srv := wltest.NewServer(t, wltest.WithGlobals(
		wltest.Global{Name: 1, Interface: "wl_compositor", Version: 4},
	))

	out, err := run(t, "globals", "--socket", srv.Path())
	require.NoError(t, err)
	assert.Contains(t, out, "Not advertised: wl_shell, wl_shm")
	assert.Contains(t, out, "Seats (0)")
}

func TestSyncCommand(t *testing.T) {
	srv := wltest.NewServer(t)

	out, err := run(t, "sync", "-n", "3", "--socket", srv.Path())
	require.NoError(t, err)
	assert.Contains(t, out, "round-trip 3:")
	assert.Contains(t, out, "3 round-trips")
}

func TestSyncCommandRejectsZeroCount(t *testing.T) {
	srv := wltest.NewServer(t)

	_, err := run(t, "sync", "-n", "0", "--socket", srv.Path())
	assert.Error(t, err)
}

func TestWatchCommand(t *testing.T) {
	srv := wltest.NewServer(t)

	out, err := run(t, "watch", "--duration", "50ms", "--socket", srv.Path())
	require.NoError(t, err)
	assert.Contains(t, out, "Watching display: 1 screen(s), 1 seat(s)")
	assert.Contains(t, out, "answered 0 ping(s)")
}

func TestWatchCommandWithoutWindow(t *testing.T) {
	srv := wltest.NewServer(t)

	out, err := run(t, "watch", "--no-window", "--duration", "20ms", "--socket", srv.Path())
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped after")
	assert.NotContains(t, out, "ping")
}

func TestConnectFailureIsReported(t *testing.T) {
	_, err := run(t, "globals", "--socket", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestBadConfigFile(t *testing.T) {
	_, err := run(t, "globals", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
