package main

import (
	"errors"
	"fmt"

	"github.com/bnema/wlclient"
	"github.com/bnema/wlclient/display"
	"github.com/bnema/wlclient/internal/logger"
)

// probeWindow is a toplevel without a buffer. It is never mapped but gives
// the compositor a window to ping, which keeps the connection honest.
type probeWindow struct {
	surface      *wlclient.Surface
	shellSurface *wlclient.ShellSurface
	pings        int
}

func newProbeWindow(conn *display.Connection, title string) (*probeWindow, error) {
	compositor := conn.Compositor()
	shell := conn.Shell()
	if compositor == nil || shell == nil {
		return nil, errors.New("compositor does not advertise wl_compositor and wl_shell")
	}

	surface, err := compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}

	// Empty input region: the probe never takes input
	region, err := compositor.CreateRegion()
	if err != nil {
		return nil, fmt.Errorf("create region: %w", err)
	}
	if err := surface.SetInputRegion(region); err != nil {
		return nil, err
	}
	if err := region.Destroy(); err != nil {
		return nil, err
	}

	shellSurface, err := shell.GetShellSurface(surface)
	if err != nil {
		return nil, fmt.Errorf("get shell surface: %w", err)
	}

	w := &probeWindow{surface: surface, shellSurface: shellSurface}
	shellSurface.OnPing = func(serial uint32) {
		w.pings++
		if err := shellSurface.Pong(serial); err != nil {
			logger.Warn("failed to answer ping", "error", err)
		}
	}
	shellSurface.OnConfigure = func(_ uint32, width, height int32) {
		logger.Debug("probe window configured", "width", width, "height", height)
	}

	if err := shellSurface.SetToplevel(); err != nil {
		return nil, err
	}
	if err := shellSurface.SetTitle(title); err != nil {
		return nil, err
	}
	if err := shellSurface.SetClass("wlprobe"); err != nil {
		return nil, err
	}
	if err := surface.Commit(); err != nil {
		return nil, err
	}

	conn.AddWindow(w)
	return w, nil
}

func (w *probeWindow) ID() uint32 {
	return w.surface.ID()
}

// close unregisters the window and destroys its surface.
func (w *probeWindow) close(conn *display.Connection) {
	conn.RemoveWindow(w)
	w.shellSurface.Destroy()
	if err := w.surface.Destroy(); err != nil {
		logger.Debug("failed to destroy probe surface", "error", err)
	}
	conn.Flush()
}
