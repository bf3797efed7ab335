package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/wlclient/display"
	"github.com/bnema/wlclient/internal/config"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		title    string
		noWindow bool
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Service the connection until interrupted",
		Long: `watch keeps a connection open and services it on every tick of the flush
interval. Unless --no-window is given it registers an unmapped toplevel so the
compositor has a window to ping.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loop := display.NewLoop(config.Get().Display.FlushInterval)
			host, conn, err := opts.connect(loop)
			if err != nil {
				return err
			}
			defer host.DestroyDisplay()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			var w *probeWindow
			if !noWindow {
				if w, err = newProbeWindow(conn, title); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("Watching display: %d screen(s), %d seat(s). Press Ctrl-C to stop.",
				len(conn.Screens()), len(conn.InputDevices()))))

			start := time.Now()
			err = loop.Run(ctx, conn)
			if w != nil {
				w.close(conn)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				err = nil
			}
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("Stopped after %s", time.Since(start).Round(time.Millisecond))
			if w != nil {
				summary += fmt.Sprintf(", answered %d ping(s)", w.pings)
			}
			fmt.Fprintln(out, successStyle.Render(summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "wlprobe", "title of the probe window")
	cmd.Flags().BoolVar(&noWindow, "no-window", false, "do not register a probe window")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}
