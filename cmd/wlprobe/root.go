package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bnema/wlclient/display"
	"github.com/bnema/wlclient/internal/config"
	"github.com/bnema/wlclient/internal/logger"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type rootOptions struct {
	configPath string
	socket     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "wlprobe",
		Short: "wlprobe - inspect a Wayland compositor",
		Long: `wlprobe connects to a Wayland compositor, lists the globals it advertises,
measures round-trips and services the connection like a client would.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: wlprobe.toml in the config directory)")
	cmd.PersistentFlags().StringVar(&opts.socket, "socket", "", "display name or socket path (default: $WAYLAND_DISPLAY)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newGlobalsCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	return cmd
}

func (o *rootOptions) init() error {
	config.Reset()
	config.SetConfigPath(o.configPath)
	if err := config.Init(); err != nil {
		return err
	}

	level := config.Get().Logging.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	if level != "" {
		logger.SetLevel(level)
	}
	return nil
}

func (o *rootOptions) socketName() string {
	if o.socket != "" {
		return o.socket
	}
	return config.Get().Display.Socket
}

// connect returns a working connection or the reason there is none. The
// caller destroys the host.
func (o *rootOptions) connect(quitter display.Quitter) (*display.Host, *display.Connection, error) {
	host := display.NewHost(display.Options{
		Quitter:     quitter,
		SyncTimeout: config.Get().Display.SyncTimeout,
	})

	conn := host.Connect(o.socketName())
	if conn.State() != display.StateConnected {
		err := conn.Err()
		host.DestroyDisplay()
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	return host, conn, nil
}
