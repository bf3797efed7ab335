package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/wlclient"
	"github.com/bnema/wlclient/display"
)

func newGlobalsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "globals",
		Short: "List the compositor's globals, screens and seats",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, conn, err := opts.connect(nil)
			if err != nil {
				return err
			}
			defer host.DestroyDisplay()

			// Collect the events sent in answer to the binds
			if _, err := conn.SyncDisplay(); err != nil {
				return err
			}

			printGlobals(cmd, conn)
			return nil
		},
	}
}

func printGlobals(cmd *cobra.Command, conn *display.Connection) {
	out := cmd.OutOrStdout()

	globals := conn.Display().Registry().GetGlobals()
	names := make([]uint32, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Globals (%d)", len(globals))))
	for _, name := range names {
		g := globals[name]
		kind := display.ParseGlobalKind(g.Interface)
		line := fmt.Sprintf("  %3d  %-40s v%d", g.Name, g.Interface, g.Version)
		if kind == display.GlobalUnknown {
			fmt.Fprintln(out, dimStyle.Render(line))
			continue
		}
		fmt.Fprintln(out, line+"  "+successStyle.Render(kind.String()))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Screens (%d)", len(conn.Screens()))))
	for _, s := range conn.Screens() {
		g := s.Geometry()
		m := s.Mode()
		fmt.Fprintf(out, "  %3d  %s %s  %dx%d@%.2fHz  at (%d,%d)  scale %d\n",
			s.ID(), g.Make, g.Model, m.Width, m.Height, float64(m.Refresh)/1000, g.X, g.Y, s.Scale())
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Seats (%d)", len(conn.InputDevices()))))
	for _, dev := range conn.InputDevices() {
		name := dev.Name()
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(out, "  %3d  %s  %s\n", dev.ID(), name, infoStyle.Render(capabilityNames(dev.Capabilities())))
	}

	if shm := conn.Shm(); shm != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render("Shm formats"))
		for _, f := range shm.Formats() {
			fmt.Fprintf(out, "  %s\n", formatName(f))
		}
	}

	missing := []string{}
	if conn.Compositor() == nil {
		missing = append(missing, "wl_compositor")
	}
	if conn.Shell() == nil {
		missing = append(missing, "wl_shell")
	}
	if conn.Shm() == nil {
		missing = append(missing, "wl_shm")
	}
	if len(missing) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, warnStyle.Render("Not advertised: "+strings.Join(missing, ", ")))
	}
}

func capabilityNames(caps uint32) string {
	var names []string
	if caps&wlclient.SeatCapabilityPointer != 0 {
		names = append(names, "pointer")
	}
	if caps&wlclient.SeatCapabilityKeyboard != 0 {
		names = append(names, "keyboard")
	}
	if caps&wlclient.SeatCapabilityTouch != 0 {
		names = append(names, "touch")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func formatName(format uint32) string {
	switch format {
	case wlclient.FormatARGB8888:
		return "argb8888"
	case wlclient.FormatXRGB8888:
		return "xrgb8888"
	case wlclient.FormatRGB888:
		return "rgb888"
	case wlclient.FormatBGR888:
		return "bgr888"
	case wlclient.FormatRGB565:
		return "rgb565"
	case wlclient.FormatXRGB1555:
		return "xrgb1555"
	case wlclient.FormatY8:
		return "y8"
	default:
		return fmt.Sprintf("0x%08x", format)
	}
}
