package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Measure display round-trips",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}

			host, conn, err := opts.connect(nil)
			if err != nil {
				return err
			}
			defer host.DestroyDisplay()

			out := cmd.OutOrStdout()
			var total, fastest, slowest time.Duration
			for i := 0; i < count; i++ {
				start := time.Now()
				n, err := conn.SyncDisplay()
				elapsed := time.Since(start)
				if err != nil {
					return fmt.Errorf("round-trip %d: %w", i+1, err)
				}

				total += elapsed
				if i == 0 || elapsed < fastest {
					fastest = elapsed
				}
				if elapsed > slowest {
					slowest = elapsed
				}
				fmt.Fprintf(out, "  round-trip %d: %s %s\n", i+1, elapsed, dimStyle.Render(fmt.Sprintf("(%d events)", n)))
			}

			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%d round-trips: min %s, avg %s, max %s",
				count, fastest, total/time.Duration(count), slowest)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of round-trips")
	return cmd
}
