package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func gcIntervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gcinterval <duration>",
		Short: "Set the node's shard state GC interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("interval %q: %v", args[0], err)
			}

			ctx, cancel, client, err := connect()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			if err := client.SetStatesGcInterval(ctx, interval); err != nil {
				return err
			}
			fmt.Printf("states gc interval set to %s\n", interval)
			return nil
		},
	}
}
