package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the control endpoint answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, client, err := connect()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			start := time.Now()
			if err := client.Ping(ctx); err != nil {
				return err
			}
			fmt.Printf("pong in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
