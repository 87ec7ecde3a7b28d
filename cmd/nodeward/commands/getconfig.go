package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func getConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getconfig",
		Short: "Print the full blockchain config at the latest block",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, client, err := connect()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			config, err := client.GetConfigAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "block: %s\n", config.BlockID)
			os.Stdout.Write(config.Config)
			fmt.Println()
			return nil
		},
	}
}
