package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func getParamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getparam <index>",
		Short: "Print one blockchain config parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			param, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("param index %q: %v", args[0], err)
			}

			ctx, cancel, client, err := connect()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			value, err := client.GetConfigParam(ctx, uint32(param))
			if err != nil {
				return err
			}
			os.Stdout.Write(value)
			fmt.Println()
			return nil
		},
	}
}
