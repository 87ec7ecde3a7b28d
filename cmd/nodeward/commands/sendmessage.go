package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func sendMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sendmessage <file>",
		Short: "Broadcast a signed external message read from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(message) == 0 {
				return fmt.Errorf("%s is empty", args[0])
			}

			ctx, cancel, client, err := connect()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			if err := client.SendMessage(ctx, message); err != nil {
				return err
			}
			fmt.Printf("message accepted (%d bytes)\n", len(message))
			return nil
		},
	}
}
