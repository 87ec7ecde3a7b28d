package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nodeward/nodeward/config"
)

func initCmd() *cobra.Command {
	var (
		addr      string
		serverKey string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config root with a config.toml template",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := rootDir
			if root == "" {
				var err error
				root, err = config.DefaultRoot()
				if err != nil {
					return err
				}
			}

			filename := filepath.Join(root, config.FileName)
			if _, err := os.Stat(filename); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", filename)
			}

			cfg := config.Default()
			if addr != "" {
				cfg.Control.Address = addr
			}
			cfg.Control.ServerKey = serverKey
			if serverKey != "" {
				if _, err := cfg.Control.ServerPublicKey(); err != nil {
					return err
				}
			}
			if err := cfg.Store(root); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", filename)
			if serverKey == "" {
				fmt.Println("Set control.server_key to the node's control public key before connecting.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "control endpoint address (default 127.0.0.1:5031)")
	cmd.Flags().StringVar(&serverKey, "server-key", "", "control server public key, base64")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.toml")
	return cmd
}
