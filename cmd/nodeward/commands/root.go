package commands

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nodeward/nodeward/config"
	"github.com/nodeward/nodeward/control"
	"github.com/nodeward/nodeward/noderpc"
)

var (
	rootDir string
	verbose bool
	timeout time.Duration
)

func Execute() error {
	root := &cobra.Command{
		Use:          "nodeward",
		Short:        "Operator tooling for a validator node's control endpoint",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", "", "config root (default: NODEWARD_ROOT, nearest .nodeward, or ~/.nodeward)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log connection details to stderr")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-command deadline (default: query_timeout from config)")

	root.AddCommand(initCmd(), pingCmd(), statsCmd(), getParamCmd(), getConfigCmd(), sendMessageCmd(), gcIntervalCmd())
	return root.Execute()
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func configRoot() (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	return config.Root()
}

// connect loads the config, dials the node's control endpoint and completes
// the handshake. The returned context carries the command deadline.
func connect() (context.Context, context.CancelFunc, *noderpc.Client, error) {
	root, err := configRoot()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, nil, err
	}
	serverKey, err := cfg.Control.ServerPublicKey()
	if err != nil {
		return nil, nil, nil, err
	}

	deadline := timeout
	if deadline == 0 {
		deadline = time.Duration(cfg.Control.QueryTimeout)
	}
	ctx, cancel := context.WithTimeout(context.Background(), deadline)

	log := newLogger()
	conn, err := control.Dial(ctx, cfg.Control.Address, &control.Config{
		ServerKey:    serverKey,
		QueryTimeout: time.Duration(cfg.Control.QueryTimeout),
		Logger:       &log,
	})
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, noderpc.NewClient(conn), nil
}
