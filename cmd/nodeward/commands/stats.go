package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var maxTimeDiff int32

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the node's sync and validation status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, client, err := connect()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			stats, err := client.GetStats(ctx)
			if err != nil {
				return err
			}

			out := struct {
				Ready         bool   `json:"ready"`
				Running       bool   `json:"running"`
				TimeDiff      int32  `json:"time_diff"`
				LastMcBlock   string `json:"last_mc_block,omitempty"`
				InCurrentVset bool   `json:"in_current_vset"`
				InNextVset    bool   `json:"in_next_vset"`
			}{
				Ready:         stats.Ready,
				Running:       stats.Running(maxTimeDiff),
				TimeDiff:      stats.TimeDiff,
				LastMcBlock:   stats.LastMcBlock,
				InCurrentVset: stats.InCurrentVset,
				InNextVset:    stats.InNextVset,
			}
			buf, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(buf))
			return nil
		},
	}

	cmd.Flags().Int32Var(&maxTimeDiff, "max-time-diff", 120, "seconds of masterchain lag still considered running")
	return cmd
}
