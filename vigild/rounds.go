package vigild

import (
	"github.com/spf13/cobra"

	"github.com/vigil-fl/vigil/pkg/sdk"
)

var (
	DefTLSVerification        = false
	DefCoordinatorURL         = "http://localhost:7070"
	defOffset          uint64 = 0
	defLimit           uint64 = 10
)

var vsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	vsdk = s
}

var roundsCmd = []cobra.Command{
	{
		Use:   "list",
		Short: "List rounds",
		Long:  `List completed aggregation rounds.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := vsdk.Rounds(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	},
	{
		Use:   "status",
		Short: "Round status",
		Long:  `Show the coordinator's pending round state.`,
		Run: func(cmd *cobra.Command, args []string) {
			status, err := vsdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, status)
		},
	},
	{
		Use:   "aggregate",
		Short: "Force aggregation",
		Long:  `Aggregate the pending buffer without waiting for the quorum.`,
		Run: func(cmd *cobra.Command, args []string) {
			rec, err := vsdk.Aggregate()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, rec)
		},
	},
	{
		Use:   "reset",
		Short: "Reset pending round",
		Long:  `Discard all buffered client updates.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := vsdk.ResetRound(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	},
}

func NewRoundsCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "rounds [list|status|aggregate|reset]",
		Short: "Rounds management",
		Long:  `Inspect and control federated aggregation rounds.`,
	}

	for i := range roundsCmd {
		cmd.AddCommand(&roundsCmd[i])
	}

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"O",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"L",
		defLimit,
		"Limit",
	)

	return &cmd
}
