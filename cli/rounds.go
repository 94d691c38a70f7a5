package cli

import (
	"github.com/spf13/cobra"

	"github.com/vigil-fl/vigil/pkg/sdk"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var vsdk sdk.SDK

func SetVigilSDK(s sdk.SDK) {
	vsdk = s
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [list|status|aggregate|reset]",
		Short: "Aggregation rounds",
		Long:  `Inspect and control federated aggregation rounds.`,
	}

	listCmd := &cobra.Command{
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
	}

	statusCmd := &cobra.Command{
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
	}

	aggregateCmd := &cobra.Command{
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
	}

	resetCmd := &cobra.Command{
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
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(aggregateCmd)
	cmd.AddCommand(resetCmd)

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)

	return cmd
}

func NewModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model [view|set]",
		Short: "Global model",
		Long:  `View or replace the global model parameters.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View global model",
		Long:  `View the current global model parameters.`,
		Run: func(cmd *cobra.Command, args []string) {
			model, err := vsdk.GlobalModel()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, model)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <weights.json>",
		Short: "Set global model",
		Long: `Replace the global model from a JSON file of named parameter arrays.

Examples:
  # Seed the model from a checkpoint export
  vigil-cli model set checkpoint.json`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			weights, err := readWeightsFile(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			model, err := vsdk.SetGlobalModel(weights)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, model)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(setCmd)

	return cmd
}
