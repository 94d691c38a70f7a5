package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func NewSwapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swaps [model|request|list]",
		Short: "Model swaps",
		Long:  `Inspect model assignments and request drift-driven swaps.`,
	}

	modelCmd := &cobra.Command{
		Use:   "model <patient_id>",
		Short: "Active model",
		Long:  `Show which model currently serves a patient.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			assignment, err := vsdk.ActiveModel(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, assignment)
		},
	}

	requestCmd := &cobra.Command{
		Use:   "request <patient_id> <drift_type> <confidence>",
		Short: "Request swap",
		Long: `Request a model swap in response to drift.

Examples:
  vigil-cli swaps request p1 sudden 0.95`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			confidence, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			swap, err := vsdk.Swap(args[0], args[1], confidence)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, swap)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <patient_id>",
		Short: "Swap history",
		Long:  `List a patient's swap history.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := vsdk.Swaps(args[0], defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(modelCmd)
	cmd.AddCommand(requestCmd)
	cmd.AddCommand(listCmd)

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

func NewAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts [list|monitor]",
		Short: "Monitoring alerts",
		Long:  `List raised alerts and inspect the background monitor.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		Long:  `List raised monitoring alerts.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := vsdk.Alerts(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor status",
		Long:  `Show the background monitor's state.`,
		Run: func(cmd *cobra.Command, args []string) {
			status, err := vsdk.Monitor()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, status)
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(monitorCmd)

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

func NewAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents [view|list|delete]",
		Short: "Fleet agents",
		Long:  `Inspect and remove fleet agents.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View agent",
		Long:  `View agent.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			a, err := vsdk.GetAgent(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, a)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Long:  `List fleet agents.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := vsdk.ListAgents(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete agent",
		Long:  `Remove an agent from the fleet.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := vsdk.DeleteAgent(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(deleteCmd)

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
