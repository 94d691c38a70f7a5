package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vigil-fl/vigil/pkg/sdk"
)

var (
	features    []float64
	prediction  float64
	driftMethod string
)

func NewPatientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients [create|view|list|observe|predict]",
		Short: "Patients manager",
		Long:  `Enroll patients, stream observations and run inference.`,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create patient",
		Long: `Enroll a patient for drift monitoring.

Examples:
  # Enroll with the default category
  vigil-cli patients create "John Doe"`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := vsdk.CreatePatient(sdk.Patient{
				Name: args[0],
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View patient",
		Long:  `View patient.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := vsdk.GetPatient(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients",
		Long:  `List enrolled patients.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := vsdk.ListPatients(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	observeCmd := &cobra.Command{
		Use:   "observe <id>",
		Short: "Feed observation",
		Long: `Feed one telemetry sample into a patient's drift window.

Examples:
  vigil-cli patients observe p1 --features=63,1,3,145,233,1,0,150,0,2.3,0,0,1`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := vsdk.Observe(args[0], sdk.Observation{
				Features:   features,
				Prediction: prediction,
			}); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	predictCmd := &cobra.Command{
		Use:   "predict <id>",
		Short: "Run inference",
		Long:  `Run drift-aware inference for a patient.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := vsdk.Predict(args[0], features)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cmd.AddCommand(createCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(observeCmd)
	cmd.AddCommand(predictCmd)

	cmd.PersistentFlags().Float64SliceVar(
		&features,
		"features",
		[]float64{},
		"Feature vector (comma-separated)",
	)

	cmd.PersistentFlags().Float64Var(
		&prediction,
		"prediction",
		0,
		"Model prediction accompanying the sample",
	)

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

func NewDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift [detect|status|history]",
		Short: "Drift detection",
		Long:  `Run drift detection and inspect detection history.`,
	}

	detectCmd := &cobra.Command{
		Use:   "detect <patient_id>",
		Short: "Detect drift",
		Long: `Feed one sample and run drift detection.

Examples:
  # Let the detector pick the method
  vigil-cli drift detect p1 --features=63,1,3,145,233,1,0,150,0,2.3,0,0,1

  # Force the full ensemble
  vigil-cli drift detect p1 --features=... --method=ensemble`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			result, err := vsdk.Detect(args[0], sdk.Observation{
				Features:   features,
				Prediction: prediction,
			}, driftMethod)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, result)
		},
	}

	detectCmd.Flags().StringVar(
		&driftMethod,
		"method",
		"",
		"Detection method (auto, statistical, distribution, clustering, pattern, ensemble)",
	)

	statusCmd := &cobra.Command{
		Use:   "status <patient_id>",
		Short: "Drift window status",
		Long:  `Show a patient's drift window state.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			status, err := vsdk.DriftStatus(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, status)
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <patient_id>",
		Short: "Detection history",
		Long:  `List a patient's past detection results.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := vsdk.DriftHistory(args[0], defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(detectCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(historyCmd)

	cmd.PersistentFlags().Float64SliceVar(
		&features,
		"features",
		[]float64{},
		"Feature vector (comma-separated)",
	)

	cmd.PersistentFlags().Float64Var(
		&prediction,
		"prediction",
		0,
		"Model prediction accompanying the sample",
	)

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

func readWeightsFile(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var weights map[string][]float64
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, err
	}

	return weights, nil
}
