package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/vigil-fl/vigil/pkg/sdk"
	"github.com/vigil-fl/vigil/vigild"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vigild",
		Short: "Vigil Daemon",
		Long:  `Vigil Daemon is a daemon that manages the lifecycle of Vigil components.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  vigild.DefCoordinatorURL,
				TLSVerification: vigild.DefTLSVerification,
			}
			vigild.SetSDK(sdk.NewSDK(sdkConf))
		},
	}

	rootCmd.AddCommand(vigild.NewCoordinatorCmd())
	rootCmd.AddCommand(vigild.NewAgentCmd())
	rootCmd.AddCommand(vigild.NewRoundsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
