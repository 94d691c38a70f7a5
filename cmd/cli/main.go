package main

import (
	"log"

	smqSDK "github.com/absmach/magistrala/pkg/sdk/go"
	"github.com/spf13/cobra"

	"github.com/vigil-fl/vigil/cli"
	"github.com/vigil-fl/vigil/pkg/sdk"
)

const (
	defCoordinatorURL  = "http://localhost:7070"
	defUsersURL        = "http://localhost:9002"
	defThingsURL       = "http://localhost:9000"
	defDomainsURL      = "http://localhost:8189"
	defTLSVerification = false
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vigil-cli",
		Short: "Vigil CLI",
		Long:  `Vigil CLI is a command line interface for interacting with Vigil components.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  defCoordinatorURL,
				TLSVerification: defTLSVerification,
			}
			cli.SetVigilSDK(sdk.NewSDK(sdkConf))

			smqConf := smqSDK.Config{
				UsersURL:   defUsersURL,
				ThingsURL:  defThingsURL,
				DomainsURL: defDomainsURL,
			}
			cli.SetSuperMQSDK(smqSDK.NewSDK(smqConf))
		},
	}

	rootCmd.AddCommand(cli.NewProvisionCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewModelCmd())
	rootCmd.AddCommand(cli.NewAgentsCmd())
	rootCmd.AddCommand(cli.NewPatientsCmd())
	rootCmd.AddCommand(cli.NewDriftCmd())
	rootCmd.AddCommand(cli.NewSwapsCmd())
	rootCmd.AddCommand(cli.NewAlertsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
