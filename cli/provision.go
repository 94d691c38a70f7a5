package cli

import (
	"fmt"
	"os"

	smqSDK "github.com/absmach/magistrala/pkg/sdk/go"
	"github.com/absmach/supermq/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	errFailedToCreateToken      = errors.New("failed to create access token")
	errFailedToCreateDomain     = errors.New("failed to create domain")
	errFailedChannelCreation    = errors.New("failed to create channel")
	errFailedClientCreation     = errors.New("failed to create client")
	errFailedConnectionCreation = errors.New("failed to create connection")

	smqSDKInstance smqSDK.SDK
)

const filePermission = 0o644

// SetSuperMQSDK sets supermq SDK instance.
func SetSuperMQSDK(s smqSDK.SDK) {
	smqSDKInstance = s
}

type Result struct {
	CoordinatorThing smqSDK.Thing   `json:"coordinator_thing,omitempty"`
	AgentThing       smqSDK.Thing   `json:"agent_thing,omitempty"`
	FleetChannel     smqSDK.Channel `json:"fleet_channel,omitempty"`
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision resources",
	Long:  `Provision necessary resources for Vigil operation.`,
	Run: func(cmd *cobra.Command, args []string) {
		u := smqSDK.Login{
			Identity: "admin@example.com",
			Secret:   "12345678",
		}

		tkn, err := smqSDKInstance.CreateToken(u)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedToCreateToken, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created access token")

		domain := smqSDK.Domain{
			Name:       "vigil",
			Alias:      "vigil",
			Permission: "admin",
		}

		domain, err = smqSDKInstance.CreateDomain(domain, tkn.AccessToken)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedToCreateDomain, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created domain")

		coordinatorThing := smqSDK.Thing{
			Name:   "Vigil Coordinator",
			Tags:   []string{"coordinator", "vigil"},
			Status: "enabled",
		}

		coordinatorThing, err = smqSDKInstance.CreateThing(coordinatorThing, domain.ID, tkn.AccessToken)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedClientCreation, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created coordinator client")

		agentThing := smqSDK.Thing{
			Name:   "Vigil Agent",
			Tags:   []string{"agent", "vigil"},
			Status: "enabled",
		}

		agentThing, err = smqSDKInstance.CreateThing(agentThing, domain.ID, tkn.AccessToken)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedClientCreation, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created agent client")

		fleetChannel := smqSDK.Channel{
			Name:   "Vigil Fleet",
			Status: "enabled",
		}
		fleetChannel, err = smqSDKInstance.CreateChannel(fleetChannel, domain.ID, tkn.AccessToken)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedChannelCreation, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created fleet channel")

		coordinatorConns := smqSDK.Connection{
			ThingID:   coordinatorThing.ID,
			ChannelID: fleetChannel.ID,
		}
		err = smqSDKInstance.Connect(coordinatorConns, domain.ID, tkn.AccessToken)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedConnectionCreation, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created coordinator connections")

		agentConns := smqSDK.Connection{
			ThingID:   agentThing.ID,
			ChannelID: fleetChannel.ID,
		}

		err = smqSDKInstance.Connect(agentConns, domain.ID, tkn.AccessToken)
		if err != nil {
			logErrorCmd(*cmd, errors.Wrap(errFailedConnectionCreation, err))

			return
		}
		logSuccessCmd(*cmd, "Successfully created agent connections")

		res := Result{
			CoordinatorThing: coordinatorThing,
			AgentThing:       agentThing,
			FleetChannel:     fleetChannel,
		}

		configContent := fmt.Sprintf(`# SuperMQ Environment Configuration

# Coordinator Configuration
VIGIL_COORDINATOR_THING_ID=%s
VIGIL_COORDINATOR_THING_KEY=%s

# Agent Configuration
VIGIL_AGENT_ID=%s
VIGIL_AGENT_THING_KEY=%s

# Shared Fleet Channel
VIGIL_CHANNEL_ID=%s`,
			coordinatorThing.ID,
			coordinatorThing.Credentials.Secret,
			agentThing.ID,
			agentThing.Credentials.Secret,
			fleetChannel.ID,
		)

		if err := os.WriteFile(".env", []byte(configContent), filePermission); err != nil {
			logErrorCmd(*cmd, errors.New("failed to create .env file"))

			return
		}
		logSuccessCmd(*cmd, "Successfully created .env file")

		logJSONCmd(*cmd, res)
	},
}

func NewProvisionCmd() *cobra.Command {
	return provisionCmd
}
