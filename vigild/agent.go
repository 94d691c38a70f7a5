package vigild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/pkg/mqtt"
)

var (
	logLevel         = "info"
	mqttAddress      = "tcp://localhost:1883"
	mqttTimeout      = 30 * time.Second
	mqttQOS          = 2
	channelID        = ""
	thingID          = ""
	thingKey         = ""
	profilePath      = ""
	id               = uuid.NewString()
	livenessInterval = 10 * time.Second
	vitalsInterval   = 2 * time.Second
	updateInterval   = 30 * time.Second
	patientIDs       []string
)

const agentSvcName = "agent"

func StartAgent(ctx context.Context, cfg agent.Config, mqttURL string, qos uint8, timeout time.Duration) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	mqttPubSub, err := mqtt.NewPubSub(mqttURL, qos, cfg.ID, thingID, thingKey, cfg.ChannelID, agentSvcName, timeout, logger)
	if err != nil {
		return errors.Join(errors.New("failed to initialize mqtt client"), err)
	}

	svc, err := agent.NewService(ctx, cfg, mqttPubSub, logger)
	if err != nil {
		return errors.Join(errors.New("failed to initialize agent"), err)
	}

	if err := svc.Run(ctx); err != nil {
		return errors.Join(errors.New("failed to run agent"), err)
	}

	return nil
}

var agentCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start agent",
		Long:  `Start agent.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := agent.Config{
				ID:               id,
				ChannelID:        channelID,
				LivenessInterval: livenessInterval,
				VitalsInterval:   vitalsInterval,
				UpdateInterval:   updateInterval,
				PatientIDs:       patientIDs,
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartAgent(ctx, cfg, mqttAddress, uint8(mqttQOS), mqttTimeout); err != nil {
				cmd.PrintErrf("failed to start agent: %s", err.Error())
			}
		},
	},
}

func NewAgentCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "agent [start]",
		Short: "Agent management",
		Long:  `Start an edge agent for Vigil.`,
	}

	for i := range agentCmd {
		cmd.AddCommand(&agentCmd[i])
	}

	cmd.PersistentFlags().StringVarP(
		&logLevel,
		"log-level",
		"l",
		logLevel,
		"Log level",
	)

	cmd.PersistentFlags().StringVarP(
		&id,
		"id",
		"i",
		id,
		"Agent ID",
	)

	cmd.PersistentFlags().DurationVarP(
		&mqttTimeout,
		"mqtt-timeout",
		"o",
		mqttTimeout,
		"MQTT Timeout",
	)

	cmd.PersistentFlags().IntVarP(
		&mqttQOS,
		"mqtt-qos",
		"q",
		mqttQOS,
		"MQTT QOS",
	)

	cmd.PersistentFlags().DurationVarP(
		&livenessInterval,
		"liveness-interval",
		"I",
		livenessInterval,
		"Liveness Interval",
	)

	cmd.PersistentFlags().DurationVarP(
		&vitalsInterval,
		"vitals-interval",
		"v",
		vitalsInterval,
		"Vitals Interval",
	)

	cmd.PersistentFlags().DurationVarP(
		&updateInterval,
		"update-interval",
		"u",
		updateInterval,
		"Parameter Update Interval",
	)

	cmd.PersistentFlags().StringSliceVarP(
		&patientIDs,
		"patients",
		"P",
		patientIDs,
		"Patient IDs simulated by this agent (comma-separated)",
	)

	cmd.PersistentFlags().StringVarP(
		&mqttAddress,
		"mqtt-address",
		"m",
		mqttAddress,
		"MQTT Address",
	)

	cmd.PersistentFlags().StringVarP(
		&channelID,
		"channel-id",
		"c",
		channelID,
		"Fleet Channel ID",
	)

	cmd.PersistentFlags().StringVarP(
		&thingID,
		"thing-id",
		"t",
		thingID,
		"Agent Thing ID",
	)

	cmd.PersistentFlags().StringVarP(
		&thingKey,
		"thing-key",
		"k",
		thingKey,
		"Agent Thing Key",
	)

	return &cmd
}
