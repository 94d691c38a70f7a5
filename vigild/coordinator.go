// Package vigild bundles the Vigil daemons behind one cobra binary so
// a fleet can be brought up without systemd units per service.
package vigild

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/magistrala/pkg/jaeger"
	"github.com/absmach/magistrala/pkg/prometheus"
	"github.com/absmach/magistrala/pkg/server"
	httpserver "github.com/absmach/magistrala/pkg/server/http"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	vigil "github.com/vigil-fl/vigil"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/coordinator/api"
	"github.com/vigil-fl/vigil/coordinator/middleware"
	"github.com/vigil-fl/vigil/pkg/aggregate"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/mqtt"
	"github.com/vigil-fl/vigil/pkg/storage"
)

const coordinatorSvcName = "coordinator"

type CoordinatorConfig struct {
	LogLevel    string
	InstanceID  string
	MQTTAddress string
	MQTTQoS     uint8
	MQTTTimeout time.Duration
	ChannelID   string
	ThingID     string
	ThingKey    string
	ProfilePath string
	Coordinator coordinator.Config
	Aggregate   aggregate.Config
	Drift       drift.Config
	Models      models.Config
	Storage     storage.Config
	Server      server.Config
	OTELURL     url.URL
	TraceRatio  float64
}

func StartCoordinator(ctx context.Context, cancel context.CancelFunc, cfg CoordinatorConfig) error {
	g, ctx := errgroup.WithContext(ctx)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, coordinatorSvcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				slog.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(coordinatorSvcName)

	var routing map[string]string
	if cfg.ProfilePath != "" {
		profile, err := vigil.LoadConfig(cfg.ProfilePath)
		if err != nil {
			return fmt.Errorf("failed to load profile: %s", err.Error())
		}
		cfg.Drift.Categories = profile.DriftCategories()
		cfg.Models.Catalogue = profile.Catalogue()
		routing = profile.SwapRouting()
	}

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, cfg.InstanceID, cfg.ThingID, cfg.ThingKey, cfg.ChannelID, coordinatorSvcName, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
	}

	aggregator, err := aggregate.New(cfg.Aggregate, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize aggregator: %s", err.Error())
	}
	detector := drift.New(cfg.Drift, logger)

	registry, err := models.NewRegistry(cfg.Models, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize model registry: %s", err.Error())
	}

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %s", err.Error())
	}
	swaps := models.NewSwapState(registry, repos.Swaps, routing, logger)

	archive, err := coordinator.NewArchive(cfg.Coordinator.SnapshotDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot archive: %s", err.Error())
	}

	cfg.Coordinator.ChannelID = cfg.ChannelID

	svc, err := coordinator.NewService(cfg.Coordinator, aggregator, detector, registry, swaps, repos, archive, mqttPubSub, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize coordinator: %s", err.Error())
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(coordinatorSvcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to fleet channel: %s", err.Error())
	}
	if err := svc.StartMonitor(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %s", err.Error())
	}
	defer func() {
		if err := svc.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shut down coordinator", slog.Any("error", err))
		}
	}()

	hs := httpserver.NewServer(ctx, cancel, coordinatorSvcName, cfg.Server, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, coordinatorSvcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", coordinatorSvcName, err))
	}

	return nil
}

var coordinatorCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start coordinator",
		Long:  `Start coordinator.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := CoordinatorConfig{
				LogLevel:    logLevel,
				InstanceID:  id,
				MQTTAddress: mqttAddress,
				MQTTQoS:     uint8(mqttQOS),
				MQTTTimeout: mqttTimeout,
				ChannelID:   channelID,
				ThingID:     thingID,
				ThingKey:    thingKey,
				ProfilePath: profilePath,
				Coordinator: coordinator.DefaultConfig(),
				Aggregate:   aggregate.DefaultConfig(),
				Drift:       drift.DefaultConfig(),
				Models:      models.Config{},
				Storage:     storage.Config{Type: "memory"},
				Server: server.Config{
					Port: "7070",
				},
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			if err := StartCoordinator(ctx, cancel, cfg); err != nil {
				cmd.PrintErrf("failed to start coordinator: %s", err.Error())
			}
			cancel()
		},
	},
}

func NewCoordinatorCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "coordinator [start]",
		Short: "Coordinator management",
		Long:  `Start the aggregation coordinator for Vigil.`,
	}

	for i := range coordinatorCmd {
		cmd.AddCommand(&coordinatorCmd[i])
	}

	cmd.PersistentFlags().StringVarP(
		&logLevel,
		"log-level",
		"l",
		logLevel,
		"Log level",
	)

	cmd.PersistentFlags().StringVarP(
		&profilePath,
		"profile",
		"p",
		profilePath,
		"Path to the TOML deployment profile",
	)

	cmd.PersistentFlags().StringVarP(
		&mqttAddress,
		"mqtt-address",
		"m",
		mqttAddress,
		"MQTT Address",
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
		"Coordinator Thing ID",
	)

	cmd.PersistentFlags().StringVarP(
		&thingKey,
		"thing-key",
		"k",
		thingKey,
		"Coordinator Thing Key",
	)

	return &cmd
}
