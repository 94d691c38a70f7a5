package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/magistrala/pkg/jaeger"
	"github.com/absmach/magistrala/pkg/prometheus"
	"github.com/absmach/magistrala/pkg/server"
	httpserver "github.com/absmach/magistrala/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
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

const (
	svcName       = "coordinator"
	defHTTPPort   = "7070"
	envPrefixHTTP = "VIGIL_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel    string        `env:"VIGIL_LOG_LEVEL"        envDefault:"info"`
	InstanceID  string        `env:"VIGIL_INSTANCE_ID"`
	MQTTAddress string        `env:"VIGIL_MQTT_ADDRESS"     envDefault:"tcp://localhost:1883"`
	MQTTQoS     uint8         `env:"VIGIL_MQTT_QOS"         envDefault:"2"`
	MQTTTimeout time.Duration `env:"VIGIL_MQTT_TIMEOUT"     envDefault:"30s"`
	ThingID     string        `env:"VIGIL_COORDINATOR_THING_ID"`
	ThingKey    string        `env:"VIGIL_COORDINATOR_THING_KEY"`
	ChannelID   string        `env:"VIGIL_CHANNEL_ID"`
	ProfilePath string        `env:"VIGIL_PROFILE_PATH"`
	Server      server.Config
	OTELURL     url.URL `env:"VIGIL_OTEL_URL"`
	TraceRatio  float64 `env:"VIGIL_TRACE_RATIO" envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	coordCfg := coordinator.Config{}
	if err := env.Parse(&coordCfg); err != nil {
		log.Fatalf("failed to load coordinator configuration : %s", err.Error())
	}
	coordCfg.ChannelID = cfg.ChannelID

	aggCfg := aggregate.Config{}
	if err := env.ParseWithOptions(&aggCfg, env.Options{Prefix: "VIGIL_"}); err != nil {
		log.Fatalf("failed to load aggregation configuration : %s", err.Error())
	}

	driftCfg := drift.Config{}
	if err := env.ParseWithOptions(&driftCfg, env.Options{Prefix: "VIGIL_"}); err != nil {
		log.Fatalf("failed to load drift configuration : %s", err.Error())
	}

	modelsCfg := models.Config{}
	if err := env.ParseWithOptions(&modelsCfg, env.Options{Prefix: "VIGIL_"}); err != nil {
		log.Fatalf("failed to load model registry configuration : %s", err.Error())
	}

	storageCfg := storage.Config{}
	if err := env.ParseWithOptions(&storageCfg, env.Options{Prefix: "VIGIL_"}); err != nil {
		log.Fatalf("failed to load storage configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
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
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	var routing map[string]string
	if cfg.ProfilePath != "" {
		profile, err := vigil.LoadConfig(cfg.ProfilePath)
		if err != nil {
			logger.Error("failed to load profile", slog.String("path", cfg.ProfilePath), slog.Any("error", err))

			return
		}
		driftCfg.Categories = profile.DriftCategories()
		modelsCfg.Catalogue = profile.Catalogue()
		routing = profile.SwapRouting()
	}

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, cfg.InstanceID, cfg.ThingID, cfg.ThingKey, cfg.ChannelID, svcName, cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}

	aggregator, err := aggregate.New(aggCfg, logger)
	if err != nil {
		logger.Error("failed to initialize aggregator", slog.String("error", err.Error()))

		return
	}
	detector := drift.New(driftCfg, logger)

	registry, err := models.NewRegistry(modelsCfg, logger)
	if err != nil {
		logger.Error("failed to initialize model registry", slog.String("error", err.Error()))

		return
	}

	repos, err := storage.NewRepositories(storageCfg)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))

		return
	}
	swaps := models.NewSwapState(registry, repos.Swaps, routing, logger)

	archive, err := coordinator.NewArchive(coordCfg.SnapshotDir, logger)
	if err != nil {
		logger.Error("failed to initialize snapshot archive", slog.String("error", err.Error()))

		return
	}

	svc, err := coordinator.NewService(coordCfg, aggregator, detector, registry, swaps, repos, archive, mqttPubSub, logger)
	if err != nil {
		logger.Error("failed to initialize coordinator", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		logger.Error("failed to subscribe to fleet channel", slog.String("error", err.Error()))

		return
	}
	if err := svc.StartMonitor(ctx); err != nil {
		logger.Error("failed to start monitor", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := svc.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shut down coordinator", slog.Any("error", err))
		}
	}()

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
