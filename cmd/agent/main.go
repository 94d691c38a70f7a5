package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/pkg/mqtt"
)

const (
	svcName = "agent"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel    string        `env:"VIGIL_LOG_LEVEL"      envDefault:"info"`
	MQTTAddress string        `env:"VIGIL_MQTT_ADDRESS"   envDefault:"tcp://localhost:1883"`
	MQTTQoS     uint8         `env:"VIGIL_MQTT_QOS"       envDefault:"2"`
	MQTTTimeout time.Duration `env:"VIGIL_MQTT_TIMEOUT"   envDefault:"30s"`
	ThingKey    string        `env:"VIGIL_AGENT_THING_KEY"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	agentCfg := agent.Config{}
	if err := env.Parse(&agentCfg); err != nil {
		log.Fatalf("failed to load agent configuration : %s", err.Error())
	}
	if agentCfg.ID == "" {
		agentCfg.ID = uuid.NewString()
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

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, agentCfg.ID, agentCfg.ID, cfg.ThingKey, agentCfg.ChannelID, svcName, cfg.MQTTTimeout, logger)
	if err != nil {
		return errors.Join(errors.New("failed to initialize mqtt client"), err)
	}

	svc, err := agent.NewService(ctx, agentCfg, mqttPubSub, logger)
	if err != nil {
		return errors.Join(errors.New("failed to initialize agent"), err)
	}

	if err := svc.Run(ctx); err != nil {
		return errors.Join(errors.New("failed to run agent"), err)
	}

	return nil
}
