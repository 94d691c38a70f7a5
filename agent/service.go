package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/vigil-fl/vigil/pkg/mqtt"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

var namegen = namegenerator.NewGenerator()

type Config struct {
	ID               string        `env:"VIGIL_AGENT_ID"`
	Name             string        `env:"VIGIL_AGENT_NAME"`
	ChannelID        string        `env:"VIGIL_CHANNEL_ID"`
	LivenessInterval time.Duration `env:"VIGIL_AGENT_LIVENESS_INTERVAL" envDefault:"10s"`
	VitalsInterval   time.Duration `env:"VIGIL_AGENT_VITALS_INTERVAL"   envDefault:"2s"`
	UpdateInterval   time.Duration `env:"VIGIL_AGENT_UPDATE_INTERVAL"   envDefault:"30s"`
	PatientIDs       []string      `env:"VIGIL_AGENT_PATIENT_IDS"       envSeparator:","`
	SampleCount      int           `env:"VIGIL_AGENT_SAMPLE_COUNT"      envDefault:"100"`
	Seed             int64         `env:"VIGIL_AGENT_SEED"`
}

// Service is the fleet edge client. It announces itself, streams
// synthetic patient vitals, and contributes parameter updates to the
// federated rounds. Local training is a synthetic stub: each update
// perturbs the agent's last known weights rather than running real
// training numerics.
type Service struct {
	cfg    Config
	pubsub mqtt.PubSub
	logger *slog.Logger
	rng    *rand.Rand

	mu       sync.Mutex
	weights  params.Map
	lastSeen uint64
	patients map[string]*vitalsState
}

func NewService(ctx context.Context, cfg Config, pubsub mqtt.PubSub, logger *slog.Logger) (*Service, error) {
	if cfg.ID == "" {
		return nil, errors.New("agent id is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("channel id is required")
	}
	if cfg.Name == "" {
		cfg.Name = namegen.Generate()
	}
	if len(cfg.PatientIDs) == 0 {
		cfg.PatientIDs = []string{cfg.ID + "-patient"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	svc := &Service{
		cfg:      cfg,
		pubsub:   pubsub,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
		weights:  defaultWeights(),
		patients: make(map[string]*vitalsState),
	}

	payload := map[string]any{
		"agent_id": cfg.ID,
		"name":     cfg.Name,
	}
	if err := pubsub.Publish(ctx, svc.topics().AgentCreate(), payload); err != nil {
		return nil, errors.Join(errors.New("failed to publish agent discovery"), err)
	}

	go svc.livenessLoop(ctx)

	return svc, nil
}

func (svc *Service) topics() mqtt.Topics {
	return mqtt.NewTopics(svc.cfg.ChannelID)
}

func (svc *Service) livenessLoop(ctx context.Context) {
	ticker := time.NewTicker(svc.cfg.LivenessInterval)
	defer ticker.Stop()

	topic := svc.topics().AgentAlive()

	for {
		select {
		case <-ctx.Done():
			svc.logger.Info("stopping liveness updates")

			return
		case <-ticker.C:
			payload := map[string]any{
				"status":   "alive",
				"agent_id": svc.cfg.ID,
			}
			if err := svc.pubsub.Publish(ctx, topic, payload); err != nil {
				svc.logger.Error("failed to publish liveness message", slog.Any("error", err))
			}
		}
	}
}

// Run subscribes to round completions and streams vitals and updates
// until the context is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	if err := svc.pubsub.Subscribe(ctx, svc.topics().Rounds(), svc.handleRound); err != nil {
		return fmt.Errorf("failed to subscribe to round events: %w", err)
	}

	vitals := time.NewTicker(svc.cfg.VitalsInterval)
	defer vitals.Stop()
	updates := time.NewTicker(svc.cfg.UpdateInterval)
	defer updates.Stop()

	svc.logger.Info("agent running",
		slog.String("agent_id", svc.cfg.ID),
		slog.String("name", svc.cfg.Name),
		slog.Int("patients", len(svc.cfg.PatientIDs)),
	)

	for {
		select {
		case <-ctx.Done():
			return svc.pubsub.Disconnect(context.WithoutCancel(ctx))
		case <-vitals.C:
			svc.publishVitals(ctx)
		case <-updates.C:
			svc.publishUpdate(ctx)
		}
	}
}

func (svc *Service) handleRound(topic string, payload []byte) error {
	var rec round.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("malformed round event: %w", err)
	}

	svc.mu.Lock()
	svc.lastSeen = rec.Round
	svc.mu.Unlock()

	svc.logger.Info("round completed",
		slog.Uint64("round", rec.Round),
		slog.Int("clients", rec.ClientCount),
		slog.Float64("avg_accuracy", rec.AvgAccuracy),
	)

	return nil
}

func (svc *Service) publishVitals(ctx context.Context) {
	topic := svc.topics().Vitals()

	svc.mu.Lock()
	messages := make([]map[string]any, 0, len(svc.cfg.PatientIDs))
	for _, id := range svc.cfg.PatientIDs {
		state, ok := svc.patients[id]
		if !ok {
			state = newVitalsState(svc.rng)
			svc.patients[id] = state
		}
		features := state.step(svc.rng)
		messages = append(messages, map[string]any{
			"patient_id": id,
			"features":   features,
			"prediction": state.risk(),
		})
	}
	svc.mu.Unlock()

	for _, msg := range messages {
		if err := svc.pubsub.Publish(ctx, topic, msg); err != nil {
			svc.logger.Error("failed to publish vitals",
				slog.Any("patient_id", msg["patient_id"]),
				slog.Any("error", err),
			)
		}
	}
}

// publishUpdate submits one synthetic training result: the last known
// weights nudged by noise scaled down as rounds progress, imitating a
// converging client.
func (svc *Service) publishUpdate(ctx context.Context) {
	svc.mu.Lock()
	scale := 0.1 / float64(svc.lastSeen+1)
	weights := make(params.Map, len(svc.weights))
	for key, vals := range svc.weights {
		next := make([]float64, len(vals))
		for i, v := range vals {
			next[i] = v + svc.rng.NormFloat64()*scale
		}
		weights[key] = next
	}
	svc.weights = weights
	accuracy := 0.75 + 0.2*(1-scale) + svc.rng.Float64()*0.05
	loss := 0.5*scale + svc.rng.Float64()*0.1
	svc.mu.Unlock()

	update := round.Update{
		ClientID:    svc.cfg.ID,
		Weights:     weights.Clone(),
		SampleCount: svc.cfg.SampleCount,
		Accuracy:    accuracy,
		Loss:        loss,
		LocalSteps:  1 + svc.rng.Intn(5),
	}

	if err := svc.pubsub.Publish(ctx, svc.topics().Updates(), update); err != nil {
		svc.logger.Error("failed to publish parameter update", slog.Any("error", err))

		return
	}

	svc.logger.Debug("parameter update published",
		slog.String("client_id", svc.cfg.ID),
		slog.Int("samples", update.SampleCount),
	)
}

// defaultWeights is the schema agents start from before any global
// model is distributed: one dense layer over the 13 vitals features
// plus a bias term.
func defaultWeights() params.Map {
	return params.Map{
		"dense/kernel": make([]float64, 13),
		"dense/bias":   make([]float64, 1),
	}
}
