package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vigil-fl/vigil/agent"
	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/mqtt"
	"github.com/vigil-fl/vigil/round"
)

type agentHello struct {
	ID   string `json:"agent_id"`
	Name string `json:"name,omitempty"`
}

type vitalsMessage struct {
	PatientID  string    `json:"patient_id"`
	Features   []float64 `json:"features"`
	Prediction float64   `json:"prediction"`
}

func (svc *coordinatorService) topics() mqtt.Topics {
	return mqtt.NewTopics(svc.cfg.ChannelID)
}

func (svc *coordinatorService) Subscribe(ctx context.Context) error {
	topic := svc.topics().Wildcard()
	if err := svc.pubsub.Subscribe(ctx, topic, svc.handler(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to coordinator channel: %w", err)
	}

	svc.logger.Info("subscribed to coordinator channel", slog.String("topic", topic))

	return nil
}

func (svc *coordinatorService) handler(ctx context.Context) func(topic string, payload []byte) error {
	topics := svc.topics()

	return func(topic string, payload []byte) error {
		sub, ok := topics.Subtopic(topic)
		if !ok {
			return nil
		}

		switch sub {
		case mqtt.SubAgentCreate:
			if err := svc.handleAgentCreate(ctx, payload); err != nil {
				return err
			}

			svc.logger.InfoContext(ctx, "successfully registered agent")
		case mqtt.SubAgentAlive:
			return svc.handleAgentAlive(ctx, payload)
		case mqtt.SubUpdates:
			return svc.handleUpdate(ctx, payload)
		case mqtt.SubVitals:
			return svc.handleVitals(ctx, payload)
		}

		return nil
	}
}

func (svc *coordinatorService) handleAgentCreate(ctx context.Context, payload []byte) error {
	var hello agentHello
	if err := json.Unmarshal(payload, &hello); err != nil {
		return fmt.Errorf("%w: %s", pkgerrors.ErrInvalidData, err)
	}
	if hello.ID == "" {
		return fmt.Errorf("%w: agent id", pkgerrors.ErrEmptyKey)
	}

	existing, err := svc.agents.Get(ctx, hello.ID)
	if err == nil {
		existing.RecordAlive(time.Now())
		if hello.Name != "" {
			existing.Name = hello.Name
		}

		return svc.agents.Update(ctx, existing)
	}

	_, err = svc.CreateAgent(ctx, agent.Agent{
		ID:   hello.ID,
		Name: hello.Name,
	})

	return err
}

func (svc *coordinatorService) handleAgentAlive(ctx context.Context, payload []byte) error {
	var hello agentHello
	if err := json.Unmarshal(payload, &hello); err != nil {
		return fmt.Errorf("%w: %s", pkgerrors.ErrInvalidData, err)
	}
	if hello.ID == "" {
		return fmt.Errorf("%w: agent id", pkgerrors.ErrEmptyKey)
	}

	a, err := svc.agents.Get(ctx, hello.ID)
	if err != nil {
		return err
	}

	a.RecordAlive(time.Now())

	return svc.agents.Update(ctx, a)
}

func (svc *coordinatorService) handleUpdate(ctx context.Context, payload []byte) error {
	var u round.Update
	if err := json.Unmarshal(payload, &u); err != nil {
		return fmt.Errorf("%w: %s", pkgerrors.ErrInvalidData, err)
	}

	ack, err := svc.RegisterUpdate(ctx, u)
	if err != nil {
		return err
	}

	svc.logger.DebugContext(ctx, "registered client update",
		slog.String("client_id", u.ClientID),
		slog.String("status", ack.Status),
		slog.Int("received", ack.Received),
		slog.Int("needed", ack.Needed),
	)

	return nil
}

func (svc *coordinatorService) handleVitals(ctx context.Context, payload []byte) error {
	var msg vitalsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %s", pkgerrors.ErrInvalidData, err)
	}

	return svc.Observe(ctx, msg.PatientID, msg.Features, msg.Prediction)
}
