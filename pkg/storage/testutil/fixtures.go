package testutil

import (
	"time"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/round"
)

func TestPatient(id string) patient.Patient {
	return patient.Patient{
		ID:          id,
		Name:        "test-patient-" + id,
		Category:    "typical",
		ActiveModel: "federated",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestAgent(id string) agent.Agent {
	return agent.Agent{
		ID:           id,
		Name:         "test-agent-" + id,
		Alive:        true,
		AliveHistory: []time.Time{time.Now().Add(-10 * time.Second), time.Now()},
		UpdateCount:  3,
		LastUpdateAt: time.Now(),
	}
}

func TestRound(n uint64) round.Record {
	return round.Record{
		Round:        n,
		Method:       "fedavg",
		ClientCount:  3,
		TotalSamples: 300,
		AvgAccuracy:  0.82,
		AvgLoss:      0.41,
		ClientIDs:    []string{"agent-1", "agent-2", "agent-3"},
		Timestamp:    time.Now(),
	}
}

func TestSwap(patientID string, at time.Time) models.SwapRecord {
	return models.SwapRecord{
		PatientID:  patientID,
		Previous:   "federated",
		New:        "athletic",
		DriftType:  "athletic",
		Confidence: 0.92,
		Swapped:    true,
		At:         at,
	}
}

func TestAlert(id string, at time.Time) alert.Alert {
	return alert.Alert{
		ID:        id,
		Type:      alert.TypeHighConfidenceDrift,
		Severity:  alert.SeverityHigh,
		PatientID: "patient-1",
		Message:   "high confidence drift detected",
		Details:   map[string]any{"confidence": 0.92},
		At:        at,
	}
}
