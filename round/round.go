package round

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigil-fl/vigil/pkg/params"
)

type State uint8

const (
	Idle State = iota
	Collecting
	Aggregating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Collecting:
		return "Collecting"
	case Aggregating:
		return "Aggregating"
	default:
		return "Unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	switch str {
	case "Idle":
		*s = Idle
	case "Collecting":
		*s = Collecting
	case "Aggregating":
		*s = Aggregating
	default:
		return fmt.Errorf("unknown round state: %s", str)
	}

	return nil
}

// Update is a single client's locally trained contribution to the
// pending round. Resubmission by the same client overwrites the
// previous entry rather than accumulating.
type Update struct {
	ClientID    string     `json:"client_id"`
	Weights     params.Map `json:"weights"`
	SampleCount int        `json:"sample_count"`
	Accuracy    float64    `json:"accuracy,omitempty"`
	Loss        float64    `json:"loss,omitempty"`
	LocalSteps  int        `json:"local_steps,omitempty"`
	Gradients   params.Map `json:"gradients,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}

// Record summarizes one completed aggregation round.
type Record struct {
	Round        uint64    `json:"round"`
	Method       string    `json:"method"`
	ClientCount  int       `json:"client_count"`
	TotalSamples int64     `json:"total_samples"`
	AvgAccuracy  float64   `json:"avg_accuracy"`
	AvgLoss      float64   `json:"avg_loss"`
	ClientIDs    []string  `json:"client_ids"`
	Timestamp    time.Time `json:"timestamp"`
}

type RecordPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Records []Record `json:"records"`
}

// Ack is the synchronous reply to a registered update: either the
// round is still collecting or the update completed the quorum and
// aggregation ran inside the same call.
type Ack struct {
	Status   string  `json:"status"`
	Round    uint64  `json:"round"`
	Received int     `json:"received"`
	Needed   int     `json:"needed"`
	Record   *Record `json:"record,omitempty"`
}

const (
	StatusWaiting    = "waiting"
	StatusAggregated = "aggregated"
)
