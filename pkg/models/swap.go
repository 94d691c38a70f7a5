package models

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vigil-fl/vigil/pkg/ring"
)

// FallbackModel serves drift types with no specialized model.
const FallbackModel = "typical"

const swapHistoryCap = 100

// SwapRecord captures one routing decision for a patient. Swapped is
// false when the target already served the patient and nothing
// changed.
type SwapRecord struct {
	PatientID  string    `json:"patient_id" db:"patient_id"`
	Previous   string    `json:"previous_model" db:"previous_model"`
	New        string    `json:"new_model" db:"new_model"`
	DriftType  string    `json:"drift_type" db:"drift_type"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Swapped    bool      `json:"swapped" db:"swapped"`
	At         time.Time `json:"timestamp" db:"timestamp"`
}

// SwapStore persists swap records as they are made.
type SwapStore interface {
	Create(ctx context.Context, record SwapRecord) error
}

// DefaultRouting maps confirmed drift types to the model that should
// serve the patient. Drift types outside the table route to the
// fallback model.
func DefaultRouting() map[string]string {
	return map[string]string{
		"athletic":         "athletic",
		"diver":            "diver",
		"elderly":          "elderly",
		"diabetic":         "diabetic",
		"hypertensive":     FallbackModel,
		"revert_to_normal": FallbackModel,
	}
}

// SwapState owns the per-patient model assignment and its bounded
// swap history.
type SwapState struct {
	registry *Registry
	store    SwapStore
	logger   *slog.Logger
	routing  map[string]string

	mu      sync.RWMutex
	active  map[string]string
	history map[string]*ring.Ring[SwapRecord]
}

// NewSwapState builds the assignment state. Routing overrides are
// merged over the defaults; a nil store keeps history in memory only.
func NewSwapState(registry *Registry, store SwapStore, routing map[string]string, logger *slog.Logger) *SwapState {
	if logger == nil {
		logger = slog.Default()
	}

	merged := DefaultRouting()
	for driftType, model := range routing {
		merged[driftType] = model
	}

	return &SwapState{
		registry: registry,
		store:    store,
		logger:   logger,
		routing:  merged,
		active:   make(map[string]string),
		history:  make(map[string]*ring.Ring[SwapRecord]),
	}
}

// Target resolves a drift type to a catalogue model, falling back to
// the general model when the routed target is not in the catalogue.
func (s *SwapState) Target(driftType string) string {
	target, ok := s.routing[driftType]
	if !ok {
		target = FallbackModel
	}

	if _, err := s.registry.Lookup(target); err != nil {
		s.logger.Warn("target model not in catalogue, using fallback",
			slog.String("drift_type", driftType),
			slog.String("target", target),
		)
		target = FallbackModel
	}

	return target
}

// Swap routes the drift type to a target model and reassigns the
// patient to it. When loading the target fails the assignment is left
// unchanged; when the target already serves the patient the returned
// record has Swapped false and no history entry is made.
func (s *SwapState) Swap(ctx context.Context, patientID, driftType string, confidence float64) (SwapRecord, error) {
	target := s.Target(driftType)

	if s.Active(patientID) == target {
		return SwapRecord{
			PatientID:  patientID,
			Previous:   target,
			New:        target,
			DriftType:  driftType,
			Confidence: confidence,
			At:         time.Now(),
		}, nil
	}

	if _, err := s.registry.Load(ctx, target); err != nil {
		return SwapRecord{}, err
	}

	s.mu.Lock()
	previous, ok := s.active[patientID]
	if !ok {
		previous = DefaultModel
	}
	if previous == target {
		s.mu.Unlock()

		return SwapRecord{
			PatientID:  patientID,
			Previous:   target,
			New:        target,
			DriftType:  driftType,
			Confidence: confidence,
			At:         time.Now(),
		}, nil
	}

	s.active[patientID] = target
	record := SwapRecord{
		PatientID:  patientID,
		Previous:   previous,
		New:        target,
		DriftType:  driftType,
		Confidence: confidence,
		Swapped:    true,
		At:         time.Now(),
	}

	h, ok := s.history[patientID]
	if !ok {
		h = ring.New[SwapRecord](swapHistoryCap)
		s.history[patientID] = h
	}
	h.Push(record)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Create(ctx, record); err != nil {
			s.logger.Error("failed to persist swap record",
				slog.String("patient_id", patientID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("model swapped",
		slog.String("patient_id", patientID),
		slog.String("previous", previous),
		slog.String("new", target),
		slog.String("drift_type", driftType),
		slog.Float64("confidence", confidence),
	)

	return record, nil
}

// Active returns the model currently serving the patient.
func (s *SwapState) Active(patientID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.active[patientID]; ok {
		return m
	}

	return DefaultModel
}

// AllActive snapshots every explicit assignment.
func (s *SwapState) AllActive() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.active))
	for id, m := range s.active {
		out[id] = m
	}

	return out
}

// History returns the retained swap records for the patient, oldest
// first.
func (s *SwapState) History(patientID string) []SwapRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[patientID]
	if !ok {
		return nil
	}

	return h.Slice()
}

// Observation slots read by Suggest.
const (
	suggestHeartRateIndex = 7
	suggestActivityIndex  = 8
	suggestStabilitySpan  = 5

	restingHeartRate = 72
)

// suggestionRules map a drift type to metric thresholds; the first
// rule with any exceeded threshold wins.
var suggestionRules = []struct {
	driftType  string
	thresholds map[string]float64
}{
	{"athletic", map[string]float64{"heart_rate_var": 0.3, "activity_level": 0.7}},
	{"typical", map[string]float64{"stability_score": 0.8}},
}

// Suggest inspects a single observation and returns the drift type
// whose thresholds it exceeds, if any. It is advisory only and never
// changes an assignment.
func (s *SwapState) Suggest(features []float64) (string, bool) {
	if len(features) <= suggestHeartRateIndex {
		return "", false
	}

	pattern := map[string]float64{
		"heart_rate_var": math.Abs(features[suggestHeartRateIndex]-restingHeartRate) / restingHeartRate,
	}
	if len(features) > suggestActivityIndex {
		pattern["activity_level"] = features[suggestActivityIndex]
	} else {
		pattern["activity_level"] = 0.5
	}

	head := features[:suggestStabilitySpan]
	if mean := stat.Mean(head, nil); mean != 0 {
		pattern["stability_score"] = 1 - stat.PopStdDev(head, nil)/mean
	}

	for _, rule := range suggestionRules {
		for name, threshold := range rule.thresholds {
			if v, ok := pattern[name]; ok && v > threshold {
				return rule.driftType, true
			}
		}
	}

	return "", false
}
