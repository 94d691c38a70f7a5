package alert

import "time"

const (
	TypeDriftPattern           = "drift_pattern"
	TypeHighConfidenceDrift    = "high_confidence_drift"
	TypePerformanceDegradation = "performance_degradation"
	TypeSystemHealth           = "system_health"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Alert is raised by the coordinator's background monitor when a
// sweep finds drift patterns, degraded model performance, or host
// resource pressure.
type Alert struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	PatientID string         `json:"patient_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"timestamp"`
}

type AlertPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Alerts []Alert `json:"alerts"`
}
