// Package drift detects concept drift in per-patient physiological
// signal streams using an ensemble of statistical tests, and tracks
// each patient's behavioral category as the stream evolves.
package drift

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/ring"
)

// DefaultCategory seeds every new patient and anchors classification.
const DefaultCategory = "typical"

type Method uint8

const (
	MethodAuto Method = iota
	MethodStatistical
	MethodDistribution
	MethodClustering
	MethodPattern
)

func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodStatistical:
		return "statistical"
	case MethodDistribution:
		return "distribution"
	case MethodClustering:
		return "clustering"
	case MethodPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

func ParseMethod(s string) (Method, error) {
	switch s {
	case "auto", "":
		return MethodAuto, nil
	case "statistical":
		return MethodStatistical, nil
	case "distribution":
		return MethodDistribution, nil
	case "clustering":
		return MethodClustering, nil
	case "pattern":
		return MethodPattern, nil
	default:
		return MethodAuto, fmt.Errorf("%w: %s", vigilerrors.ErrInvalidMethod, s)
	}
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed

	return nil
}

// Range is the expected closed interval for one pattern metric.
type Range struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Category describes one behavioral profile by the expected ranges of
// its pattern metrics.
type Category struct {
	Name   string           `json:"name" toml:"name"`
	Ranges map[string]Range `json:"ranges" toml:"ranges"`
}

// DefaultCategories returns the built-in behavioral profiles, in
// classification tie-break order.
func DefaultCategories() []Category {
	return []Category{
		{Name: "typical", Ranges: map[string]Range{
			MetricHeartRateMean: {Min: 60, Max: 100},
			MetricHeartRateStd:  {Min: 5, Max: 20},
			MetricActivityLevel: {Min: 0.3, Max: 0.6},
		}},
		{Name: "athletic", Ranges: map[string]Range{
			MetricHeartRateMean: {Min: 40, Max: 60},
			MetricHeartRateStd:  {Min: 2, Max: 10},
			MetricActivityLevel: {Min: 0.7, Max: 1.0},
		}},
		{Name: "diver", Ranges: map[string]Range{
			MetricHeartRateMean: {Min: 50, Max: 70},
			MetricHeartRateStd:  {Min: 10, Max: 30},
			MetricActivityLevel: {Min: 0.4, Max: 0.8},
		}},
		{Name: "elderly", Ranges: map[string]Range{
			MetricHeartRateMean: {Min: 70, Max: 110},
			MetricHeartRateStd:  {Min: 8, Max: 25},
			MetricActivityLevel: {Min: 0.1, Max: 0.4},
		}},
		{Name: "diabetic", Ranges: map[string]Range{
			MetricHeartRateMean: {Min: 65, Max: 105},
			MetricHeartRateStd:  {Min: 10, Max: 28},
			MetricActivityLevel: {Min: 0.2, Max: 0.5},
		}},
	}
}

type Config struct {
	WindowSize          int     `env:"DRIFT_WINDOW_SIZE" envDefault:"100"`
	PValueThreshold     float64 `env:"DRIFT_PVALUE_THRESHOLD" envDefault:"0.05"`
	KLThreshold         float64 `env:"DRIFT_KL_THRESHOLD" envDefault:"0.5"`
	ClusterShift        float64 `env:"DRIFT_CLUSTER_SHIFT" envDefault:"1.0"`
	PatternDeviation    float64 `env:"DRIFT_PATTERN_DEVIATION" envDefault:"0.3"`
	MinClusterPoints    int     `env:"DRIFT_MIN_CLUSTER_POINTS" envDefault:"50"`
	MinPatternPoints    int     `env:"DRIFT_MIN_PATTERN_POINTS" envDefault:"10"`
	Bins                int     `env:"DRIFT_HISTOGRAM_BINS" envDefault:"10"`
	EnsembleVoteRatio   float64 `env:"DRIFT_ENSEMBLE_VOTE_RATIO" envDefault:"0.5"`
	EnsembleConfidence  float64 `env:"DRIFT_ENSEMBLE_CONFIDENCE" envDefault:"0.6"`
	CategorySwitchScore float64 `env:"DRIFT_CATEGORY_SWITCH_SCORE" envDefault:"0.7"`
	HistoryCap          int     `env:"DRIFT_HISTORY_CAP" envDefault:"100"`
	Categories          []Category
}

func DefaultConfig() Config {
	return Config{
		WindowSize:          100,
		PValueThreshold:     0.05,
		KLThreshold:         0.5,
		ClusterShift:        1.0,
		PatternDeviation:    0.3,
		MinClusterPoints:    50,
		MinPatternPoints:    10,
		Bins:                10,
		EnsembleVoteRatio:   0.5,
		EnsembleConfidence:  0.6,
		CategorySwitchScore: 0.7,
		HistoryCap:          100,
		Categories:          DefaultCategories(),
	}
}

// Result is the immutable outcome of one detection call.
type Result struct {
	Detected       bool      `json:"drift_detected"`
	Confidence     float64   `json:"confidence"`
	Method         Method    `json:"method"`
	DriftType      string    `json:"drift_type,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	DataPoints     int       `json:"data_points"`
	PValue         float64   `json:"p_value,omitempty"`
	TestedFeatures int       `json:"tested_features,omitempty"`
	AvgKL          float64   `json:"avg_kl_divergence,omitempty"`
	CenterShift    float64   `json:"center_movement,omitempty"`
	Silhouette     float64   `json:"silhouette_score,omitempty"`
	AvgDeviation   float64   `json:"avg_deviation,omitempty"`
	ConsensusRatio float64   `json:"consensus_ratio,omitempty"`
	MethodsUsed    int       `json:"methods_used,omitempty"`
	At             time.Time `json:"timestamp"`
}

// CategoryChange records a confirmed switch of a patient's category.
type CategoryChange struct {
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"timestamp"`
}

// Status is a read-only view of one patient's drift state.
type Status struct {
	PatientID       string           `json:"patient_id"`
	Category        string           `json:"category"`
	DataPoints      int              `json:"data_points"`
	LastUpdated     time.Time        `json:"last_updated"`
	CategoryHistory []CategoryChange `json:"category_history,omitempty"`
}

type observation struct {
	features   []float64
	prediction float64
	at         time.Time
}

// telemetry is the per-patient mutable state. Each instance has its
// own lock so distinct patients are processed fully in parallel.
type telemetry struct {
	mu              sync.Mutex
	window          *ring.Ring[observation]
	history         *ring.Ring[Result]
	category        string
	categoryHistory []CategoryChange
	clusterCenters  [][]float64
}

// Detector maintains per-patient sliding windows and runs the drift
// test ensemble over them.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	patients map[string]*telemetry
}

func New(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WindowSize < 2 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.Bins < 1 {
		cfg.Bins = DefaultConfig().Bins
	}
	if cfg.HistoryCap < 1 {
		cfg.HistoryCap = DefaultConfig().HistoryCap
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}

	return &Detector{
		cfg:      cfg,
		logger:   logger,
		patients: make(map[string]*telemetry),
	}
}

func (d *Detector) patient(patientID string) *telemetry {
	d.mu.RLock()
	p, ok := d.patients[patientID]
	d.mu.RUnlock()
	if ok {
		return p
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok = d.patients[patientID]; ok {
		return p
	}

	p = &telemetry{
		window:   ring.New[observation](2 * d.cfg.WindowSize),
		history:  ring.New[Result](d.cfg.HistoryCap),
		category: DefaultCategory,
	}
	d.patients[patientID] = p

	d.logger.Info("tracking new patient", slog.String("patient_id", patientID))

	return p
}

// Add appends an observation to the patient's window without running
// any detection.
func (d *Detector) Add(patientID string, features []float64, prediction float64) {
	p := d.patient(patientID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.window.Push(observation{features: features, prediction: prediction, at: time.Now()})
}

// Detect appends the observation, then evaluates the requested method
// (or the full ensemble for MethodAuto) over the patient's window.
// Until WindowSize observations accumulate it always reports
// not-detected with zero confidence.
func (d *Detector) Detect(patientID string, features []float64, prediction float64, method Method) Result {
	p := d.patient(patientID)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.window.Push(observation{features: features, prediction: prediction, at: time.Now()})

	if n := p.window.Len(); n < d.cfg.WindowSize {
		return Result{
			Method:     method,
			Reason:     "insufficient data",
			DataPoints: n,
			At:         time.Now(),
		}
	}

	obs := p.window.Slice()
	matrix := make([][]float64, len(obs))
	for i, o := range obs {
		matrix[i] = o.features
	}

	var res Result
	switch method {
	case MethodStatistical:
		res = d.statisticalTest(matrix)
	case MethodDistribution:
		res = d.distributionTest(matrix)
	case MethodClustering:
		res = d.clusteringTest(p, matrix)
	case MethodPattern:
		res = d.patternTest(p, matrix)
	default:
		res = d.ensemble(p, matrix)
	}

	res.DataPoints = len(obs)
	res.At = time.Now()

	if res.Detected {
		driftType, score := d.classify(p, matrix)
		res.DriftType = driftType

		d.logger.Info("drift detected",
			slog.String("patient_id", patientID),
			slog.String("drift_type", driftType),
			slog.String("method", res.Method.String()),
			slog.Float64("confidence", res.Confidence),
			slog.Float64("category_score", score),
		)
	} else {
		res.DriftType = "none"
	}

	p.history.Push(res)

	return res
}

// ensemble runs all four tests and combines them by majority vote
// gated on mean confidence.
func (d *Detector) ensemble(p *telemetry, matrix [][]float64) Result {
	results := []Result{
		d.statisticalTest(matrix),
		d.distributionTest(matrix),
		d.clusteringTest(p, matrix),
		d.patternTest(p, matrix),
	}

	var votes int
	var total float64
	for _, r := range results {
		if r.Detected {
			votes++
		}
		total += r.Confidence
	}

	ratio := float64(votes) / float64(len(results))
	avg := total / float64(len(results))

	return Result{
		Detected:       ratio > d.cfg.EnsembleVoteRatio && avg > d.cfg.EnsembleConfidence,
		Confidence:     avg,
		Method:         MethodAuto,
		ConsensusRatio: ratio,
		MethodsUsed:    len(results),
	}
}

// classify scores every category by the fraction of extracted pattern
// metrics inside its ranges and returns the best match. The patient's
// current category switches only when the best match differs and its
// score clears CategorySwitchScore.
func (d *Detector) classify(p *telemetry, matrix [][]float64) (string, float64) {
	recent := matrix
	if len(recent) > d.cfg.WindowSize {
		recent = recent[len(recent)-d.cfg.WindowSize:]
	}
	metrics := extractMetrics(recent)

	best := DefaultCategory
	bestScore := 0.0
	for _, cat := range d.cfg.Categories {
		var inRange, matched int
		for name, value := range metrics {
			r, ok := cat.Ranges[name]
			if !ok {
				continue
			}
			matched++
			if r.Contains(value) {
				inRange++
			}
		}
		if matched == 0 {
			continue
		}
		if score := float64(inRange) / float64(matched); score > bestScore {
			bestScore = score
			best = cat.Name
		}
	}

	if best != p.category && bestScore > d.cfg.CategorySwitchScore {
		p.category = best
		p.categoryHistory = append(p.categoryHistory, CategoryChange{
			Category:   best,
			Confidence: bestScore,
			At:         time.Now(),
		})
	}

	return best, bestScore
}

// History returns the retained detection results, oldest first.
func (d *Detector) History(patientID string) []Result {
	d.mu.RLock()
	p, ok := d.patients[patientID]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.history.Slice()
}

// Status reports the patient's category and window fill. Unknown
// patients read as category "unknown" with no data.
func (d *Detector) Status(patientID string) Status {
	d.mu.RLock()
	p, ok := d.patients[patientID]
	d.mu.RUnlock()
	if !ok {
		return Status{PatientID: patientID, Category: "unknown"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		PatientID:       patientID,
		Category:        p.category,
		DataPoints:      p.window.Len(),
		CategoryHistory: append([]CategoryChange(nil), p.categoryHistory...),
	}
	if last, ok := p.window.Last(); ok {
		st.LastUpdated = last.at
	}

	return st
}

// Category returns the patient's current behavioral category.
func (d *Detector) Category(patientID string) string {
	d.mu.RLock()
	p, ok := d.patients[patientID]
	d.mu.RUnlock()
	if !ok {
		return "unknown"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.category
}

func (d *Detector) Categories() []Category {
	return d.cfg.Categories
}
