package aggregate

import (
	"errors"
	"fmt"
	"log/slog"

	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

var (
	ErrNoUpdates     = errors.New("no updates provided for aggregation")
	ErrNoGlobalModel = errors.New("strategy requires a global model")
)

type Method uint8

const (
	FedAvg Method = iota
	FedProx
	FedNova
	Krum
	TrimmedMean
	Median
	Adaptive
)

func (m Method) String() string {
	switch m {
	case FedAvg:
		return "fedavg"
	case FedProx:
		return "fedprox"
	case FedNova:
		return "fednova"
	case Krum:
		return "krum"
	case TrimmedMean:
		return "trimmed_mean"
	case Median:
		return "median"
	case Adaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

func ParseMethod(s string) (Method, error) {
	switch s {
	case "fedavg":
		return FedAvg, nil
	case "fedprox":
		return FedProx, nil
	case "fednova":
		return FedNova, nil
	case "krum":
		return Krum, nil
	case "trimmed_mean":
		return TrimmedMean, nil
	case "median":
		return Median, nil
	case "adaptive":
		return Adaptive, nil
	default:
		return FedAvg, fmt.Errorf("%w: %s", vigilerrors.ErrInvalidMethod, s)
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

type Config struct {
	Method             Method  `env:"AGGREGATION_METHOD" envDefault:"fedavg"`
	Mu                 float64 `env:"FEDPROX_MU" envDefault:"0.01"`
	TrimRatio          float64 `env:"TRIM_RATIO" envDefault:"0.1"`
	ByzantineTolerance int     `env:"BYZANTINE_TOLERANCE" envDefault:"1"`
}

func DefaultConfig() Config {
	return Config{
		Method:             FedAvg,
		Mu:                 0.01,
		TrimRatio:          0.1,
		ByzantineTolerance: 1,
	}
}

type strategy func(updates []round.Update, global params.Map) (params.Map, error)

// Aggregator combines per-client parameter maps into one global map
// using the strategy resolved once at construction.
type Aggregator struct {
	cfg    Config
	run    strategy
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Aggregator{cfg: cfg, logger: logger}

	strategies := map[Method]strategy{
		FedAvg:      a.fedAvg,
		FedProx:     a.fedProx,
		FedNova:     a.fedNova,
		Krum:        a.krum,
		TrimmedMean: a.trimmedMean,
		Median:      a.median,
		Adaptive:    a.adaptive,
	}

	run, ok := strategies[cfg.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %d", vigilerrors.ErrInvalidMethod, cfg.Method)
	}
	a.run = run

	return a, nil
}

func (a *Aggregator) Method() Method {
	return a.cfg.Method
}

// Aggregate validates that every update carries the same parameter
// schema and a positive sample count, then runs the configured
// strategy. The inputs are never mutated; the result is a fresh map.
func (a *Aggregator) Aggregate(updates []round.Update, global params.Map) (params.Map, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	ref := updates[0].Weights.Schema()
	for _, u := range updates {
		if u.SampleCount < 1 {
			return nil, fmt.Errorf("client %s: %w: sample count must be positive", u.ClientID, vigilerrors.ErrInvalidData)
		}
		if !u.Weights.Schema().Matches(ref) {
			return nil, fmt.Errorf("client %s: %w", u.ClientID, vigilerrors.ErrSchemaMismatch)
		}
	}

	return a.run(updates, global)
}
