package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const predictExport = "predict"

// Scorer executes a compiled model artifact. Artifacts export a
// predict function taking the scaled feature vector as f64 parameters
// and returning the positive-class probability.
type Scorer struct {
	runtime wazero.Runtime
	predict api.Function
}

func newScorer(ctx context.Context, binary []byte) (*Scorer, error) {
	r := wazero.NewRuntime(ctx)

	// Instantiate WASI, which implements host functions needed for
	// TinyGo to implement `panic`.
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	module, err := r.InstantiateWithConfig(ctx, binary, wazero.NewModuleConfig().WithStartFunctions("_initialize"))
	if err != nil {
		_ = r.Close(ctx)

		return nil, errors.Join(errors.New("failed to instantiate model module"), err)
	}

	fn := module.ExportedFunction(predictExport)
	if fn == nil {
		_ = r.Close(ctx)

		return nil, fmt.Errorf("model does not export %s", predictExport)
	}

	return &Scorer{runtime: r, predict: fn}, nil
}

func (s *Scorer) Predict(ctx context.Context, features []float64) (float64, error) {
	args := make([]uint64, len(features))
	for i, f := range features {
		args[i] = api.EncodeF64(f)
	}

	results, err := s.predict.Call(ctx, args...)
	if err != nil {
		return 0, errors.Join(errors.New("failed to call predict"), err)
	}
	if len(results) == 0 {
		return 0, errors.New("predict returned no value")
	}

	return api.DecodeF64(results[0]), nil
}

func (s *Scorer) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}
