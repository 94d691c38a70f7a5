package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-fl/vigil/pkg/aggregate"
	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

func upd(id string, samples int, vals ...float64) round.Update {
	return round.Update{
		ClientID:    id,
		Weights:     params.Map{"w": vals},
		SampleCount: samples,
	}
}

func newAggregator(t *testing.T, cfg aggregate.Config) *aggregate.Aggregator {
	t.Helper()

	a, err := aggregate.New(cfg, nil)
	require.NoError(t, err)

	return a
}

func TestParseMethod(t *testing.T) {
	cases := []struct {
		desc    string
		input   string
		method  aggregate.Method
		wantErr bool
	}{
		{desc: "fedavg", input: "fedavg", method: aggregate.FedAvg},
		{desc: "fedprox", input: "fedprox", method: aggregate.FedProx},
		{desc: "fednova", input: "fednova", method: aggregate.FedNova},
		{desc: "krum", input: "krum", method: aggregate.Krum},
		{desc: "trimmed mean", input: "trimmed_mean", method: aggregate.TrimmedMean},
		{desc: "median", input: "median", method: aggregate.Median},
		{desc: "adaptive", input: "adaptive", method: aggregate.Adaptive},
		{desc: "unknown", input: "magic", wantErr: true},
		{desc: "empty", input: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m, err := aggregate.ParseMethod(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, vigilerrors.ErrInvalidMethod)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.method, m)
			assert.Equal(t, tc.input, m.String())
		})
	}
}

func TestMethodTextRoundTrip(t *testing.T) {
	for _, m := range []aggregate.Method{
		aggregate.FedAvg, aggregate.FedProx, aggregate.FedNova,
		aggregate.Krum, aggregate.TrimmedMean, aggregate.Median, aggregate.Adaptive,
	} {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var back aggregate.Method
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}
}

func TestNewRejectsUnknownMethod(t *testing.T) {
	_, err := aggregate.New(aggregate.Config{Method: aggregate.Method(99)}, nil)
	assert.ErrorIs(t, err, vigilerrors.ErrInvalidMethod)
}

func TestAggregateValidation(t *testing.T) {
	a := newAggregator(t, aggregate.DefaultConfig())

	cases := []struct {
		desc    string
		updates []round.Update
		err     error
	}{
		{
			desc:    "no updates",
			updates: nil,
			err:     aggregate.ErrNoUpdates,
		},
		{
			desc: "zero sample count",
			updates: []round.Update{
				upd("c1", 0, 1.0),
			},
			err: vigilerrors.ErrInvalidData,
		},
		{
			desc: "mismatched keys",
			updates: []round.Update{
				{ClientID: "c1", SampleCount: 1, Weights: params.Map{"w": {1}}},
				{ClientID: "c2", SampleCount: 1, Weights: params.Map{"b": {1}}},
			},
			err: vigilerrors.ErrSchemaMismatch,
		},
		{
			desc: "mismatched lengths",
			updates: []round.Update{
				{ClientID: "c1", SampleCount: 1, Weights: params.Map{"w": {1, 2}}},
				{ClientID: "c2", SampleCount: 1, Weights: params.Map{"w": {1}}},
			},
			err: vigilerrors.ErrSchemaMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := a.Aggregate(tc.updates, nil)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestFedAvg(t *testing.T) {
	a := newAggregator(t, aggregate.DefaultConfig())

	updates := []round.Update{
		upd("c1", 100, 1.0),
		upd("c2", 100, 2.0),
		upd("c3", 200, 4.0),
	}

	out, err := a.Aggregate(updates, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.75, out["w"][0], 1e-12)
}

func TestFedAvgConvexity(t *testing.T) {
	a := newAggregator(t, aggregate.DefaultConfig())

	updates := []round.Update{
		{ClientID: "c1", SampleCount: 7, Weights: params.Map{"w": {1, -5, 0.3}, "b": {2}}},
		{ClientID: "c2", SampleCount: 13, Weights: params.Map{"w": {4, 5, -0.3}, "b": {-2}}},
		{ClientID: "c3", SampleCount: 29, Weights: params.Map{"w": {-1, 0, 0.7}, "b": {0.5}}},
	}

	out, err := a.Aggregate(updates, nil)
	require.NoError(t, err)

	for key, vec := range out {
		for j, v := range vec {
			lo, hi := updates[0].Weights[key][j], updates[0].Weights[key][j]
			for _, u := range updates {
				if u.Weights[key][j] < lo {
					lo = u.Weights[key][j]
				}
				if u.Weights[key][j] > hi {
					hi = u.Weights[key][j]
				}
			}
			assert.GreaterOrEqual(t, v, lo-1e-12)
			assert.LessOrEqual(t, v, hi+1e-12)
		}
	}
}

func TestFedAvgDoesNotMutateInputs(t *testing.T) {
	a := newAggregator(t, aggregate.DefaultConfig())

	u := upd("c1", 10, 1.0)
	_, err := a.Aggregate([]round.Update{u, upd("c2", 10, 3.0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, u.Weights["w"][0])
}

func TestFedProx(t *testing.T) {
	global := params.Map{"w": {2.0}}

	cases := []struct {
		desc string
		mu   float64
		want float64
	}{
		{desc: "mu zero equals fedavg", mu: 0, want: 2.0},
		{desc: "mu one pins to global", mu: 1, want: 2.0},
		{desc: "mu half shrinks toward global", mu: 0.5, want: 2.0},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := aggregate.DefaultConfig()
			cfg.Method = aggregate.FedProx
			cfg.Mu = tc.mu
			a := newAggregator(t, cfg)

			out, err := a.Aggregate([]round.Update{
				upd("c1", 1, 4.0),
				upd("c2", 1, 0.0),
			}, global)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, out["w"][0], 1e-12)
		})
	}
}

func TestFedProxAsymmetric(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.FedProx
	cfg.Mu = 0.5
	a := newAggregator(t, cfg)

	// contribution c1 = 4 - 0.5*(4-1) = 2.5, c2 = 0 - 0.5*(0-1) = 0.5,
	// each weighted 0.5.
	out, err := a.Aggregate([]round.Update{
		upd("c1", 1, 4.0),
		upd("c2", 1, 0.0),
	}, params.Map{"w": {1.0}})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out["w"][0], 1e-12)
}

func TestFedProxRequiresGlobal(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.FedProx
	a := newAggregator(t, cfg)

	_, err := a.Aggregate([]round.Update{upd("c1", 1, 1.0)}, nil)
	assert.ErrorIs(t, err, aggregate.ErrNoGlobalModel)

	_, err = a.Aggregate([]round.Update{upd("c1", 1, 1.0)}, params.Map{"other": {1}})
	assert.ErrorIs(t, err, vigilerrors.ErrSchemaMismatch)
}

func TestFedNova(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.FedNova
	a := newAggregator(t, cfg)

	scaled := upd("c1", 1, 2.0)
	scaled.LocalSteps = 2
	scaled.Gradients = params.Map{"w": {1.0}}

	unscaled := upd("c2", 1, 4.0)

	// c1 rescaled by 2/1 = 2 -> 4, c2 has no gradient and stays 4.
	out, err := a.Aggregate([]round.Update{scaled, unscaled}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, out["w"][0], 1e-12)
}

func TestFedNovaZeroGradientNorm(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.FedNova
	a := newAggregator(t, cfg)

	u := upd("c1", 1, 6.0)
	u.LocalSteps = 5
	u.Gradients = params.Map{"w": {0.0}}

	out, err := a.Aggregate([]round.Update{u}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, out["w"][0], 1e-12)
}

func TestKrumSelectsConsensusClient(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.Krum
	a := newAggregator(t, cfg)

	// n=6, f=1: score sums the 3 smallest row distances (self included),
	// so the winner has the smallest two-nearest-neighbor sum: client c1.
	updates := []round.Update{
		upd("c0", 1, 0.0),
		upd("c1", 1, 1.0),
		upd("c2", 1, 3.0),
		upd("c3", 1, 6.0),
		upd("c4", 1, 10.0),
		upd("c5", 1, 100.0),
	}

	out, err := a.Aggregate(updates, nil)
	require.NoError(t, err)
	assert.Equal(t, updates[1].Weights, out, "krum must return one input map unchanged")
}

func TestKrumFallbackToAverage(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.Krum
	a := newAggregator(t, cfg)

	// n=3 <= 2f+1 for f=1.
	out, err := a.Aggregate([]round.Update{
		upd("c1", 1, 0.0),
		upd("c2", 1, 3.0),
		upd("c3", 1, 6.0),
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, out["w"][0], 1e-12)
}

func TestTrimmedMean(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.TrimmedMean
	cfg.TrimRatio = 0.2
	a := newAggregator(t, cfg)

	// n=5, k=1: drops 1 and 100, averages 2,3,4.
	out, err := a.Aggregate([]round.Update{
		upd("c1", 1, 1.0),
		upd("c2", 1, 2.0),
		upd("c3", 1, 3.0),
		upd("c4", 1, 4.0),
		upd("c5", 1, 100.0),
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, out["w"][0], 1e-12)
}

func TestTrimmedMeanFallbackToMedian(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.TrimmedMean
	cfg.TrimRatio = 0.5
	a := newAggregator(t, cfg)

	// n=2, k=1: n <= 2k falls back to the coordinate-wise median.
	out, err := a.Aggregate([]round.Update{
		upd("c1", 1, 1.0),
		upd("c2", 1, 5.0),
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, out["w"][0], 1e-12)
}

func TestMedian(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.Median

	cases := []struct {
		desc string
		vals []float64
		want float64
	}{
		{desc: "odd count", vals: []float64{1, 100, 5}, want: 5},
		{desc: "even count", vals: []float64{1, 2, 3, 10}, want: 2.5},
		{desc: "single client", vals: []float64{7}, want: 7},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			a := newAggregator(t, cfg)

			updates := make([]round.Update, len(tc.vals))
			for i, v := range tc.vals {
				updates[i] = upd("c"+string(rune('0'+i)), 1, v)
			}

			out, err := a.Aggregate(updates, nil)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, out["w"][0], 1e-12)
		})
	}
}

func TestAdaptiveUniformFallback(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.Adaptive
	a := newAggregator(t, cfg)

	// samples=1 makes ln(samples)=0 for every client, so all adaptive
	// weights collapse to zero and the average falls back to uniform.
	out, err := a.Aggregate([]round.Update{
		upd("c1", 1, 1.0),
		upd("c2", 1, 3.0),
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out["w"][0], 1e-12)
}

func TestAdaptiveWeighting(t *testing.T) {
	cfg := aggregate.DefaultConfig()
	cfg.Method = aggregate.Adaptive
	a := newAggregator(t, cfg)

	strong := upd("c1", 100, 10.0)
	strong.Accuracy = 0.8
	strong.Loss = 1.0

	weak := upd("c2", 100, 0.0)
	weak.Accuracy = 0.2
	weak.Loss = 1.0

	// Same samples and loss, so weights normalize to 0.8 and 0.2.
	out, err := a.Aggregate([]round.Update{strong, weak}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, out["w"][0], 1e-6)
}
