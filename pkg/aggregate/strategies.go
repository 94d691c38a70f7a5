package aggregate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

const adaptiveEps = 1e-8

// fedAvg weights each client by its share of the total sample count,
// so the output at every coordinate is a convex combination of the
// inputs.
func (a *Aggregator) fedAvg(updates []round.Update, _ params.Map) (params.Map, error) {
	var total int64
	for _, u := range updates {
		total += int64(u.SampleCount)
	}

	out := params.Zeros(updates[0].Weights.Schema())
	for _, u := range updates {
		w := float64(u.SampleCount) / float64(total)
		for k, v := range u.Weights {
			floats.AddScaled(out[k], w, v)
		}
	}

	return out, nil
}

// fedProx shrinks each client value toward the previous global model
// by the proximal coefficient before sample-weighted averaging.
func (a *Aggregator) fedProx(updates []round.Update, global params.Map) (params.Map, error) {
	if len(global) == 0 {
		return nil, ErrNoGlobalModel
	}
	if !global.Schema().Matches(updates[0].Weights.Schema()) {
		return nil, fmt.Errorf("global model: %w", vigilerrors.ErrSchemaMismatch)
	}

	var total int64
	for _, u := range updates {
		total += int64(u.SampleCount)
	}

	mu := a.cfg.Mu
	out := params.Zeros(updates[0].Weights.Schema())
	contrib := make(map[string][]float64, len(out))
	for k, v := range out {
		contrib[k] = make([]float64, len(v))
	}

	for _, u := range updates {
		w := float64(u.SampleCount) / float64(total)
		for k, v := range u.Weights {
			c := contrib[k]
			copy(c, v)
			floats.Scale(1-mu, c)
			floats.AddScaled(c, mu, global[k])
			floats.AddScaled(out[k], w, c)
		}
	}

	return out, nil
}

// fedNova rescales each client map by localSteps/‖gradient‖ per key
// before an unweighted average, compensating for heterogeneous local
// step counts. Keys without a gradient, or with a zero-norm gradient,
// stay unscaled.
func (a *Aggregator) fedNova(updates []round.Update, _ params.Map) (params.Map, error) {
	out := params.Zeros(updates[0].Weights.Schema())

	for _, u := range updates {
		steps := float64(u.LocalSteps)
		if steps < 1 {
			steps = 1
		}

		for k, v := range u.Weights {
			scale := 1.0
			if g, ok := u.Gradients[k]; ok {
				if norm := floats.Norm(g, 2); norm > 0 {
					scale = steps / norm
				}
			}
			floats.AddScaled(out[k], scale, v)
		}
	}

	n := float64(len(updates))
	for _, v := range out {
		floats.Scale(1/n, v)
	}

	return out, nil
}

// krum picks the single client whose update is closest to its n-f-2
// nearest neighbors and returns that map untouched, discarding
// outliers entirely. Needs n > 2f+1 clients to tolerate f Byzantine
// ones; below that it degrades to a simple average.
func (a *Aggregator) krum(updates []round.Update, _ params.Map) (params.Map, error) {
	n := len(updates)
	f := a.cfg.ByzantineTolerance

	if n <= 2*f+1 {
		a.logger.Warn("not enough clients for krum, using simple average",
			slog.Int("clients", n),
			slog.Int("byzantine_tolerance", f),
		)

		return simpleAverage(updates), nil
	}

	flat := make([][]float64, n)
	for i, u := range updates {
		flat[i] = u.Weights.Flatten()
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(flat[i], flat[j], 2)
			dist[i][j], dist[j][i] = d, d
		}
	}

	selected := 0
	best := math.Inf(1)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(row, dist[i])
		sort.Float64s(row)

		var score float64
		for _, d := range row[:n-f-2] {
			score += d
		}
		if score < best {
			best = score
			selected = i
		}
	}

	a.logger.Info("krum selected client",
		slog.String("client_id", updates[selected].ClientID),
		slog.Int("clients", n),
	)

	return updates[selected].Weights.Clone(), nil
}

// trimmedMean drops the k largest and k smallest values per
// coordinate before averaging, k = ⌊trimRatio·n⌋. Needs n > 2k;
// below that it degrades to the coordinate-wise median.
func (a *Aggregator) trimmedMean(updates []round.Update, global params.Map) (params.Map, error) {
	n := len(updates)
	k := int(a.cfg.TrimRatio * float64(n))

	if n <= 2*k {
		a.logger.Warn("not enough clients for trimmed mean, using median",
			slog.Int("clients", n),
			slog.Int("trim", k),
		)

		return a.median(updates, global)
	}

	out := make(params.Map, len(updates[0].Weights))
	column := make([]float64, n)
	for key, first := range updates[0].Weights {
		res := make([]float64, len(first))
		for j := range first {
			for i, u := range updates {
				column[i] = u.Weights[key][j]
			}
			sort.Float64s(column)
			res[j] = stat.Mean(column[k:n-k], nil)
		}
		out[key] = res
	}

	return out, nil
}

// median takes the coordinate-wise median across clients, averaging
// the two middle values for an even client count.
func (a *Aggregator) median(updates []round.Update, _ params.Map) (params.Map, error) {
	n := len(updates)

	out := make(params.Map, len(updates[0].Weights))
	column := make([]float64, n)
	for key, first := range updates[0].Weights {
		res := make([]float64, len(first))
		for j := range first {
			for i, u := range updates {
				column[i] = u.Weights[key][j]
			}
			sort.Float64s(column)
			if n%2 == 1 {
				res[j] = column[n/2]
			} else {
				res[j] = (column[n/2-1] + column[n/2]) / 2
			}
		}
		out[key] = res
	}

	return out, nil
}

// adaptive derives each client's weight from its reported metrics,
// accuracy·ln(samples)/(loss+ε), normalized to sum 1. Unreported
// metrics take the neutral defaults accuracy 0.5 and loss 1.0; if
// every weight is zero the average falls back to uniform.
func (a *Aggregator) adaptive(updates []round.Update, _ params.Map) (params.Map, error) {
	n := len(updates)

	weights := make([]float64, n)
	for i, u := range updates {
		acc := u.Accuracy
		if acc <= 0 {
			acc = 0.5
		}
		loss := u.Loss
		if loss <= 0 {
			loss = 1.0
		}
		samples := float64(u.SampleCount)
		if samples < 1 {
			samples = 1
		}

		weights[i] = acc * math.Log(samples) / (loss + adaptiveEps)
	}

	if sum := floats.Sum(weights); sum > 0 {
		floats.Scale(1/sum, weights)
	} else {
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
	}

	out := params.Zeros(updates[0].Weights.Schema())
	for i, u := range updates {
		for k, v := range u.Weights {
			floats.AddScaled(out[k], weights[i], v)
		}
	}

	return out, nil
}

func simpleAverage(updates []round.Update) params.Map {
	out := params.Zeros(updates[0].Weights.Schema())
	for _, u := range updates {
		for k, v := range u.Weights {
			floats.Add(out[k], v)
		}
	}

	n := float64(len(updates))
	for _, v := range out {
		floats.Scale(1/n, v)
	}

	return out
}
