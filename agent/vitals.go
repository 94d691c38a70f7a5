package agent

import "math/rand"

// Feature vector layout shared with the drift engine: thirteen
// clinical features with heart rate at index 7, systolic blood
// pressure at 3, cholesterol at 4 and activity level at 8.
const numFeatures = 13

const (
	idxAge       = 0
	idxSex       = 1
	idxChestPain = 2
	idxSystolic  = 3
	idxChol      = 4
	idxHeartRate = 7
	idxActivity  = 8
)

// vitalsState is one simulated patient: a bounded random walk over
// the vitals the drift detector watches, so the streamed telemetry
// has realistic short-term correlation instead of white noise.
type vitalsState struct {
	age       float64
	sex       float64
	heartRate float64
	systolic  float64
	chol      float64
	activity  float64
}

func newVitalsState(rng *rand.Rand) *vitalsState {
	return &vitalsState{
		age:       30 + rng.Float64()*40,
		sex:       float64(rng.Intn(2)),
		heartRate: 60 + rng.Float64()*60,
		systolic:  90 + rng.Float64()*50,
		chol:      150 + rng.Float64()*130,
		activity:  rng.Float64(),
	}
}

func (v *vitalsState) step(rng *rand.Rand) []float64 {
	v.heartRate = clampWalk(rng, v.heartRate, 2.0, 60, 120)
	v.systolic = clampWalk(rng, v.systolic, 1.5, 90, 140)
	v.chol = clampWalk(rng, v.chol, 1.0, 150, 280)
	v.activity = clampWalk(rng, v.activity, 0.05, 0, 1)

	features := make([]float64, numFeatures)
	features[idxAge] = v.age
	features[idxSex] = v.sex
	features[idxChestPain] = float64(rng.Intn(4))
	features[idxSystolic] = v.systolic
	features[idxChol] = v.chol
	features[idxHeartRate] = v.heartRate
	features[idxActivity] = v.activity
	for i := range features {
		if features[i] == 0 && i != idxSex && i != idxChestPain {
			features[i] = rng.Float64() * 0.1
		}
	}

	return features
}

func clampWalk(rng *rand.Rand, v, step, lo, hi float64) float64 {
	v += (rng.Float64()*2 - 1) * step
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

// risk is a crude scoring stand-in: elevated heart rate, pressure and
// cholesterol push the synthetic prediction toward 1.
func (v *vitalsState) risk() float64 {
	score := 0.0
	if v.heartRate > 100 {
		score += 0.4
	}
	if v.systolic > 130 {
		score += 0.3
	}
	if v.chol > 240 {
		score += 0.3
	}

	return score
}
