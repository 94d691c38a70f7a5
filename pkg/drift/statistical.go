package drift

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// statisticalTest splits the buffered window into its oldest and
// newest halves and, per feature, runs a two-sample Kolmogorov-Smirnov
// test and Welch's t-test. All collected p-values are combined with
// Fisher's method; degrees of freedom follow the tests that actually
// produced a p-value.
func (d *Detector) statisticalTest(matrix [][]float64) Result {
	res := Result{Method: MethodStatistical}

	w := d.cfg.WindowSize
	if len(matrix) < 2*w {
		return res
	}
	reference := matrix[:w]
	recent := matrix[len(matrix)-w:]

	var pValues []float64
	for i := 0; i < featureWidth(matrix); i++ {
		refCol := column(reference, i)
		recCol := column(recent, i)

		if !isConstant(refCol) && !isConstant(recCol) {
			if p, ok := ksTest(refCol, recCol); ok {
				pValues = append(pValues, p)
			}
		}
		if p, ok := welchTTest(refCol, recCol); ok {
			pValues = append(pValues, p)
		}
	}

	if len(pValues) == 0 {
		return res
	}

	// Certain shifts produce p = 0; floor them so the statistic
	// stays finite.
	var chiSquared float64
	for _, p := range pValues {
		chiSquared += math.Log(math.Max(p, 1e-300))
	}
	chiSquared *= -2

	combined := distuv.ChiSquared{K: float64(2 * len(pValues))}.Survival(chiSquared)

	res.Detected = combined < d.cfg.PValueThreshold
	res.Confidence = 1 - combined
	res.PValue = combined
	res.TestedFeatures = len(pValues)

	return res
}

// ksTest returns the two-sided p-value of the two-sample
// Kolmogorov-Smirnov test using the asymptotic Kolmogorov distribution
// with the small-sample correction of Stephens.
func ksTest(a, b []float64) (float64, bool) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 == 0 || n2 == 0 {
		return 0, false
	}

	d := ksStatistic(a, b)
	en := math.Sqrt(n1 * n2 / (n1 + n2))

	return kolmogorovSurvival((en + 0.12 + 0.11/en) * d), true
}

// ksStatistic computes the supremum distance between the two empirical
// CDFs by walking the merged sorted samples.
func ksStatistic(a, b []float64) float64 {
	as := sortedCopy(a)
	bs := sortedCopy(b)

	var i, j int
	var d float64
	for i < len(as) && j < len(bs) {
		x := math.Min(as[i], bs[j])
		for i < len(as) && as[i] <= x {
			i++
		}
		for j < len(bs) && bs[j] <= x {
			j++
		}
		if diff := math.Abs(float64(i)/float64(len(as)) - float64(j)/float64(len(bs))); diff > d {
			d = diff
		}
	}

	return d
}

// kolmogorovSurvival evaluates Q(λ) = 2·Σ (−1)^(k−1)·exp(−2k²λ²),
// the survival function of the Kolmogorov distribution.
func kolmogorovSurvival(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}

	var sum, prev float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * 2 * math.Exp(-2*float64(k)*float64(k)*lambda*lambda)
		sum += term
		abs := math.Abs(term)
		if abs <= 1e-3*prev || abs <= 1e-8*math.Abs(sum) {
			return clampUnit(sum)
		}
		prev = abs
		sign = -sign
	}

	// The series failed to converge, which only happens for tiny λ
	// where the two samples are indistinguishable.
	return 1
}

// welchTTest returns the two-sided p-value of Welch's unequal-variance
// t-test. Degenerate inputs (too few samples, or zero variance with
// equal means) produce no p-value; zero variance with differing means
// is a certain mean shift and yields p = 0.
func welchTTest(a, b []float64) (float64, bool) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return 0, false
	}

	m1, m2 := stat.Mean(a, nil), stat.Mean(b, nil)
	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)

	se := v1/n1 + v2/n2
	if se == 0 {
		if m1 == m2 {
			return 0, false
		}

		return 0, true
	}

	t := (m1 - m2) / math.Sqrt(se)
	df := se * se / ((v1/n1)*(v1/n1)/(n1-1) + (v2/n2)*(v2/n2)/(n2-1))
	if math.IsNaN(t) || math.IsNaN(df) || df <= 0 {
		return 0, false
	}

	p := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))

	return clampUnit(p), true
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
