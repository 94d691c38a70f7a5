package drift

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const klEps = 1e-10

// distributionTest measures, per feature, the KL divergence between
// histograms of the oldest and newest window halves, binned on the
// reference range, and averages across features.
func (d *Detector) distributionTest(matrix [][]float64) Result {
	res := Result{Method: MethodDistribution}

	w := d.cfg.WindowSize
	if len(matrix) < 2*w {
		return res
	}
	reference := matrix[:w]
	recent := matrix[len(matrix)-w:]

	var divergences []float64
	for i := 0; i < featureWidth(matrix); i++ {
		if kl, ok := klDivergence(column(reference, i), column(recent, i), d.cfg.Bins); ok {
			divergences = append(divergences, kl)
		}
	}

	if len(divergences) == 0 {
		return res
	}

	avg := stat.Mean(divergences, nil)

	res.Detected = avg > d.cfg.KLThreshold
	res.Confidence = math.Min(avg/2, 1)
	res.AvgKL = avg

	return res
}

// klDivergence bins both samples into equal-width histograms spanning
// the reference range, floors every bin with a small epsilon,
// normalizes, and returns Σ ref·ln(ref/rec). Recent samples outside
// the reference range are not counted, matching histogram binning on
// fixed edges.
func klDivergence(ref, rec []float64, bins int) (float64, bool) {
	if len(ref) == 0 || len(rec) == 0 {
		return 0, false
	}

	refSorted := sortedCopy(ref)
	lo := refSorted[0]
	hi := refSorted[len(refSorted)-1]
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// Widen the top edge so the maximum sample lands in the last bin.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	refHist := stat.Histogram(nil, dividers, refSorted, nil)

	recSorted := sortedCopy(rec)
	filtered := make([]float64, 0, len(recSorted))
	for _, v := range recSorted {
		if v >= dividers[0] && v < dividers[bins] {
			filtered = append(filtered, v)
		}
	}
	recHist := stat.Histogram(nil, dividers, filtered, nil)

	for i := range refHist {
		refHist[i] += klEps
		recHist[i] += klEps
	}
	floats.Scale(1/floats.Sum(refHist), refHist)
	floats.Scale(1/floats.Sum(recHist), recHist)

	var kl float64
	for i := range refHist {
		kl += refHist[i] * math.Log(refHist[i]/recHist[i])
	}

	return kl, true
}
