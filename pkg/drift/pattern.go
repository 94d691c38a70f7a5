package drift

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Pattern metric names. Category ranges are keyed by these, so custom
// category sets in config use the same names.
const (
	MetricHeartRateMean   = "hr_mean"
	MetricHeartRateStd    = "hr_std"
	MetricHeartRateVar    = "hr_variability"
	MetricBPMean          = "bp_mean"
	MetricBPVariability   = "bp_variability"
	MetricCholesterolMean = "chol_mean"
	MetricActivityLevel   = "activity_level"
	MetricActivityVar     = "activity_variance"
)

// Feature vector layout of the physiological record. Only these
// columns feed the pattern metrics.
const (
	bloodPressureIndex = 3
	cholesterolIndex   = 4
	heartRateIndex     = 7
	activityIndex      = 8
)

// patternTest measures how far the recent window's vital-sign metrics
// fall outside the expected ranges of the patient's current category.
func (d *Detector) patternTest(p *telemetry, matrix [][]float64) Result {
	res := Result{Method: MethodPattern}

	if len(matrix) < d.cfg.MinPatternPoints {
		return res
	}

	recent := matrix
	if len(recent) > d.cfg.WindowSize {
		recent = recent[len(recent)-d.cfg.WindowSize:]
	}

	metrics := extractMetrics(recent)
	ranges := d.categoryRanges(p.category)

	var sum float64
	var matched int
	for name, value := range metrics {
		r, ok := ranges[name]
		if !ok {
			continue
		}
		matched++

		switch {
		case value < r.Min && r.Min != 0:
			sum += (r.Min - value) / r.Min
		case value > r.Max && r.Max != 0:
			sum += (value - r.Max) / r.Max
		}
	}

	if matched == 0 {
		return res
	}

	avg := sum / float64(matched)
	res.AvgDeviation = avg
	res.Detected = avg > d.cfg.PatternDeviation
	res.Confidence = math.Min(avg, 1)

	return res
}

// extractMetrics summarizes the vital-sign columns present in the
// window. Columns past the row width are skipped.
func extractMetrics(matrix [][]float64) map[string]float64 {
	metrics := make(map[string]float64)
	width := featureWidth(matrix)

	if width > heartRateIndex {
		hr := column(matrix, heartRateIndex)
		metrics[MetricHeartRateMean] = stat.Mean(hr, nil)
		metrics[MetricHeartRateStd] = stat.PopStdDev(hr, nil)
		metrics[MetricHeartRateVar] = stat.PopVariance(hr, nil)
	}

	if width > bloodPressureIndex {
		bp := column(matrix, bloodPressureIndex)
		mean := stat.Mean(bp, nil)
		metrics[MetricBPMean] = mean
		if mean > 0 {
			metrics[MetricBPVariability] = stat.PopStdDev(bp, nil) / mean
		}
	}

	if width > cholesterolIndex {
		metrics[MetricCholesterolMean] = stat.Mean(column(matrix, cholesterolIndex), nil)
	}

	if width > activityIndex {
		act := column(matrix, activityIndex)
		metrics[MetricActivityLevel] = stat.Mean(act, nil)
		metrics[MetricActivityVar] = stat.PopVariance(act, nil)
	}

	return metrics
}

func (d *Detector) categoryRanges(name string) map[string]Range {
	for _, cat := range d.cfg.Categories {
		if cat.Name == name {
			return cat.Ranges
		}
	}

	return nil
}
