package drift

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	clusterCount   = 3
	kmeansMaxIters = 100
)

// clusteringTest clusters the most recent window and compares the new
// cluster centers to the ones stored from the previous run. The first
// run only seeds the stored centers.
func (d *Detector) clusteringTest(p *telemetry, matrix [][]float64) Result {
	res := Result{Method: MethodClustering}

	if len(matrix) < d.cfg.MinClusterPoints {
		return res
	}

	recent := matrix
	if len(recent) > d.cfg.WindowSize {
		recent = recent[len(recent)-d.cfg.WindowSize:]
	}

	centers, labels := kmeans(recent, clusterCount, kmeansMaxIters)
	res.Silhouette = silhouette(recent, labels, len(centers))

	if p.clusterCenters != nil {
		n := min(len(p.clusterCenters), len(centers))
		var shift float64
		for i := 0; i < n; i++ {
			shift += floats.Distance(p.clusterCenters[i], centers[i], 2)
		}
		if n > 0 {
			shift /= float64(n)
		}

		res.CenterShift = shift
		res.Detected = shift > d.cfg.ClusterShift
		res.Confidence = math.Min(shift/2, 1)
	}

	p.clusterCenters = centers

	return res
}

// kmeans runs Lloyd's algorithm with centers seeded from evenly spaced
// input points, so results are deterministic for a given window.
// Clusters that empty out keep their previous center.
func kmeans(points [][]float64, k, maxIters int) ([][]float64, []int) {
	n := len(points)
	if k > n {
		k = n
	}
	dim := featureWidth(points)

	centers := make([][]float64, k)
	step := n / k
	for i := range centers {
		centers[i] = append([]float64(nil), points[i*step][:dim]...)
	}

	labels := make([]int, n)
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, pt := range points {
			best := 0
			bestDist := math.Inf(1)
			for j, c := range centers {
				if dist := floats.Distance(pt[:dim], c, 2); dist < bestDist {
					bestDist = dist
					best = j
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for j := range sums {
			sums[j] = make([]float64, dim)
		}
		for i, pt := range points {
			counts[labels[i]]++
			floats.Add(sums[labels[i]], pt[:dim])
		}
		for j := range centers {
			if counts[j] > 0 {
				floats.Scale(1/float64(counts[j]), sums[j])
				centers[j] = sums[j]
			}
		}
	}

	return centers, labels
}

// silhouette returns the mean silhouette coefficient across points;
// points in singleton clusters contribute zero.
func silhouette(points [][]float64, labels []int, k int) float64 {
	n := len(points)
	if n < 2 || k < 2 {
		return 0
	}
	dim := featureWidth(points)

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	var total float64
	for i, pt := range points {
		sums := make([]float64, k)
		for j, other := range points {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(pt[:dim], other[:dim], 2)
		}

		own := labels[i]
		if sizes[own] < 2 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)

		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			if mean := sums[c] / float64(sizes[c]); mean < b {
				b = mean
			}
		}
		if math.IsInf(b, 1) {
			continue
		}

		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}

	return total / float64(n)
}
