package drift

import "sort"

// featureWidth returns the number of features shared by every row, the
// shortest row bounding it so ragged input never panics a test.
func featureWidth(matrix [][]float64) int {
	if len(matrix) == 0 {
		return 0
	}

	width := len(matrix[0])
	for _, row := range matrix[1:] {
		if len(row) < width {
			width = len(row)
		}
	}

	return width
}

func column(matrix [][]float64, i int) []float64 {
	col := make([]float64, 0, len(matrix))
	for _, row := range matrix {
		if len(row) > i {
			col = append(col, row[i])
		}
	}

	return col
}

func sortedCopy(xs []float64) []float64 {
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)

	return cp
}

func isConstant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}

	return true
}
