package indicators

import "sort"

// FindPeaks returns the indices of strict local maxima of series, ascending,
// such that any two returned indices are at least distance apart.
//
// A value equal to one of its neighbours is not a peak, and the first and last
// elements never are. When candidates are closer than distance, the highest one
// is kept (the later index on equal heights) and the others are dropped.
func FindPeaks(series []float64, distance int) []int {
	candidates := make([]int, 0)
	for i := 1; i < len(series)-1; i++ {
		if series[i] > series[i-1] && series[i] > series[i+1] {
			candidates = append(candidates, i)
		}
	}
	if distance <= 1 || len(candidates) < 2 {
		return candidates
	}

	// Visit candidates from highest to lowest.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ha, hb := series[candidates[order[a]]], series[candidates[order[b]]]
		if ha != hb {
			return ha > hb
		}
		return order[a] > order[b]
	})

	keep := make([]bool, len(candidates))
	for i := range keep {
		keep[i] = true
	}
	for _, c := range order {
		if !keep[c] {
			continue
		}
		for k := c - 1; k >= 0 && candidates[c]-candidates[k] < distance; k-- {
			keep[k] = false
		}
		for k := c + 1; k < len(candidates) && candidates[k]-candidates[c] < distance; k++ {
			keep[k] = false
		}
	}

	peaks := make([]int, 0, len(candidates))
	for i, idx := range candidates {
		if keep[i] {
			peaks = append(peaks, idx)
		}
	}
	return peaks
}

// FindTroughs returns local minima with the same spacing rule, found as the
// peaks of the negated series.
func FindTroughs(series []float64, distance int) []int {
	negated := make([]float64, len(series))
	for i, v := range series {
		negated[i] = -v
	}
	return FindPeaks(negated, distance)
}
