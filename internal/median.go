package internal

import (
	"slices"
)

const (
	MEDIAN_MAX     = 64         // Largest sample set Median accepts.
	MEDIAN_INVALID = ^uint64(0) // Returned for empty or oversized sample sets.
)

// Median returns the median of the samples. Even-sized sets average the two
// middle values, rounding down. The input is not modified.
func Median(samples []uint64) (median uint64) {
	if len(samples) == 0 || len(samples) > MEDIAN_MAX {
		return MEDIAN_INVALID
	}

	var sorted [MEDIAN_MAX]uint64
	work := sorted[:len(samples)]
	copy(work, samples)
	slices.Sort(work)

	mid := len(work) / 2
	if len(work)%2 == 1 {
		median = work[mid]
		return
	}

	lo, hi := work[mid-1], work[mid]
	median = lo + (hi-lo)/2
	return
}
