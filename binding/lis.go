package binding

import "sort"

// longestIncreasing marks the positions of seq that form a longest strictly
// increasing subsequence. Negative entries never take part. Views at the
// marked positions are already in relative order and need not move.
func longestIncreasing(seq []int) []bool {
	keep := make([]bool, len(seq))
	prev := make([]int, len(seq))
	var tails []int
	for i, v := range seq {
		if v < 0 {
			continue
		}
		j := sort.Search(len(tails), func(k int) bool { return seq[tails[k]] >= v })
		prev[i] = -1
		if j > 0 {
			prev[i] = tails[j-1]
		}
		if j == len(tails) {
			tails = append(tails, i)
		} else {
			tails[j] = i
		}
	}
	if len(tails) == 0 {
		return keep
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[i] = true
	}
	return keep
}
