package stats

import (
	"math/rand"
	"sort"
)

// SampleIndices returns k distinct indices drawn uniformly from [0, n),
// in ascending order. The draw is deterministic for a given seed so that
// repeated aggregations of the same run yield identical artifacts.
// When k >= n all indices are returned.
func SampleIndices(n, k int, seed int64) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	rng := rand.New(rand.NewSource(seed))
	// Partial Fisher-Yates over an index table.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := idx[:k]
	sort.Ints(out)
	return out
}
