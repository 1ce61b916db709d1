package engine

import (
	"math"

	"github.com/example/go-tokkit/internal/artifact"
)

// unknownRuneCost penalizes single-rune fallback edges so any dictionary
// cover is preferred over character splatter, while unknown runes still
// segment instead of failing.
const unknownRuneCost = 20000

// latticeSegment finds the minimum-cost cover of runes with dictionary
// surfaces, Mecab style: a Viterbi pass over a lattice whose edges are
// dictionary prefix matches plus a per-rune unknown edge. Returns the
// resulting [start, end) rune spans in order.
func latticeSegment(runes []rune, dict *artifact.Dictionary) [][2]int {
	n := len(runes)
	if n == 0 {
		return nil
	}

	best := make([]int, n+1)
	prev := make([]int, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.MaxInt
		prev[i] = -1
	}

	maxLen := dict.MaxSurfaceRunes()

	for i := 0; i < n; i++ {
		if best[i] == math.MaxInt {
			continue
		}

		relax := func(end, cost int) {
			if total := best[i] + cost; total < best[end] {
				best[end] = total
				prev[end] = i
			}
		}

		relax(i+1, unknownRuneCost)

		limit := maxLen
		if n-i < limit {
			limit = n - i
		}
		for l := 1; l <= limit; l++ {
			if cost, ok := dict.Lookup(string(runes[i : i+l])); ok {
				relax(i+l, cost)
			}
		}
	}

	// Walk back from the end; every position is reachable via the unknown
	// edge, so the path always exists.
	var spans [][2]int
	for end := n; end > 0; {
		start := prev[end]
		spans = append(spans, [2]int{start, end})
		end = start
	}
	for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
		spans[i], spans[j] = spans[j], spans[i]
	}
	return spans
}
