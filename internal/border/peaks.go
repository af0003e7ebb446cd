package border

import "sort"

// FindPeaks selects up to maxLines strict local maxima of scores, each at
// least minDistance from every peak accepted before it. Candidates are taken
// strongest first (ties by lower index); the result is sorted by position.
func FindPeaks(scores []float64, maxLines int, minDistance float64) []int {
	if maxLines <= 0 {
		return []int{}
	}

	candidates := localMaxima(scores)
	sort.SliceStable(candidates, func(i, j int) bool {
		return scores[candidates[i]] > scores[candidates[j]]
	})

	accepted := make([]int, 0, maxLines)
	for _, c := range candidates {
		if len(accepted) >= maxLines {
			break
		}
		if farFromAll(c, accepted, minDistance) {
			accepted = append(accepted, c)
		}
	}

	sort.Ints(accepted)
	return accepted
}

// localMaxima returns indices strictly greater than both neighbours.
// The first and last index are never candidates.
func localMaxima(scores []float64) []int {
	var out []int
	for i := 1; i < len(scores)-1; i++ {
		if scores[i] > scores[i-1] && scores[i] > scores[i+1] {
			out = append(out, i)
		}
	}
	return out
}

func farFromAll(pos int, accepted []int, minDistance float64) bool {
	for _, a := range accepted {
		d := pos - a
		if d < 0 {
			d = -d
		}
		if float64(d) < minDistance {
			return false
		}
	}
	return true
}

// RankScores returns every index of scores ordered by descending score,
// ties by lower index.
func RankScores(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}
