package retriever

import (
	"math"

	"docflow/internal/embedding"
)

// MaximalMarginalRelevance greedily picks k candidate indexes, trading
// similarity to the query (weight lambda) against similarity to the
// candidates already picked (weight 1-lambda). The most similar candidate
// is always picked first.
func MaximalMarginalRelevance(query []float32, candidates [][]float32, lambda float64, k int) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = float64(embedding.Cosine(query, c))
	}

	selected := make([]int, 0, k)
	picked := make([]bool, len(candidates))
	// running max similarity of each candidate to the selected set
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
		for i := range candidates {
			if picked[i] {
				continue
			}
			if sim := float64(embedding.Cosine(candidates[best], candidates[i])); sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}
