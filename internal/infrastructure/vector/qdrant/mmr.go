package qdrant

import "math"

// mmrSelect subselects k candidates balancing query relevance against
// redundancy with already-picked candidates. Candidates without a vector
// fall back to their search score alone.
func mmrSelect(queryVector []float32, candidates []scoredPoint, k int, lambda float64) []scoredPoint {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= k {
		return candidates
	}

	selected := make([]scoredPoint, 0, k)
	remaining := make([]scoredPoint, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			relevance := cosineSimilarity(queryVector, cand.Vector)
			if len(cand.Vector) == 0 {
				relevance = cand.Score
			}

			redundancy := 0.0
			for _, picked := range selected {
				if sim := cosineSimilarity(cand.Vector, picked.Vector); sim > redundancy {
					redundancy = sim
				}
			}

			score := lambda*relevance - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
