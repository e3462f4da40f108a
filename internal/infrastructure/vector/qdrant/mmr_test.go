package qdrant

import (
	"math"
	"testing"
)

func TestMMRSelectPrefersDiverseCandidates(t *testing.T) {
	candidates := []scoredPoint{
		{Score: 0.95, Vector: []float32{0.8, 0.6}, Payload: map[string]any{"source": "a"}},
		{Score: 0.94, Vector: []float32{0.8, 0.6}, Payload: map[string]any{"source": "a-dup"}},
		{Score: 0.70, Vector: []float32{0.6, -0.8}, Payload: map[string]any{"source": "b"}},
	}

	selected := mmrSelect([]float32{1, 0}, candidates, 2, 0.5)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(selected))
	}
	if selected[0].Payload["source"] != "a" || selected[1].Payload["source"] != "b" {
		t.Fatalf("expected a then b, got %v and %v", selected[0].Payload["source"], selected[1].Payload["source"])
	}
}

func TestMMRSelectReturnsAllWhenUnderK(t *testing.T) {
	candidates := []scoredPoint{{Score: 1, Vector: []float32{1, 0}}}
	selected := mmrSelect([]float32{1, 0}, candidates, 5, 0.5)
	if len(selected) != 1 {
		t.Fatalf("expected passthrough under k, got %d", len(selected))
	}
}

func TestMMRSelectFallsBackToScoreWithoutVectors(t *testing.T) {
	candidates := []scoredPoint{
		{Score: 0.3, Payload: map[string]any{"source": "low"}},
		{Score: 0.9, Payload: map[string]any{"source": "high"}},
		{Score: 0.5, Payload: map[string]any{"source": "mid"}},
	}

	selected := mmrSelect([]float32{1, 0}, candidates, 2, 0.5)
	if selected[0].Payload["source"] != "high" {
		t.Fatalf("expected highest raw score first, got %v", selected[0].Payload["source"])
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors: %v", got)
	}
	if got := cosineSimilarity(nil, []float32{1}); got != 0 {
		t.Fatalf("nil vector must score 0, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 2}, []float32{1}); got != 0 {
		t.Fatalf("length mismatch must score 0, got %v", got)
	}
}
