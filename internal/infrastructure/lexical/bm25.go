// Package lexical provides the in-process term-ranking retriever built from
// a full scan of one (market, domain) partition of the document store.
package lexical

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

const (
	bm25K1     = 1.2
	bm25B      = 0.75
	titleBoost = 1.5
)

// BM25Retriever ranks a fixed document set by BM25 term overlap. Built once
// per partition and safe for concurrent reads; never mutated after build.
type BM25Retriever struct {
	docs      []domain.Document
	termFreqs []map[string]float64
	docLens   []float64
	avgDocLen float64
	docFreqs  map[string]int
}

func NewBM25Retriever(docs []domain.Document) *BM25Retriever {
	r := &BM25Retriever{
		docs:      docs,
		termFreqs: make([]map[string]float64, len(docs)),
		docLens:   make([]float64, len(docs)),
		docFreqs:  make(map[string]int),
	}

	var totalLen float64
	for i, doc := range docs {
		tf := make(map[string]float64, 64)
		appendTermFreq(tf, tokenize(doc.Content), 1.0)
		appendTermFreq(tf, tokenize(doc.Metadata.Title), titleBoost)

		var docLen float64
		for _, count := range tf {
			docLen += count
		}
		r.termFreqs[i] = tf
		r.docLens[i] = docLen
		totalLen += docLen

		for term := range tf {
			r.docFreqs[term]++
		}
	}
	if len(docs) > 0 {
		r.avgDocLen = totalLen / float64(len(docs))
	}
	return r
}

// Retrieve returns the top k documents by BM25 score. Ties keep partition
// order, so identical inputs give identical output ordering.
func (r *BM25Retriever) Retrieve(_ context.Context, query string, k int) ([]domain.Document, error) {
	if k <= 0 || len(r.docs) == 0 {
		return nil, nil
	}

	queryTerms := tokenize(query)
	type scored struct {
		idx   int
		score float64
	}
	candidates := make([]scored, 0, len(r.docs))
	for i := range r.docs {
		if score := r.score(queryTerms, i); score > 0 {
			candidates = append(candidates, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].idx < candidates[j].idx
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]domain.Document, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, r.docs[c.idx])
	}
	return out, nil
}

func (r *BM25Retriever) Size() int {
	return len(r.docs)
}

func (r *BM25Retriever) score(queryTerms []string, docIdx int) float64 {
	tf := r.termFreqs[docIdx]
	lenNorm := 1 - bm25B + bm25B*(r.docLens[docIdx]/math.Max(r.avgDocLen, 1))

	var total float64
	for _, term := range queryTerms {
		freq, ok := tf[term]
		if !ok {
			continue
		}
		df := r.docFreqs[term]
		idf := math.Log(1 + (float64(len(r.docs))-float64(df)+0.5)/(float64(df)+0.5))
		total += idf * (freq * (bm25K1 + 1)) / (freq + bm25K1*lenNorm)
	}
	return total
}

func appendTermFreq(dst map[string]float64, tokens []string, weight float64) {
	for _, token := range tokens {
		if token != "" {
			dst[token] += weight
		}
	}
}

// tokenize lowercases and splits on non-letter/digit runes. Letter covers
// CJK, so Korean substance-record fields tokenize as well.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
