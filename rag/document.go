package rag

import (
	"math"
	"sort"
)

// Document is a normalized source file read by the loader.
// Immutable once created; input to the passage splitter.
type Document struct {
	Content    string `json:"content"`
	SourcePath string `json:"source_path"`
}

// Passage is a slice of a document. Two tiers exist: child passages are
// small, embedded and searched; parent passages are larger and returned as
// answer context. ParentID on a child resolves to exactly one parent.
type Passage struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	ParentID   string `json:"parent_id,omitempty"`
	SourcePath string `json:"source_path"`
}

// Result pairs a passage with a stage-local relevance score.
// Scores are only comparable within a single retrieval stage: cosine
// similarity, MMR-adjusted score and cross-encoder score live on
// different scales.
type Result struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// cosineSimilarity computes the cosine similarity of two vectors.
// Mismatched or zero-norm vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore sorts results by descending score. The sort is stable so
// equal scores preserve index-insertion order.
func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
