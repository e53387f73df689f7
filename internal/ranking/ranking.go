// Package ranking scores stored chunk vectors against a query vector.
package ranking

import (
	"math"
	"sort"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// Candidate is a chunk considered for a query.
type Candidate struct {
	// Chunk is the stored chunk. Its Embedding is the vector that gets scored.
	Chunk domain.Chunk

	// DocumentName is the name of the owning document.
	DocumentName string

	// DocumentType is the media type of the owning document.
	DocumentType string
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|).
// The result is NaN when either vector has zero magnitude, when the
// lengths differ, or when either vector is empty.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every candidate against query and returns at most k results
// in descending score order. NaN scores rank below every number. Equal
// scores keep their input order. k <= 0 returns an empty result.
func Rank(query []float32, candidates []Candidate, k int) []domain.RankedChunk {
	if k <= 0 || len(candidates) == 0 {
		return []domain.RankedChunk{}
	}

	ranked := make([]domain.RankedChunk, len(candidates))
	for i, c := range candidates {
		ranked[i] = domain.RankedChunk{
			Chunk:        c.Chunk,
			DocumentName: c.DocumentName,
			DocumentType: c.DocumentType,
			Score:        CosineSimilarity(query, c.Chunk.Embedding),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return higher(ranked[i].Score, ranked[j].Score)
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// higher reports whether a ranks strictly before b.
func higher(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN:
		return false
	case bNaN:
		return true
	default:
		return a > b
	}
}

// AboveThreshold drops results scoring below min. NaN scores are dropped.
// A min of zero or less keeps everything.
func AboveThreshold(ranked []domain.RankedChunk, minScore float64) []domain.RankedChunk {
	if minScore <= 0 {
		return ranked
	}
	out := ranked[:0:0]
	for _, r := range ranked {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}
