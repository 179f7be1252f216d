// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package index

import (
	"math"
	"regexp"
	"sort"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// MaxDimension bounds collection dimensions; sqlite-vec rejects larger
// float vectors.
const MaxDimension = 8192

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,44}$`)

// ValidateSpec checks a collection spec before it reaches a backend.
func ValidateSpec(spec CollectionSpec) error {
	if !collectionNamePattern.MatchString(spec.Name) {
		return snerr.New(snerr.CodeIndexCollectionInvalid,
			"collection name must be 1-45 lowercase letters, digits or hyphens",
			snerr.FieldCollection(spec.Name))
	}
	if spec.Dimension <= 0 || spec.Dimension > MaxDimension {
		return snerr.New(snerr.CodeIndexCollectionInvalid, "dimension out of range",
			snerr.FieldCollection(spec.Name), snerr.Field("dimension", spec.Dimension))
	}
	if !spec.Metric.Valid() {
		return snerr.New(snerr.CodeIndexCollectionInvalid, "unsupported metric",
			snerr.FieldCollection(spec.Name), snerr.Field("metric", string(spec.Metric)))
	}
	return nil
}

// SameShape reports whether two specs describe compatible collections.
func SameShape(a, b CollectionSpec) bool {
	return a.Dimension == b.Dimension && a.Metric == b.Metric
}

// ValidateVector checks that v has the collection's dimension and only
// finite components.
func ValidateVector(v []float32, dimension int) error {
	if len(v) != dimension {
		return snerr.New(snerr.CodeIndexRequestInvalid, "vector dimension mismatch",
			snerr.Field("expected", dimension), snerr.Field("actual", len(v)))
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return snerr.New(snerr.CodeIndexRequestInvalid, "vector component is not finite",
				snerr.Field("position", i))
		}
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ScoreFromDistance converts a backend distance into a higher-is-better
// score for the given metric.
func ScoreFromDistance(m Metric, distance float64) float64 {
	if m == MetricEuclidean {
		return 1 / (1 + distance)
	}
	return 1 - distance
}

// Similarity scores a and b under metric m.
func Similarity(m Metric, a, b []float32) float64 {
	if m == MetricEuclidean {
		return 1 / (1 + EuclideanDistance(a, b))
	}
	return CosineSimilarity(a, b)
}

// SortMatches orders matches by descending score, breaking ties by
// ascending Seq. Matches with equal score and Seq keep their relative order.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Seq < matches[j].Seq
	})
}
