// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package store

import "math"

// Measure computes the distance between two equal-length vectors under d.
// Cosine distance is 1 - cos(a, b); a zero vector is at distance 1.
func Measure(d Distance, a, b []float32) float64 {
	switch d {
	case DistanceL2:
		var sum float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			sum += diff * diff
		}
		return math.Sqrt(sum)
	default:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	}
}
