// Package verify samples a wiped extent and classifies the result. It
// never writes; the only authority it has is to withhold a PASS.
package verify

import "math"

// ShannonEntropy returns the Shannon entropy of data in bits per byte,
// in [0, 8]. An empty slice has zero entropy.
func ShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
