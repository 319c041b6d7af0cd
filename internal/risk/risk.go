// Package risk scores a screened call. It aggregates per-chunk deepfake
// scores from the voice detector into an alert band and folds in caller
// metadata and the profile's safe phrases.
package risk

import (
	"math"
	"sort"
)

const (
	// CautionThreshold is the median or average fake score that moves a
	// call into the caution band.
	CautionThreshold = 0.85
	// HighThreshold marks a single chunk as high-scoring and is the median
	// floor for the high band.
	HighThreshold = 0.95
	// BinaryHighThreshold is the average fake score floor for the high band.
	BinaryHighThreshold = 0.95
	// highRatioFloor is the minimum share of high-scoring chunks for the
	// high band.
	highRatioFloor = 0.5
)

// Band is the alert severity of a scored call.
type Band string

const (
	BandNone    Band = "none"
	BandCaution Band = "caution"
	BandHigh    Band = "high"
)

// ChunkSummary aggregates the voice detector's per-chunk fake scores. Field
// names mirror the detector's report payload.
type ChunkSummary struct {
	MedianFake        *float64  `json:"median_fake"`
	MaxFake           *float64  `json:"max_fake"`
	ChunkCount        int       `json:"chunk_count"`
	FakeScores        []float64 `json:"fake_scores,omitempty"`
	HighChunkCount    int       `json:"high_chunk_count"`
	HighChunkRatio    float64   `json:"high_chunk_ratio"`
	BinaryAverageFake float64   `json:"binary_average_fake"`
	Band              Band      `json:"alert_band"`
}

// SummarizeChunks reduces per-chunk fake scores to a summary and band.
// An empty input yields the none band with nil median and max.
func SummarizeChunks(scores []float64) ChunkSummary {
	summary := ChunkSummary{Band: BandNone}
	if len(scores) == 0 {
		return summary
	}

	med := median(scores)
	max := scores[0]
	var sum float64
	high := 0
	for _, score := range scores {
		if score > max {
			max = score
		}
		sum += score
		if score >= HighThreshold {
			high++
		}
	}
	avg := sum / float64(len(scores))
	ratio := float64(high) / float64(len(scores))

	summary.MedianFake = &med
	summary.MaxFake = &max
	summary.ChunkCount = len(scores)
	summary.FakeScores = scores
	summary.HighChunkCount = high
	summary.HighChunkRatio = math.Round(ratio*1000) / 1000
	summary.BinaryAverageFake = avg

	switch {
	case med >= HighThreshold && avg >= BinaryHighThreshold && ratio >= highRatioFloor:
		summary.Band = BandHigh
	case med >= CautionThreshold || avg >= CautionThreshold:
		summary.Band = BandCaution
	}
	return summary
}

func median(scores []float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
