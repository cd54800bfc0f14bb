package utils

import (
	"math"
	"sort"
)

// StatisticalSummary provides statistical analysis
type StatisticalSummary struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
}

// CalculateStatistics summarises values. It returns nil for an empty slice.
func CalculateStatistics(values []float64) *StatisticalSummary {
	if len(values) == 0 {
		return nil
	}

	// Sort values for median
	sortedValues := make([]float64, len(values))
	copy(sortedValues, values)
	sort.Float64s(sortedValues)

	summary := &StatisticalSummary{Count: len(values)}
	for _, v := range values {
		summary.Sum += v
	}
	summary.Mean = summary.Sum / float64(summary.Count)
	summary.Min = sortedValues[0]
	summary.Max = sortedValues[len(sortedValues)-1]
	summary.Median = calculateMedian(sortedValues)

	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - summary.Mean
		sumSquaredDiff += diff * diff
	}
	summary.StdDev = math.Sqrt(sumSquaredDiff / float64(summary.Count))

	return summary
}

// Mean is the simple arithmetic mean, 0 for no values.
func Mean(values []float64) float64 {
	if s := CalculateStatistics(values); s != nil {
		return s.Mean
	}
	return 0
}

// MeanOrNil is Mean with nil for an empty input, for averages where no
// samples must not read as zero.
func MeanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := Mean(values)
	return &m
}

// MovingAverage smooths values with a trailing window. Until the window is
// full each point averages everything seen so far.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 0 {
		return append([]float64(nil), values...)
	}

	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

func calculateMedian(sortedValues []float64) float64 {
	n := len(sortedValues)
	if n%2 == 0 {
		return (sortedValues[n/2-1] + sortedValues[n/2]) / 2
	}
	return sortedValues[n/2]
}

// Round1 rounds to one decimal place for display.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
