package utils

import (
	"reflect"
	"testing"
)

func TestCalculateStatistics(t *testing.T) {
	if CalculateStatistics(nil) != nil {
		t.Fatal("expected nil summary for no values")
	}

	s := CalculateStatistics([]float64{40, 10, 30, 20})
	if s.Count != 4 || s.Sum != 100 || s.Mean != 25 {
		t.Errorf("count/sum/mean = %d/%v/%v", s.Count, s.Sum, s.Mean)
	}
	if s.Min != 10 || s.Max != 40 || s.Median != 25 {
		t.Errorf("min/max/median = %v/%v/%v", s.Min, s.Max, s.Median)
	}
}

func TestMovingAverage(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		window   int
		expected []float64
	}{
		{"window 2", []float64{10, 20, 30, 50}, 2, []float64{10, 15, 25, 40}},
		{"window larger than input", []float64{10, 20}, 5, []float64{10, 15}},
		{"zero window copies", []float64{1, 2}, 0, []float64{1, 2}},
		{"empty", nil, 3, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MovingAverage(tt.values, tt.window)
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("MovingAverage() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
