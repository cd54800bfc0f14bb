package utils

import (
	"fmt"
	"slices"
)

const (
	GroundFloor = "Ground Floor"
	RoofTerrace = "Roof/Terrace"
)

// OrdinalSuffix returns "st", "nd", "rd" or "th" for n.
// 11 through 20 of every hundred always take "th".
func OrdinalSuffix(n int) string {
	if r := n % 100; r >= 11 && r <= 20 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// Ordinal formats n with its suffix, e.g. 21 -> "21st".
func Ordinal(n int) string {
	return fmt.Sprintf("%d%s", n, OrdinalSuffix(n))
}

// FloorLabels returns the ordered floor labels of a building: basements
// from deepest to shallowest, the ground floor, numbered floors upward and
// the roof when present. Negative counts are treated as zero.
//
// Every place that needs valid floor labels (submission, validation, export)
// calls this so the lists can never disagree.
func FloorLabels(basements, floors int, hasRoof bool) []string {
	basements = max(basements, 0)
	floors = max(floors, 0)

	labels := make([]string, 0, basements+floors+2)
	for b := basements; b >= 1; b-- {
		labels = append(labels, fmt.Sprintf("Basement %d", b))
	}
	labels = append(labels, GroundFloor)
	for f := 1; f <= floors; f++ {
		labels = append(labels, Ordinal(f)+" Floor")
	}
	if hasRoof {
		labels = append(labels, RoofTerrace)
	}
	return labels
}

// ContainsFloor reports whether label is in labels.
func ContainsFloor(labels []string, label string) bool {
	return slices.Contains(labels, label)
}

// FloorIndex maps each label to its building position.
func FloorIndex(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}

// SortFloors orders labels by building position. Labels not in order
// (legacy free text, "Unknown") go last, alphabetically.
func SortFloors(labels []string, order []string) {
	idx := FloorIndex(order)
	slices.SortStableFunc(labels, func(a, b string) int {
		ia, okA := idx[a]
		ib, okB := idx[b]
		switch {
		case okA && okB:
			return ia - ib
		case okA:
			return -1
		case okB:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
}
