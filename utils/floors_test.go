package utils

import (
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func TestOrdinal(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{1, "1st"},
		{2, "2nd"},
		{3, "3rd"},
		{4, "4th"},
		{10, "10th"},
		{11, "11th"},
		{12, "12th"},
		{13, "13th"},
		{20, "20th"},
		{21, "21st"},
		{22, "22nd"},
		{23, "23rd"},
		{101, "101st"},
		{111, "111th"},
		{112, "112th"},
		{113, "113th"},
		{121, "121st"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := Ordinal(tt.n); got != tt.expected {
				t.Errorf("Ordinal(%d) = %q, expected %q", tt.n, got, tt.expected)
			}
		})
	}
}

func TestFloorLabels_Scenario(t *testing.T) {
	got := FloorLabels(1, 3, true)
	expected := []string{"Basement 1", "Ground Floor", "1st Floor", "2nd Floor", "3rd Floor", "Roof/Terrace"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("FloorLabels(1, 3, true) = %v, expected %v", got, expected)
	}
}

func TestFloorLabels_Shape(t *testing.T) {
	for b := 0; b <= 4; b++ {
		for f := 1; f <= 25; f++ {
			for _, roof := range []bool{false, true} {
				labels := FloorLabels(b, f, roof)

				want := b + 1 + f
				if roof {
					want++
				}
				if len(labels) != want {
					t.Fatalf("FloorLabels(%d, %d, %v): len = %d, expected %d", b, f, roof, len(labels), want)
				}

				// basements descending
				for i := 0; i < b; i++ {
					if expected := "Basement " + strconv.Itoa(b-i); labels[i] != expected {
						t.Fatalf("FloorLabels(%d, %d, %v)[%d] = %q, expected %q", b, f, roof, i, labels[i], expected)
					}
				}
				if labels[b] != GroundFloor {
					t.Fatalf("FloorLabels(%d, %d, %v)[%d] = %q, expected ground floor", b, f, roof, b, labels[b])
				}
				// numbered floors ascending
				for i := 1; i <= f; i++ {
					if expected := Ordinal(i) + " Floor"; labels[b+i] != expected {
						t.Fatalf("FloorLabels(%d, %d, %v)[%d] = %q, expected %q", b, f, roof, b+i, labels[b+i], expected)
					}
				}
				last := labels[len(labels)-1]
				if roof != (last == RoofTerrace) {
					t.Fatalf("FloorLabels(%d, %d, %v): last label %q", b, f, roof, last)
				}
			}
		}
	}
}

func TestFloorLabels_Deterministic(t *testing.T) {
	a := FloorLabels(2, 12, true)
	b := FloorLabels(2, 12, true)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("FloorLabels is not deterministic")
	}
}

func TestFloorLabels_NegativeInputs(t *testing.T) {
	got := FloorLabels(-3, 0, false)
	if !reflect.DeepEqual(got, []string{GroundFloor}) {
		t.Fatalf("FloorLabels(-3, 0, false) = %v", got)
	}
}

func TestSortFloors(t *testing.T) {
	order := FloorLabels(1, 3, true)
	labels := []string{"Unknown", "3rd Floor", "Roof/Terrace", "Basement 1", "Mezzanine", "Ground Floor"}
	SortFloors(labels, order)

	expected := []string{"Basement 1", "Ground Floor", "3rd Floor", "Roof/Terrace", "Mezzanine", "Unknown"}
	if !reflect.DeepEqual(labels, expected) {
		t.Errorf("SortFloors = %v, expected %v", labels, expected)
	}
}

func TestContainsFloor(t *testing.T) {
	labels := FloorLabels(0, 2, false)
	if !ContainsFloor(labels, "2nd Floor") {
		t.Error("expected 2nd Floor to be valid")
	}
	if ContainsFloor(labels, "Roof/Terrace") {
		t.Error("roof is not valid without a roof")
	}
	if ContainsFloor(labels, strings.ToLower("2nd Floor")) {
		t.Error("floor labels are case sensitive")
	}
}

func BenchmarkFloorLabels(b *testing.B) {
	for i := 0; i < b.N; i++ {
		FloorLabels(3, 40, true)
	}
}
