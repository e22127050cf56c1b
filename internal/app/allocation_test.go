package app

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

func unitsWithAreas(areas ...float64) []domain.Unit {
	units := make([]domain.Unit, len(areas))
	for i, area := range areas {
		units[i] = domain.Unit{ID: fmt.Sprintf("u%d", i), Area: area, Active: true}
	}
	return units
}

func TestAllocateProportionalShares(t *testing.T) {
	allocation, err := Allocate(20000, unitsWithAreas(50, 70, 80))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := allocation.DisplayCostPerArea(); got != 100 {
		t.Fatalf("expected cost per area 100, got %v", got)
	}

	want := []int64{5000, 7000, 8000}
	for i, share := range allocation.Shares {
		if share.Amount != want[i] {
			t.Fatalf("share %d: expected %d, got %d", i, want[i], share.Amount)
		}
	}
}

func TestAllocateRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		areas []float64
		want  []int64
	}{
		{name: "half rounds down to even", total: 1, areas: []float64{1, 1}, want: []int64{0, 0}},
		{name: "half rounds up to even", total: 3, areas: []float64{1, 1}, want: []int64{2, 2}},
		{name: "thirds", total: 100, areas: []float64{1, 1, 1}, want: []int64{33, 33, 33}},
		{name: "fractional areas", total: 10000, areas: []float64{45.5, 54.5}, want: []int64{4550, 5450}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocation, err := Allocate(tt.total, unitsWithAreas(tt.areas...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i, share := range allocation.Shares {
				if share.Amount != tt.want[i] {
					t.Fatalf("share %d: expected %d, got %d", i, tt.want[i], share.Amount)
				}
			}
		})
	}
}

func TestAllocateDriftIsBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 500; round++ {
		n := 1 + rng.Intn(40)
		areas := make([]float64, n)
		for i := range areas {
			areas[i] = float64(20+rng.Intn(200)) + float64(rng.Intn(100))/100
		}
		total := rng.Int63n(10_000_000)

		allocation, err := Allocate(total, unitsWithAreas(areas...))
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}
		var sum int64
		for _, share := range allocation.Shares {
			sum += share.Amount
		}
		drift := sum - total
		if drift < 0 {
			drift = -drift
		}
		if float64(drift) > float64(n)/2 {
			t.Fatalf("round %d: drift %d exceeds bound %v for %d units", round, drift, float64(n)/2, n)
		}
	}
}

func TestAllocateWithoutArea(t *testing.T) {
	if _, err := Allocate(1000, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := Allocate(1000, unitsWithAreas(0)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero area, got %v", err)
	}
}
