package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineDistance(t *testing.T) {
	// Accra to Kumasi, roughly 202 km great-circle.
	distance := HaversineDistance(5.6037, -0.1870, 6.6885, -1.6244)
	assert.InDelta(t, 202, distance, 5)

	// Same point is zero.
	assert.Zero(t, HaversineDistance(5.6037, -0.1870, 5.6037, -0.1870))

	// Symmetric.
	forward := HaversineDistance(10, 10, 20, 20)
	backward := HaversineDistance(20, 20, 10, 10)
	assert.InDelta(t, forward, backward, 1e-9)
}

func TestOptimizeStopOrderEmpty(t *testing.T) {
	assert.Nil(t, OptimizeStopOrder(Point{}, nil))
}

func TestOptimizeStopOrderThreeStops(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	stops := []Point{
		{Lat: 10, Lng: 10}, // A
		{Lat: 10, Lng: 20}, // B
		{Lat: 20, Lng: 10}, // C
	}

	order := OptimizeStopOrder(origin, stops)
	require.Len(t, order, 3)

	best := RouteLength(origin, stops, order)

	// Exhaustive check: no permutation beats the returned order.
	perms := [][]int{
		{0, 1, 2}, {0, 2, 1},
		{1, 0, 2}, {1, 2, 0},
		{2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range perms {
		assert.LessOrEqual(t, best, RouteLength(origin, stops, perm)+1e-9)
	}
}

func TestOptimizeStopOrderExactWithinLimit(t *testing.T) {
	origin := Point{Lat: 5.6, Lng: -0.19}
	stops := []Point{
		{Lat: 5.7, Lng: -0.1},
		{Lat: 6.1, Lng: -0.3},
		{Lat: 5.9, Lng: 0.2},
		{Lat: 5.5, Lng: -0.5},
		{Lat: 6.0, Lng: -0.05},
		{Lat: 5.8, Lng: -0.4},
	}
	require.Len(t, stops, ExhaustiveSearchLimit)

	order := OptimizeStopOrder(origin, stops)
	best := RouteLength(origin, stops, order)

	// Compare against every permutation.
	indices := []int{0, 1, 2, 3, 4, 5}
	permute(indices, 0, func(candidate []int) {
		assert.LessOrEqual(t, best, RouteLength(origin, stops, candidate)+1e-9)
	})
}

func TestOptimizeStopOrderLookaheadIsValidPermutation(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	stops := make([]Point, 9)
	for i := range stops {
		stops[i] = Point{Lat: float64(i * 2), Lng: float64((i * 7) % 11)}
	}
	require.Greater(t, len(stops), ExhaustiveSearchLimit)

	order := OptimizeStopOrder(origin, stops)
	require.Len(t, order, len(stops))

	// No drops, no duplicates.
	seen := make(map[int]bool, len(order))
	for _, idx := range order {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(stops))
		assert.False(t, seen[idx], "duplicate stop index %d", idx)
		seen[idx] = true
	}
}

func TestRouteLength(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	stops := []Point{{Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}}

	direct := RouteLength(origin, stops, []int{0, 1})
	backtrack := RouteLength(origin, stops, []int{1, 0})

	assert.Less(t, direct, backtrack)
}

func TestCalculateETA(t *testing.T) {
	assert.Equal(t, 60, CalculateETA(30, 30))
	// Zero speed falls back to the city default.
	assert.Equal(t, 60, CalculateETA(30, 0))
	// Never below one minute.
	assert.Equal(t, 1, CalculateETA(0.01, 60))
}
