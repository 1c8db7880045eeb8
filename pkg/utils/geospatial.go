package utils

import (
	"math"
)

// HaversineDistance calculates the distance between two points on Earth
// using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371 // Earth's radius in kilometers

	// Convert degrees to radians
	lat1Rad := lat1 * math.Pi / 180
	lng1Rad := lng1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lng2Rad := lng2 * math.Pi / 180

	// Haversine formula
	dlat := lat2Rad - lat1Rad
	dlng := lng2Rad - lng1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dlng/2)*math.Sin(dlng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Point represents a geographical point
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceTo returns the great-circle distance in kilometers from p to q.
func (p Point) DistanceTo(q Point) float64 {
	return HaversineDistance(p.Lat, p.Lng, q.Lat, q.Lng)
}

// ExhaustiveSearchLimit is the largest stop count ordered by brute-force
// permutation search. 6 stops means 720 candidate orders; above that the
// lookahead heuristic takes over.
const ExhaustiveSearchLimit = 6

// lookaheadWeight discounts a candidate's distance to its nearest
// remaining neighbor, steering the greedy pass away from dead ends.
const lookaheadWeight = 0.3

// OptimizeStopOrder returns the indices of stops in visiting order,
// starting from origin. Up to ExhaustiveSearchLimit stops the result is
// the exact minimum-length order; beyond that it falls back to
// nearest-neighbor with a one-step lookahead.
func OptimizeStopOrder(origin Point, stops []Point) []int {
	if len(stops) == 0 {
		return nil
	}
	if len(stops) <= ExhaustiveSearchLimit {
		return bruteForceOrder(origin, stops)
	}
	return lookaheadOrder(origin, stops)
}

// RouteLength returns the total length in kilometers of visiting stops
// in the given index order, starting from origin.
func RouteLength(origin Point, stops []Point, order []int) float64 {
	total := 0.0
	current := origin
	for _, idx := range order {
		total += current.DistanceTo(stops[idx])
		current = stops[idx]
	}
	return total
}

func bruteForceOrder(origin Point, stops []Point) []int {
	indices := make([]int, len(stops))
	for i := range indices {
		indices[i] = i
	}

	best := make([]int, len(indices))
	copy(best, indices)
	bestLength := RouteLength(origin, stops, indices)

	permute(indices, 0, func(candidate []int) {
		if length := RouteLength(origin, stops, candidate); length < bestLength {
			bestLength = length
			copy(best, candidate)
		}
	})

	return best
}

// permute visits every permutation of indices[k:] in place.
func permute(indices []int, k int, visit func([]int)) {
	if k == len(indices)-1 {
		visit(indices)
		return
	}
	for i := k; i < len(indices); i++ {
		indices[k], indices[i] = indices[i], indices[k]
		permute(indices, k+1, visit)
		indices[k], indices[i] = indices[i], indices[k]
	}
}

// lookaheadOrder picks, at each step, the remaining stop minimizing
// distance(current, candidate) plus lookaheadWeight times the
// candidate's distance to its nearest other remaining stop.
func lookaheadOrder(origin Point, stops []Point) []int {
	remaining := make(map[int]bool, len(stops))
	for i := range stops {
		remaining[i] = true
	}

	order := make([]int, 0, len(stops))
	current := origin

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.MaxFloat64

		for idx := range remaining {
			score := current.DistanceTo(stops[idx])
			if len(remaining) > 1 {
				nearest := math.MaxFloat64
				for other := range remaining {
					if other == idx {
						continue
					}
					if d := stops[idx].DistanceTo(stops[other]); d < nearest {
						nearest = d
					}
				}
				score += lookaheadWeight * nearest
			}
			if score < bestScore {
				bestScore = score
				bestIdx = idx
			}
		}

		order = append(order, bestIdx)
		current = stops[bestIdx]
		delete(remaining, bestIdx)
	}

	return order
}

// CalculateETA estimates the time to arrival based on distance and average speed
// distance in kilometers, averageSpeed in km/h
func CalculateETA(distanceKm, averageSpeedKmh float64) int {
	if averageSpeedKmh <= 0 {
		averageSpeedKmh = 30 // Default average speed in city traffic
	}

	etaHours := distanceKm / averageSpeedKmh
	etaMinutes := int(etaHours * 60)

	// Minimum 1 minute
	if etaMinutes < 1 {
		etaMinutes = 1
	}

	return etaMinutes
}
