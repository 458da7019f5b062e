package event

import (
	"log"

	"github.com/heitortanoue/sailbot/pkg/geo"
)

const (
	// PatternPoints is the number of vertices in the search pentagon.
	PatternPoints = 5
	// PatternStep is the bearing increment between consecutive vertices.
	PatternStep = 72.0
)

// SearchPattern returns the five vertices of a regular pentagon inscribed in
// the search circle. The first vertex lies on the line from the center to
// start, so the boat enters the search area at the nearest vertex; each
// following vertex is 72 degrees further clockwise.
//
// The sweep density 2*radius/maxDetectionDistance must be at least 2.
func SearchPattern(start, center geo.Waypoint, radius, maxDetectionDistance float64) ([]geo.Waypoint, error) {
	if radius <= 0 {
		return nil, configErrorf(KindSearch, "search radius must be > 0, got %.2f", radius)
	}
	if maxDetectionDistance <= 0 {
		return nil, configErrorf(KindSearch, "max detection distance must be > 0, got %.2f", maxDetectionDistance)
	}
	numPoints := 2 * radius / maxDetectionDistance
	if numPoints < 2 {
		return nil, configErrorf(KindSearch, "invalid number of points %.2f for search pattern", numPoints)
	}

	bearing := geo.Bearing(center, start)
	pattern := make([]geo.Waypoint, 0, PatternPoints)
	for i := 0; i < PatternPoints; i++ {
		pattern = append(pattern, geo.Project(center, bearing+float64(i)*PatternStep, radius))
	}

	total := 0.0
	for i := 0; i < len(pattern)-1; i++ {
		total += geo.Distance(pattern[i], pattern[i+1])
	}
	log.Printf("[SEARCH] Created %d-point search path, %.1fm to cover", len(pattern), total)
	return pattern, nil
}
