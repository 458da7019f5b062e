package geo

import (
	"math"

	"github.com/paulmach/orb/geo"
)

// Distance returns the great-circle distance in meters between a and b.
// It is symmetric and zero when a == b.
func Distance(a, b Waypoint) float64 {
	if a == b {
		return 0
	}
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// HasReached reports whether current is within radius meters of target.
func HasReached(target Waypoint, radius float64, current Waypoint) bool {
	return Distance(target, current) <= radius
}

// Bearing returns the initial bearing from -> to in degrees, normalised to [0, 360).
func Bearing(from, to Waypoint) float64 {
	return NormalizeDegrees(geo.Bearing(from.Point(), to.Point()))
}

// Project returns the point reached by travelling distance meters from p
// along the given compass bearing (degrees, 0 = north, 90 = east).
func Project(p Waypoint, bearing, distance float64) Waypoint {
	if distance == 0 {
		return p
	}
	return FromPoint(geo.PointAtBearingAndDistance(p.Point(), NormalizeDegrees(bearing), distance))
}

// Offset moves p by dNorth and dEast meters in the local tangent plane.
func Offset(p Waypoint, dNorth, dEast float64) Waypoint {
	distance := math.Hypot(dNorth, dEast)
	if distance == 0 {
		return p
	}
	bearing := math.Atan2(dEast, dNorth) * 180 / math.Pi
	return Project(p, bearing, distance)
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
