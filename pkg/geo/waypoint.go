package geo

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Waypoint is a geographic point in decimal degrees.
//
// Waypoints are values: every transformation returns a new Waypoint and the
// receiver is never modified.
type Waypoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewWaypoint creates a waypoint from latitude and longitude in degrees.
func NewWaypoint(lat, lon float64) Waypoint {
	return Waypoint{Lat: lat, Lon: lon}
}

// Valid reports whether the waypoint lies inside [-90,90]x[-180,180].
func (w Waypoint) Valid() bool {
	return w.Lat >= -90 && w.Lat <= 90 && w.Lon >= -180 && w.Lon <= 180
}

// AddMeters returns the waypoint moved dNorth meters north and dEast meters east.
func (w Waypoint) AddMeters(dNorth, dEast float64) Waypoint {
	return Offset(w, dNorth, dEast)
}

// Point converts the waypoint into an orb point (lon, lat order).
func (w Waypoint) Point() orb.Point {
	return orb.Point{w.Lon, w.Lat}
}

// FromPoint converts an orb point back into a waypoint.
func FromPoint(p orb.Point) Waypoint {
	return Waypoint{Lat: p.Lat(), Lon: p.Lon()}
}

func (w Waypoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", w.Lat, w.Lon)
}

// Mean returns the arithmetic mean of the given waypoints.
// It returns the zero Waypoint for an empty slice.
func Mean(points ...Waypoint) Waypoint {
	if len(points) == 0 {
		return Waypoint{}
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return Waypoint{Lat: sumLat / n, Lon: sumLon / n}
}
