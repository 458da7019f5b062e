package event

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/heitortanoue/sailbot/pkg/geo"
)

const stationKeepingCorners = 4

// StationKeepingConfig tunes the station keeping event.
type StationKeepingConfig struct {
	Stay           time.Duration // time to hold inside the box after entry
	EscapeDistance float64       // meters projected downwind when leaving
}

// DefaultStationKeepingConfig returns the competition defaults.
func DefaultStationKeepingConfig() StationKeepingConfig {
	return StationKeepingConfig{
		Stay:           4*time.Minute + 15*time.Second,
		EscapeDistance: 30,
	}
}

// Bounds is the rectangular station keeping box.
type Bounds struct {
	TopLeft     geo.Waypoint `json:"top_left"`
	TopRight    geo.Waypoint `json:"top_right"`
	BottomLeft  geo.Waypoint `json:"bottom_left"`
	BottomRight geo.Waypoint `json:"bottom_right"`
	Center      geo.Waypoint `json:"center"`
}

// NewBounds builds bounds from corners ordered top-left, top-right,
// bottom-left, bottom-right.
func NewBounds(corners []geo.Waypoint) (Bounds, error) {
	if err := requireWaypoints(KindStationKeeping, corners, stationKeepingCorners); err != nil {
		return Bounds{}, err
	}
	return Bounds{
		TopLeft:     corners[0],
		TopRight:    corners[1],
		BottomLeft:  corners[2],
		BottomRight: corners[3],
		Center:      geo.Mean(corners...),
	}, nil
}

func (b Bounds) corners() [4]geo.Waypoint {
	return [4]geo.Waypoint{b.TopLeft, b.TopRight, b.BottomLeft, b.BottomRight}
}

// Contains reports whether wp lies inside the latitude/longitude extent of
// the four corners.
func (b Bounds) Contains(wp geo.Waypoint) bool {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, c := range b.corners() {
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
		minLon = math.Min(minLon, c.Lon)
		maxLon = math.Max(maxLon, c.Lon)
	}
	return wp.Lat >= minLat && wp.Lat <= maxLat && wp.Lon >= minLon && wp.Lon <= maxLon
}

// Station keeping status modes.
const (
	StationApproaching = "APPROACHING"
	StationHolding     = "HOLDING"
	StationLeaving     = "LEAVING"
)

// StationKeeping holds the boat near the center of a box for a fixed time
// and then runs downwind out of it.
//
// It never returns Finished; the mission driver stops once the boat is
// outside the box while leaving.
type StationKeeping struct {
	cfg       StationKeepingConfig
	bounds    Bounds
	entered   bool
	entryTime time.Time
	deadline  time.Time
	leaving   bool
}

// NewStationKeeping creates the event from exactly four corners.
func NewStationKeeping(corners []geo.Waypoint, cfg StationKeepingConfig) (*StationKeeping, error) {
	bounds, err := NewBounds(corners)
	if err != nil {
		return nil, err
	}
	if cfg.Stay < 0 || cfg.EscapeDistance < 0 {
		return nil, configErrorf(KindStationKeeping, "stay and escape distance must be non-negative")
	}
	log.Printf("[STATION] Bounds center at %s, stay %v", bounds.Center, cfg.Stay)
	return &StationKeeping{cfg: cfg, bounds: bounds}, nil
}

func (s *StationKeeping) isEvent() {}

// Kind implements Event.
func (s *StationKeeping) Kind() Kind { return KindStationKeeping }

// Bounds returns the event box.
func (s *StationKeeping) Bounds() Bounds { return s.bounds }

// Deadline returns the scheduled exit time, zero before entry.
func (s *StationKeeping) Deadline() time.Time { return s.deadline }

// Next steers to the box center until the stay deadline, then downwind.
func (s *StationKeeping) Next(_ context.Context, snap Snapshot) Result {
	if !s.entered {
		if !s.bounds.Contains(snap.Position) {
			return Continue(s.bounds.Center)
		}
		s.entered = true
		s.entryTime = snap.Time
		s.deadline = snap.Time.Add(s.cfg.Stay)
		log.Printf("[STATION] Entered bounds, leaving at %s", s.deadline.Format(time.RFC3339))
	}

	if snap.Time.Before(s.deadline) {
		return Continue(s.bounds.Center)
	}

	if !s.leaving {
		s.leaving = true
		log.Printf("[STATION] Stay complete, leaving bounds downwind")
	}
	downwind := geo.NormalizeDegrees(snap.WindAngle + 180)
	return Continue(geo.Project(snap.Position, downwind, s.cfg.EscapeDistance))
}

// Status implements Event.
func (s *StationKeeping) Status() Status {
	mode := StationApproaching
	switch {
	case s.leaving:
		mode = StationLeaving
	case s.entered:
		mode = StationHolding
	}
	center := s.bounds.Center
	return Status{
		Kind:   KindStationKeeping,
		Mode:   mode,
		Target: &center,
	}
}
