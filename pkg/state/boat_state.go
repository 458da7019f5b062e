// Package state holds the latest sensor readings and mission decisions
// shared between the sensor inputs, the mission driver and the HTTP API.
package state

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/protocol"
)

// ErrNoFix is returned while no position has been received yet.
var ErrNoFix = errors.New("no position fix yet")

const historySize = 50

// Decision is one tick of the mission driver.
type Decision struct {
	Time     time.Time     `json:"time"`
	Position geo.Waypoint  `json:"position"`
	Target   *geo.Waypoint `json:"target,omitempty"`
	Mode     string        `json:"mode"`
	Finished bool          `json:"finished"`
}

// BoatState is safe for concurrent use.
type BoatState struct {
	boatID string

	position  geo.Waypoint
	hasFix    bool
	fixTime   time.Time
	windAngle float64
	windTime  time.Time

	status  *event.Status
	history []Decision

	mutex sync.RWMutex
}

// NewBoatState creates an empty state.
func NewBoatState(boatID string) *BoatState {
	return &BoatState{boatID: boatID}
}

// UpdatePosition stores a position fix.
func (bs *BoatState) UpdatePosition(pos geo.Waypoint) error {
	if !pos.Valid() {
		return fmt.Errorf("position %s out of range", pos)
	}
	bs.mutex.Lock()
	defer bs.mutex.Unlock()
	bs.position = pos
	bs.hasFix = true
	bs.fixTime = time.Now()
	return nil
}

// UpdateWind stores an apparent wind angle, normalised to [0, 360).
func (bs *BoatState) UpdateWind(angle float64) {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()
	bs.windAngle = geo.NormalizeDegrees(angle)
	bs.windTime = time.Now()
}

// Position returns the latest fix.
func (bs *BoatState) Position() (geo.Waypoint, error) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.hasFix {
		return geo.Waypoint{}, ErrNoFix
	}
	return bs.position, nil
}

// WindAngle returns the latest wind angle in degrees, 0 if none was received.
func (bs *BoatState) WindAngle() float64 {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	return bs.windAngle
}

// ProcessMessage decodes FIX and WIND datagrams from the sensor processes.
func (bs *BoatState) ProcessMessage(data []byte, senderIP string) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Printf("[STATE] Ignoring datagram from %s: %v", senderIP, err)
		return
	}

	switch msg.Type {
	case protocol.FixType:
		pos, ok := protocol.ParseFixMessage(msg)
		if !ok {
			log.Printf("[STATE] Malformed FIX from %s", senderIP)
			return
		}
		if err := bs.UpdatePosition(pos); err != nil {
			log.Printf("[STATE] Rejected FIX from %s: %v", senderIP, err)
		}
	case protocol.WindType:
		angle, ok := protocol.ParseWindMessage(msg)
		if !ok {
			log.Printf("[STATE] Malformed WIND from %s", senderIP)
			return
		}
		bs.UpdateWind(angle)
	default:
		log.Printf("[STATE] Unexpected %s from %s", msg.Type, senderIP)
	}
}

// Record stores the event status and the decision taken this tick.
func (bs *BoatState) Record(status event.Status, d Decision) {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	bs.status = &status
	bs.history = append(bs.history, d)
	if len(bs.history) > historySize {
		bs.history = bs.history[len(bs.history)-historySize:]
	}
}

// Status returns the last recorded event status.
func (bs *BoatState) Status() (event.Status, bool) {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if bs.status == nil {
		return event.Status{}, false
	}
	return *bs.status, true
}

// History returns recent decisions, oldest first.
func (bs *BoatState) History() []Decision {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	out := make([]Decision, len(bs.history))
	copy(out, bs.history)
	return out
}

// BoatID returns the boat ID.
func (bs *BoatState) BoatID() string {
	return bs.boatID
}

// GetStats returns state statistics.
func (bs *BoatState) GetStats() map[string]interface{} {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	stats := map[string]interface{}{
		"boat_id":    bs.boatID,
		"has_fix":    bs.hasFix,
		"wind_angle": bs.windAngle,
		"decisions":  len(bs.history),
	}
	if bs.hasFix {
		stats["position"] = bs.position
		stats["fix_age_ms"] = time.Since(bs.fixTime).Milliseconds()
	}
	if !bs.windTime.IsZero() {
		stats["wind_age_ms"] = time.Since(bs.windTime).Milliseconds()
	}
	return stats
}
