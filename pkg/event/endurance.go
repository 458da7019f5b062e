package event

import (
	"context"
	"log"

	"github.com/heitortanoue/sailbot/pkg/geo"
)

const enduranceBuoys = 4

// EnduranceConfig tunes the endurance event.
type EnduranceConfig struct {
	RoundingBuffer float64 // meters each buoy is pushed outward
	Laps           int
	ArrivalRadius  float64 // meters
}

// DefaultEnduranceConfig returns the competition defaults.
func DefaultEnduranceConfig() EnduranceConfig {
	return EnduranceConfig{
		RoundingBuffer: 5,
		Laps:           10,
		ArrivalRadius:  10,
	}
}

// Endurance sails laps around four buoys.
type Endurance struct {
	cfg   EnduranceConfig
	queue []geo.Waypoint
}

// NewEndurance builds the rounding queue from exactly four buoys.
// Each buoy is moved RoundingBuffer meters away from the course center so
// the boat passes outside it.
func NewEndurance(buoys []geo.Waypoint, cfg EnduranceConfig) (*Endurance, error) {
	if err := requireWaypoints(KindEndurance, buoys, enduranceBuoys); err != nil {
		return nil, err
	}
	if cfg.Laps < 1 {
		return nil, configErrorf(KindEndurance, "laps must be >= 1, got %d", cfg.Laps)
	}
	if cfg.RoundingBuffer < 0 || cfg.ArrivalRadius < 0 {
		return nil, configErrorf(KindEndurance, "distances must be non-negative")
	}

	center := geo.Mean(buoys...)
	lap := make([]geo.Waypoint, 0, len(buoys))
	for _, buoy := range buoys {
		lap = append(lap, geo.Project(buoy, geo.Bearing(center, buoy), cfg.RoundingBuffer))
	}

	queue := make([]geo.Waypoint, 0, len(lap)*cfg.Laps)
	for i := 0; i < cfg.Laps; i++ {
		queue = append(queue, lap...)
	}

	log.Printf("[ENDURANCE] Created %d-lap course (%d waypoints)", cfg.Laps, len(queue))
	return &Endurance{cfg: cfg, queue: queue}, nil
}

func (e *Endurance) isEvent() {}

// Kind implements Event.
func (e *Endurance) Kind() Kind { return KindEndurance }

// Next pops the current buoy once it is rounded and returns the following one.
func (e *Endurance) Next(_ context.Context, snap Snapshot) Result {
	if len(e.queue) > 0 && geo.HasReached(e.queue[0], e.cfg.ArrivalRadius, snap.Position) {
		log.Printf("[ENDURANCE] Rounded buoy at %s, %d waypoints left", e.queue[0], len(e.queue)-1)
		e.queue = e.queue[1:]
	}

	if len(e.queue) == 0 {
		log.Printf("[ENDURANCE] Course complete")
		return Finished()
	}
	return Continue(e.queue[0])
}

// Queue returns a copy of the remaining waypoints.
func (e *Endurance) Queue() []geo.Waypoint {
	out := make([]geo.Waypoint, len(e.queue))
	copy(out, e.queue)
	return out
}

// Status implements Event.
func (e *Endurance) Status() Status {
	return Status{
		Kind:        KindEndurance,
		Mode:        "ROUNDING",
		Target:      front(e.queue),
		QueueLength: len(e.queue),
		Finished:    len(e.queue) == 0,
	}
}
