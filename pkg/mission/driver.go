// Package mission runs an event against live boat state.
package mission

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/logging"
	"github.com/heitortanoue/sailbot/pkg/state"
)

// Boat provides sensor readings and stores decisions. *state.BoatState
// implements it.
type Boat interface {
	Position() (geo.Waypoint, error)
	WindAngle() float64
	Record(status event.Status, d state.Decision)
}

// Helm receives the next target, or nil once the event has finished.
type Helm interface {
	SendWaypoint(event, mode string, target *geo.Waypoint) error
}

// Driver polls an event at a fixed interval and forwards its decisions.
type Driver struct {
	ev       event.Event
	boat     Boat
	helm     Helm
	logger   *logging.MissionLogger
	interval time.Duration
	now      func() time.Time

	// written only by the goroutine calling Step
	mutex    sync.RWMutex
	ticks    int
	waiting  int
	started  time.Time
	lastMode string
	finished bool
}

// NewDriver creates a driver. logger may be nil.
func NewDriver(ev event.Event, boat Boat, helm Helm, logger *logging.MissionLogger, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = time.Second
	}
	return &Driver{
		ev:       ev,
		boat:     boat,
		helm:     helm,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks until the event finishes or ctx is cancelled. It returns nil
// when the event finished and ctx.Err() otherwise.
func (d *Driver) Run(ctx context.Context) error {
	log.Printf("[MISSION] Running %s every %v", d.ev.Kind(), d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if d.Step(ctx) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Printf("[MISSION] Stopped before %s finished", d.ev.Kind())
			return ctx.Err()
		}
	}
}

// Step runs a single tick and reports whether the event has finished.
// Step must not be called concurrently.
func (d *Driver) Step(ctx context.Context) bool {
	if d.finished {
		return true
	}
	if d.started.IsZero() {
		d.mutex.Lock()
		d.started = d.now()
		d.lastMode = d.ev.Status().Mode
		d.mutex.Unlock()
	}

	pos, err := d.boat.Position()
	if err != nil {
		d.mutex.Lock()
		d.waiting++
		d.mutex.Unlock()
		if errors.Is(err, state.ErrNoFix) {
			log.Printf("[MISSION] Waiting for position fix")
		} else if d.logger != nil {
			d.logger.LogError("position", err)
		}
		return false
	}

	tickStart := d.now()
	snap := event.Snapshot{Time: tickStart, Position: pos, WindAngle: d.boat.WindAngle()}
	res := d.ev.Next(ctx, snap)
	status := d.ev.Status()
	kind := d.ev.Kind()

	if status.Mode != d.lastMode && d.logger != nil {
		d.logger.LogModeChange(kind, d.lastMode, status.Mode)
	}

	done := res.Done() || d.leftBox(pos, status)

	decision := state.Decision{Time: tickStart, Position: pos, Mode: status.Mode}
	var target *geo.Waypoint
	if done {
		decision.Finished = true
	} else {
		wp := res.Waypoint
		target = &wp
		decision.Target = target
	}

	d.mutex.Lock()
	d.ticks++
	d.lastMode = status.Mode
	d.finished = done
	d.mutex.Unlock()

	d.boat.Record(status, decision)

	if d.helm != nil {
		if err := d.helm.SendWaypoint(kind.String(), status.Mode, target); err != nil && d.logger != nil {
			d.logger.LogError("helm", err)
		}
	}

	if d.logger != nil {
		if target != nil {
			d.logger.LogWaypoint(kind, status.Mode, pos, *target)
		} else {
			d.logger.LogFinished(kind, tickStart.Sub(d.started))
		}
		d.logger.LogMetrics("tick", d.now().Sub(tickStart), d.ticks)
	}

	return d.finished
}

// leftBox ends station keeping once the boat is outside the box on its
// way out. The event itself keeps steering downwind forever.
func (d *Driver) leftBox(pos geo.Waypoint, status event.Status) bool {
	sk, ok := d.ev.(*event.StationKeeping)
	if !ok || status.Mode != event.StationLeaving {
		return false
	}
	if sk.Bounds().Contains(pos) {
		return false
	}
	log.Printf("[MISSION] Left the station keeping box at %s", pos)
	return true
}

// GetStats returns driver statistics.
func (d *Driver) GetStats() map[string]interface{} {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return map[string]interface{}{
		"event":    d.ev.Kind().String(),
		"interval": d.interval.String(),
		"ticks":    d.ticks,
		"waiting":  d.waiting,
		"mode":     d.lastMode,
		"finished": d.finished,
	}
}
