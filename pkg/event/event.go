// Package event implements the mission controllers that turn the boat's
// current sensor state into the next navigation waypoint.
//
// Each competition event is one variant of the sealed Event interface:
// Endurance, StationKeeping and Search. A mission driver calls Next once per
// control tick; Next may block on the camera but never commands hardware.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/heitortanoue/sailbot/pkg/geo"
)

// Kind identifies an event variant.
type Kind int

const (
	KindEndurance Kind = iota + 1
	KindStationKeeping
	KindSearch
)

func (k Kind) String() string {
	switch k {
	case KindEndurance:
		return "ENDURANCE"
	case KindStationKeeping:
		return "STATION_KEEPING"
	case KindSearch:
		return "SEARCH"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts an event name into a Kind.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "ENDURANCE":
		return KindEndurance, nil
	case "STATION_KEEPING", "STATIONKEEPING":
		return KindStationKeeping, nil
	case "SEARCH":
		return KindSearch, nil
	default:
		return 0, fmt.Errorf("unknown event %q", value)
	}
}

// MarshalJSON encodes the kind as its name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON allows kinds to be loaded from JSON strings.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Outcome tells the driver whether to keep sailing or stop.
type Outcome int

const (
	OutcomeContinue Outcome = iota + 1
	OutcomeFinished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "CONTINUE"
	case OutcomeFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is returned by Event.Next: either a waypoint to sail to or the
// terminal event-complete signal.
type Result struct {
	Outcome  Outcome
	Waypoint geo.Waypoint
}

// Continue returns a result steering the boat to wp.
func Continue(wp geo.Waypoint) Result {
	return Result{Outcome: OutcomeContinue, Waypoint: wp}
}

// Finished returns the event-complete result.
func Finished() Result {
	return Result{Outcome: OutcomeFinished}
}

// Done reports whether the event has completed.
func (r Result) Done() bool {
	return r.Outcome == OutcomeFinished
}

// Snapshot is the sensor state handed to an event on each tick.
type Snapshot struct {
	Time      time.Time
	Position  geo.Waypoint
	WindAngle float64 // degrees
}

// Status is a read-only summary of an event's internal state.
type Status struct {
	Kind        Kind          `json:"kind"`
	Mode        string        `json:"mode"`
	Target      *geo.Waypoint `json:"target,omitempty"`
	QueueLength int           `json:"queue_length"`
	Chunks      int           `json:"chunks,omitempty"`
	Misses      int           `json:"misses,omitempty"`
	Finished    bool          `json:"finished"`
}

// Event is a mission controller. The set of implementations is closed:
// *Endurance, *StationKeeping and *Search.
type Event interface {
	Kind() Kind
	// Next returns the next waypoint or Finished. It must be called from a
	// single goroutine.
	Next(ctx context.Context, snap Snapshot) Result
	Status() Status

	isEvent()
}

// ErrConfig matches every configuration error returned by event constructors.
var ErrConfig = errors.New("invalid event configuration")

// ConfigError is returned when an event cannot be constructed.
type ConfigError struct {
	Kind   Kind
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %s", e.Kind, e.Reason)
}

// Is makes errors.Is(err, ErrConfig) true for any *ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configErrorf(kind Kind, format string, args ...interface{}) error {
	return &ConfigError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func requireWaypoints(kind Kind, waypoints []geo.Waypoint, want int) error {
	if len(waypoints) != want {
		return configErrorf(kind, "expected %d waypoints, got %d", want, len(waypoints))
	}
	for i, wp := range waypoints {
		if !wp.Valid() {
			return configErrorf(kind, "waypoint %d %s out of range", i, wp)
		}
	}
	return nil
}

func front(queue []geo.Waypoint) *geo.Waypoint {
	if len(queue) == 0 {
		return nil
	}
	wp := queue[0]
	return &wp
}
