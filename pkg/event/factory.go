package event

import (
	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/transceiver"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

// Mission is the event description loaded from the mission file.
//
// Endurance and station keeping take four waypoints; search takes the
// circle center as its single waypoint plus Radius.
type Mission struct {
	Kind      Kind           `json:"event"`
	Waypoints []geo.Waypoint `json:"waypoints"`
	Radius    float64        `json:"radius,omitempty"`
	Laps      int            `json:"laps,omitempty"`
}

// Config groups the tunables of every event variant.
type Config struct {
	Endurance      EnduranceConfig
	StationKeeping StationKeepingConfig
	Search         SearchConfig
}

// DefaultConfig returns the defaults of every variant.
func DefaultConfig() Config {
	return Config{
		Endurance:      DefaultEnduranceConfig(),
		StationKeeping: DefaultStationKeepingConfig(),
		Search:         DefaultSearchConfig(),
	}
}

// Deps are the collaborators handed to events at construction.
type Deps struct {
	Start  geo.Waypoint // boat position when the mission starts
	Camera vision.Camera
	Radio  transceiver.Transceiver
}

// New constructs the event described by m.
func New(m Mission, cfg Config, deps Deps) (Event, error) {
	switch m.Kind {
	case KindEndurance:
		ec := cfg.Endurance
		if m.Laps > 0 {
			ec.Laps = m.Laps
		}
		e, err := NewEndurance(m.Waypoints, ec)
		if err != nil {
			return nil, err
		}
		return e, nil
	case KindStationKeeping:
		sk, err := NewStationKeeping(m.Waypoints, cfg.StationKeeping)
		if err != nil {
			return nil, err
		}
		return sk, nil
	case KindSearch:
		if err := requireWaypoints(KindSearch, m.Waypoints, 1); err != nil {
			return nil, err
		}
		s, err := NewSearch(m.Waypoints[0], m.Radius, deps.Start, cfg.Search, deps.Camera, deps.Radio)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, configErrorf(m.Kind, "unknown event")
	}
}
