package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/heitortanoue/sailbot/pkg/geo"
)

func square(sideMeters float64) []geo.Waypoint {
	return []geo.Waypoint{
		origin,
		origin.AddMeters(0, sideMeters),
		origin.AddMeters(-sideMeters, sideMeters),
		origin.AddMeters(-sideMeters, 0),
	}
}

func TestNew_BuildsEachKind(t *testing.T) {
	deps := Deps{Start: origin.AddMeters(300, 0), Camera: &fakeCamera{}, Radio: &fakeRadio{}}

	tests := []struct {
		name    string
		mission Mission
		want    Kind
	}{
		{"endurance", Mission{Kind: KindEndurance, Waypoints: square(100)}, KindEndurance},
		{"station keeping", Mission{Kind: KindStationKeeping, Waypoints: square(40)}, KindStationKeeping},
		{"search", Mission{Kind: KindSearch, Waypoints: []geo.Waypoint{origin}, Radius: 100}, KindSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(tt.mission, DefaultConfig(), deps)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ev.Kind() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, ev.Kind())
			}
			if ev.Status().Finished {
				t.Error("New event should not be finished")
			}
		})
	}
}

func TestNew_RejectsWrongArity(t *testing.T) {
	deps := Deps{Start: origin, Camera: &fakeCamera{}}

	tests := []struct {
		name    string
		mission Mission
	}{
		{"endurance with three", Mission{Kind: KindEndurance, Waypoints: square(100)[:3]}},
		{"station keeping with five", Mission{Kind: KindStationKeeping, Waypoints: append(square(40), origin)}},
		{"search with none", Mission{Kind: KindSearch, Radius: 100}},
		{"search with two", Mission{Kind: KindSearch, Waypoints: []geo.Waypoint{origin, origin}, Radius: 100}},
		{"unknown kind", Mission{Kind: Kind(42), Waypoints: square(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(tt.mission, DefaultConfig(), deps)
			if !errors.Is(err, ErrConfig) {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
			if ev != nil {
				t.Errorf("Expected nil event, got %T", ev)
			}
		})
	}
}

func TestNew_SearchWithoutCamera(t *testing.T) {
	m := Mission{Kind: KindSearch, Waypoints: []geo.Waypoint{origin}, Radius: 100}
	_, err := New(m, DefaultConfig(), Deps{Start: origin})

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *ConfigError, got %v", err)
	}
	if cfgErr.Kind != KindSearch {
		t.Errorf("Expected SEARCH, got %s", cfgErr.Kind)
	}
}

func TestNew_MissionLapsOverrideConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endurance.Laps = 10

	ev, err := New(Mission{Kind: KindEndurance, Waypoints: square(100), Laps: 2}, cfg, Deps{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := ev.Status().QueueLength; got != 8 {
		t.Errorf("Expected 8 rounding points for 2 laps, got %d", got)
	}
}

func TestMission_DecodeJSON(t *testing.T) {
	raw := `{
		"event": "station-keeping",
		"waypoints": [
			{"lat": 38.9834, "lon": -76.4840},
			{"lat": 38.9834, "lon": -76.4830},
			{"lat": 38.9828, "lon": -76.4840},
			{"lat": 38.9828, "lon": -76.4830}
		]
	}`

	var m Mission
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Kind != KindStationKeeping {
		t.Errorf("Expected STATION_KEEPING, got %s", m.Kind)
	}
	if len(m.Waypoints) != 4 || m.Waypoints[1].Lon != -76.4830 {
		t.Errorf("Unexpected waypoints: %v", m.Waypoints)
	}

	if err := json.Unmarshal([]byte(`{"event":"regatta"}`), &m); err == nil {
		t.Error("Expected error for unknown event name")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"endurance":       KindEndurance,
		" SEARCH ":        KindSearch,
		"Station_Keeping": KindStationKeeping,
		"stationkeeping":  KindStationKeeping,
	} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
}
