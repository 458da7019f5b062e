package mission

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/logging"
	"github.com/heitortanoue/sailbot/pkg/state"
)

var origin = geo.NewWaypoint(38.9834, -76.4840)

// fakeBoat replays positions, repeating the last one.
type fakeBoat struct {
	mutex     sync.Mutex
	positions []geo.Waypoint
	err       error
	wind      float64
	calls     int
	records   []state.Decision
}

func (b *fakeBoat) Position() (geo.Waypoint, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err != nil {
		return geo.Waypoint{}, b.err
	}
	i := b.calls
	if i >= len(b.positions) {
		i = len(b.positions) - 1
	}
	b.calls++
	return b.positions[i], nil
}

func (b *fakeBoat) WindAngle() float64 { return b.wind }

func (b *fakeBoat) Record(_ event.Status, d state.Decision) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.records = append(b.records, d)
}

type fakeHelm struct {
	targets []*geo.Waypoint
	modes   []string
	err     error
}

func (h *fakeHelm) SendWaypoint(_ string, mode string, target *geo.Waypoint) error {
	h.targets = append(h.targets, target)
	h.modes = append(h.modes, mode)
	return h.err
}

func square(side float64) []geo.Waypoint {
	return []geo.Waypoint{
		origin.AddMeters(side, 0),
		origin.AddMeters(side, side),
		origin,
		origin.AddMeters(0, side),
	}
}

func newEndurance(t *testing.T) *event.Endurance {
	t.Helper()
	cfg := event.DefaultEnduranceConfig()
	cfg.Laps = 1
	e, err := event.NewEndurance(square(100), cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return e
}

func TestDriver_WaitsForFix(t *testing.T) {
	boat := &fakeBoat{err: state.ErrNoFix}
	helm := &fakeHelm{}
	d := NewDriver(newEndurance(t), boat, helm, nil, time.Second)

	if d.Step(context.Background()) {
		t.Fatal("Driver should not finish without a fix")
	}
	if len(helm.targets) != 0 {
		t.Errorf("Helm should not be commanded without a fix, got %d", len(helm.targets))
	}
	if d.GetStats()["waiting"] != 1 {
		t.Errorf("Expected waiting=1, got %v", d.GetStats()["waiting"])
	}
}

func TestDriver_StepsThroughEndurance(t *testing.T) {
	e := newEndurance(t)
	course := e.Queue()
	boat := &fakeBoat{positions: course}
	helm := &fakeHelm{}
	var buf bytes.Buffer
	d := NewDriver(e, boat, helm, logging.NewMissionLoggerTo("boat-1", &buf), time.Second)

	ctx := context.Background()
	for i := 0; i < len(course)-1; i++ {
		if d.Step(ctx) {
			t.Fatalf("Finished early at step %d", i)
		}
		if got := helm.targets[i]; got == nil || *got != course[i+1] {
			t.Errorf("Step %d: expected %v, got %v", i, course[i+1], got)
		}
	}

	if !d.Step(ctx) {
		t.Fatal("Expected the course to finish")
	}
	if last := helm.targets[len(helm.targets)-1]; last != nil {
		t.Errorf("Expected nil target on finish, got %v", last)
	}
	if !boat.records[len(boat.records)-1].Finished {
		t.Error("Last decision should be marked finished")
	}
	if !d.Step(ctx) {
		t.Error("Finished driver should stay finished")
	}
	if len(helm.targets) != len(course) {
		t.Errorf("Helm should not be commanded after finish, got %d sends", len(helm.targets))
	}
	if !strings.Contains(buf.String(), "MISSION_FINISHED: event=ENDURANCE") {
		t.Errorf("Expected finish log line, got %q", buf.String())
	}
}

func TestDriver_HelmErrorIsLogged(t *testing.T) {
	e := newEndurance(t)
	boat := &fakeBoat{positions: []geo.Waypoint{origin.AddMeters(-500, 0)}}
	helm := &fakeHelm{err: errors.New("connection refused")}
	var buf bytes.Buffer
	d := NewDriver(e, boat, helm, logging.NewMissionLoggerTo("boat-1", &buf), time.Second)

	if d.Step(context.Background()) {
		t.Fatal("Should not finish")
	}
	if !strings.Contains(buf.String(), "ERROR: operation=helm") {
		t.Errorf("Expected helm error to be logged, got %q", buf.String())
	}
}

func TestDriver_StationKeepingStopsOutsideBox(t *testing.T) {
	corners := []geo.Waypoint{
		origin.AddMeters(20, -20),
		origin.AddMeters(20, 20),
		origin.AddMeters(-20, -20),
		origin.AddMeters(-20, 20),
	}
	cfg := event.DefaultStationKeepingConfig()
	cfg.Stay = 0
	sk, err := event.NewStationKeeping(corners, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	boat := &fakeBoat{
		positions: []geo.Waypoint{origin.AddMeters(-100, 0), origin, origin.AddMeters(-40, 0)},
		wind:      0,
	}
	helm := &fakeHelm{}
	var buf bytes.Buffer
	d := NewDriver(sk, boat, helm, logging.NewMissionLoggerTo("boat-1", &buf), time.Second)
	ctx := context.Background()

	if d.Step(ctx) {
		t.Fatal("Should not finish while approaching")
	}
	if d.Step(ctx) {
		t.Fatal("Should not finish while still inside the box")
	}
	if helm.modes[1] != event.StationLeaving {
		t.Errorf("Expected LEAVING after a zero stay, got %s", helm.modes[1])
	}
	if !d.Step(ctx) {
		t.Fatal("Expected to finish once outside the box")
	}
	if !strings.Contains(buf.String(), "MODE_CHANGE: event=STATION_KEEPING from=APPROACHING to=LEAVING") {
		t.Errorf("Expected mode change to be logged, got %q", buf.String())
	}
}

func TestDriver_RunFinishes(t *testing.T) {
	e := newEndurance(t)
	boat := &fakeBoat{positions: e.Queue()}
	d := NewDriver(e, boat, &fakeHelm{}, nil, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Expected nil on finish, got %v", err)
	}
	if d.GetStats()["finished"] != true {
		t.Error("Expected finished=true")
	}
}

func TestDriver_RunCancelled(t *testing.T) {
	boat := &fakeBoat{err: state.ErrNoFix}
	d := NewDriver(newEndurance(t), boat, nil, nil, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}
