package event

import (
	"context"
	"sync"
	"time"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

var (
	origin = geo.NewWaypoint(38.9834, -76.4840)
	t0     = time.Date(2026, 6, 14, 12, 0, 0, 0, time.UTC)
)

// fakeCamera replays scripted frames.
type fakeCamera struct {
	surveys    [][]vision.Frame
	captures   []vision.Frame
	captureErr error
	focusErr   error

	surveyCalls  int
	captureCalls int
	focusCalls   int
	lastFocus    geo.Waypoint
}

func (c *fakeCamera) Survey(_ context.Context, images int, pitch, servoRange float64) ([]vision.Frame, error) {
	c.surveyCalls++
	if len(c.surveys) == 0 {
		return nil, nil
	}
	frames := c.surveys[0]
	c.surveys = c.surveys[1:]
	return frames, nil
}

func (c *fakeCamera) Capture(_ context.Context) (vision.Frame, error) {
	c.captureCalls++
	if c.captureErr != nil {
		return vision.Frame{}, c.captureErr
	}
	if len(c.captures) == 0 {
		return vision.Frame{}, nil
	}
	frame := c.captures[0]
	c.captures = c.captures[1:]
	return frame, nil
}

func (c *fakeCamera) Focus(_ context.Context, target geo.Waypoint) error {
	c.focusCalls++
	c.lastFocus = target
	return c.focusErr
}

// fakeRadio records sent messages.
type fakeRadio struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (r *fakeRadio) Send(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return r.err
}

func (r *fakeRadio) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

func snapAt(pos geo.Waypoint, at time.Time) Snapshot {
	return Snapshot{Time: at, Position: pos}
}

func framesWith(dets ...vision.Detection) []vision.Frame {
	return []vision.Frame{{Detections: dets}}
}

func near(a, b geo.Waypoint, meters float64) bool {
	return geo.Distance(a, b) <= meters
}
