package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heitortanoue/sailbot/pkg/geo"
)

// ErrNoFrame is returned by a Camera when no image could be captured.
var ErrNoFrame = errors.New("no camera feed detected")

// Detection is a buoy candidate estimated by the vision pipeline.
type Detection struct {
	ID         uuid.UUID    `json:"id"`
	Position   geo.Waypoint `json:"position"`
	Confidence float64      `json:"confidence"` // 0-1
	Label      string       `json:"label,omitempty"`
}

// Scale is the full-scale confidence a detection producer reports.
type Scale float64

const (
	UnitScale    Scale = 1   // producer reports 0-1
	PercentScale Scale = 100 // producer reports 0-100
)

// Normalize maps a confidence reported on scale s into [0, 1].
// A non-positive scale is read as UnitScale.
func (s Scale) Normalize(conf float64) float64 {
	if s > 0 {
		conf /= float64(s)
	}
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// NewDetection creates a detection with a fresh ID. confidence is read on
// the producer's scale and stored normalised.
func NewDetection(position geo.Waypoint, confidence float64, scale Scale) Detection {
	return Detection{
		ID:         uuid.New(),
		Position:   position,
		Confidence: scale.Normalize(confidence),
	}
}

// Frame is a captured image's metadata and its detections.
type Frame struct {
	Time       time.Time    `json:"time"`
	Position   geo.Waypoint `json:"position"` // boat position at capture time
	Pitch      float64      `json:"pitch"`
	Yaw        float64      `json:"yaw"`
	Detections []Detection  `json:"detections"`
}

// Camera is the vision collaborator used by the search event.
//
// Survey sweeps the camera servos over servoRange degrees at a fixed pitch and
// returns one frame per image. Capture takes a single frame at the current
// servo position. Focus points the camera at a geographic target and returns
// a *FocusError when the target cannot be brought into view.
type Camera interface {
	Survey(ctx context.Context, images int, pitch, servoRange float64) ([]Frame, error)
	Capture(ctx context.Context) (Frame, error)
	Focus(ctx context.Context, target geo.Waypoint) error
}

// FocusError reports that the camera could not point at a target.
type FocusError struct {
	Target geo.Waypoint
	Reason string
}

func (e *FocusError) Error() string {
	return fmt.Sprintf("cannot focus camera on %s: %s", e.Target, e.Reason)
}

// CountDetections returns the total number of detections across frames.
func CountDetections(frames []Frame) int {
	total := 0
	for _, f := range frames {
		total += len(f.Detections)
	}
	return total
}
