package event

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/heatmap"
	"github.com/heitortanoue/sailbot/pkg/transceiver"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

// TouchedMessage is sent through the transceiver when the search ends.
const TouchedMessage = "Sailbot touched the buoy!"

// Mode is the search state.
type Mode int

const (
	ModeSearching Mode = iota + 1
	ModeTracking
	ModeRamming
)

func (m Mode) String() string {
	switch m {
	case ModeSearching:
		return "SEARCHING"
	case ModeTracking:
		return "TRACKING"
	case ModeRamming:
		return "RAMMING"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// SearchConfig tunes the search event.
type SearchConfig struct {
	ChunkRadius          float64 // heatmap chunk radius, meters
	MaxChunks            int     // 0 keeps every chunk
	DivertThreshold      float64 // pooled confidence needed to leave the pattern
	RadiusTolerance      float64 // meters accepted beyond the search radius
	AbandonThreshold     int     // consecutive misses before giving up on a target
	RammingDistance      float64 // meters
	CollisionSensitivity float64 // meters
	Duration             time.Duration
	MaxDetectionDistance float64 // meters, sizes the search pattern
	PatternArrival       float64 // meters to consider a pattern point reached

	SurveyImages     int
	SurveyPitch      float64
	SurveyServoRange float64
}

// DefaultSearchConfig returns the competition defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		ChunkRadius:          5,
		DivertThreshold:      1.5,
		RadiusTolerance:      10,
		AbandonThreshold:     5,
		RammingDistance:      10,
		CollisionSensitivity: 2,
		Duration:             10 * time.Minute,
		MaxDetectionDistance: 40,
		PatternArrival:       2,
		SurveyImages:         3,
		SurveyPitch:          90,
		SurveyServoRange:     180,
	}
}

// Search locates a buoy inside a circle, drives to it and touches it.
//
// Before entering the circle the boat heads to the first pattern vertex.
// Inside it the event sweeps the pentagon pattern while pooling detections in
// a heatmap, diverts to the best chunk once its confidence is high enough,
// and rams it when close. The event ends on touch or when Duration elapses
// after entry.
type Search struct {
	cfg    SearchConfig
	center geo.Waypoint
	radius float64
	bounds float64
	camera vision.Camera
	radio  transceiver.Transceiver

	pattern   []geo.Waypoint
	queue     []geo.Waypoint
	mode      Mode
	started   bool
	startTime time.Time
	heatmap   *heatmap.Heatmap
	best      *heatmap.Chunk
	misses    int
	finished  bool
}

// NewSearch creates a search around center. start is the boat position used
// to orient the search pattern.
func NewSearch(center geo.Waypoint, radius float64, start geo.Waypoint, cfg SearchConfig,
	camera vision.Camera, radio transceiver.Transceiver) (*Search, error) {
	if err := requireWaypoints(KindSearch, []geo.Waypoint{center}, 1); err != nil {
		return nil, err
	}
	if camera == nil {
		return nil, configErrorf(KindSearch, "camera is required")
	}
	if cfg.AbandonThreshold < 1 {
		return nil, configErrorf(KindSearch, "abandon threshold must be >= 1, got %d", cfg.AbandonThreshold)
	}
	if cfg.ChunkRadius <= 0 {
		return nil, configErrorf(KindSearch, "chunk radius must be > 0, got %.2f", cfg.ChunkRadius)
	}

	pattern, err := SearchPattern(start, center, radius, cfg.MaxDetectionDistance)
	if err != nil {
		return nil, err
	}

	queue := make([]geo.Waypoint, len(pattern))
	copy(queue, pattern)

	log.Printf("[SEARCH] Search around %s radius %.1fm", center, radius)
	return &Search{
		cfg:     cfg,
		center:  center,
		radius:  radius,
		bounds:  radius + cfg.RadiusTolerance,
		camera:  camera,
		radio:   radio,
		pattern: pattern,
		queue:   queue,
		mode:    ModeSearching,
		heatmap: heatmap.NewBounded(cfg.ChunkRadius, cfg.MaxChunks),
	}, nil
}

func (s *Search) isEvent() {}

// Kind implements Event.
func (s *Search) Kind() Kind { return KindSearch }

// Mode returns the current search state.
func (s *Search) Mode() Mode { return s.mode }

// Misses returns the consecutive missed re-detections while tracking.
func (s *Search) Misses() int { return s.misses }

// Heatmap exposes the detection heatmap.
func (s *Search) Heatmap() *heatmap.Heatmap { return s.heatmap }

// Pattern returns a copy of the search pattern.
func (s *Search) Pattern() []geo.Waypoint {
	out := make([]geo.Waypoint, len(s.pattern))
	copy(out, s.pattern)
	return out
}

// Next implements Event.
func (s *Search) Next(ctx context.Context, snap Snapshot) Result {
	if s.finished {
		return Finished()
	}

	if !s.started {
		if !geo.HasReached(s.center, s.radius, snap.Position) {
			return Continue(s.queue[0])
		}
		log.Printf("[SEARCH] Search event started!")
		s.started = true
		s.startTime = snap.Time
		s.queue = s.queue[1:]
		s.mode = ModeSearching
	}

	if elapsed := snap.Time.Sub(s.startTime); elapsed > s.cfg.Duration {
		log.Printf("[SEARCH] Time is up after %v, assuming the buoy was touched", elapsed.Round(time.Second))
		return s.finish()
	}

	switch s.mode {
	case ModeTracking:
		return s.track(ctx, snap)
	case ModeRamming:
		return s.ram(snap)
	default:
		return s.search(ctx, snap)
	}
}

func (s *Search) search(ctx context.Context, snap Snapshot) Result {
	frames, err := s.camera.Survey(ctx, s.cfg.SurveyImages, s.cfg.SurveyPitch, s.cfg.SurveyServoRange)
	if err != nil {
		log.Printf("[SEARCH] SEARCHING: survey failed: %v", err)
	}

	if s.ingest(frames, ModeSearching) == 0 {
		log.Printf("[SEARCH] SEARCHING: No buoys spotted, continuing along search path")
		return s.followPattern(snap)
	}

	best, ok := s.heatmap.HighestConfidence()
	if !ok || best.SumConfidence <= s.cfg.DivertThreshold {
		return s.followPattern(snap)
	}

	log.Printf("[SEARCH] SEARCHING: Buoy confirmed (%.2f), bookmarking %s and diverting to %s",
		best.SumConfidence, snap.Position, best.Centroid)
	s.best = best
	s.heatmap.Pin(best)
	s.mode = ModeTracking
	s.misses = 0
	s.queue = append([]geo.Waypoint{best.Centroid, snap.Position}, s.queue...)
	return Continue(s.queue[0])
}

func (s *Search) track(ctx context.Context, snap Snapshot) Result {
	target := s.queue[0]
	distance := geo.Distance(snap.Position, target)

	if distance < s.cfg.RammingDistance {
		log.Printf("[SEARCH] TRACKING: %.1fm away from buoy, ramming", distance)
		s.mode = ModeRamming
		return Continue(target)
	}

	log.Printf("[SEARCH] TRACKING: %.1fm away from buoy, closing in", distance)
	if err := s.camera.Focus(ctx, target); err != nil {
		log.Printf("[SEARCH] TRACKING: %v, heading to last known position", err)
		return Continue(target)
	}

	frame, err := s.camera.Capture(ctx)
	if err != nil {
		log.Printf("[SEARCH] TRACKING: capture failed: %v", err)
	}
	if err != nil || len(frame.Detections) == 0 {
		s.misses++
		log.Printf("[SEARCH] TRACKING: Lost buoy (%d/%d)", s.misses, s.cfg.AbandonThreshold)
		if s.misses >= s.cfg.AbandonThreshold {
			log.Printf("[SEARCH] TRACKING: Can't find buoy, abandoning course and returning to search")
			s.misses = 0
			s.best = nil
			s.heatmap.Pin(nil)
			s.mode = ModeSearching
			s.queue = s.queue[1:]
			return s.followPattern(snap)
		}
		return Continue(target)
	}

	s.misses = 0
	s.ingest([]vision.Frame{frame}, ModeTracking)
	s.queue[0] = s.best.Centroid
	log.Printf("[SEARCH] TRACKING: Continuing course to buoy at %s", s.queue[0])
	return Continue(s.queue[0])
}

func (s *Search) ram(snap Snapshot) Result {
	target := s.queue[0]
	if geo.Distance(snap.Position, target) < s.cfg.CollisionSensitivity {
		log.Printf("[SEARCH] RAMMING: Sailbot touched the buoy! Search event finished")
		return s.finish()
	}
	return Continue(target)
}

// ingest appends in-bounds detections to the heatmap and returns how many
// were kept.
func (s *Search) ingest(frames []vision.Frame, mode Mode) int {
	kept := 0
	for _, frame := range frames {
		for _, d := range frame.Detections {
			fromCenter := geo.Distance(s.center, d.Position)
			if fromCenter > s.bounds {
				log.Printf("[SEARCH] %s: Dropped buoy at %s, %.1fm from center", mode, d.Position, fromCenter)
				continue
			}
			s.heatmap.Append(d)
			kept++
		}
	}
	return kept
}

// followPattern keeps the boat on the search pentagon, restarting it when
// every vertex has been visited.
func (s *Search) followPattern(snap Snapshot) Result {
	s.refillPattern()
	if geo.HasReached(s.queue[0], s.cfg.PatternArrival, snap.Position) {
		s.queue = s.queue[1:]
		s.refillPattern()
	}
	return Continue(s.queue[0])
}

func (s *Search) refillPattern() {
	if len(s.queue) == 0 {
		log.Printf("[SEARCH] Search path complete, restarting pattern")
		s.queue = append(s.queue, s.pattern...)
	}
}

func (s *Search) finish() Result {
	s.finished = true
	if s.radio != nil {
		if err := s.radio.Send(TouchedMessage); err != nil {
			log.Printf("[SEARCH] Failed to signal touch: %v", err)
		}
	}
	return Finished()
}

// Status implements Event.
func (s *Search) Status() Status {
	mode := s.mode.String()
	if !s.started {
		mode = "APPROACHING"
	}
	return Status{
		Kind:        KindSearch,
		Mode:        mode,
		Target:      front(s.queue),
		QueueLength: len(s.queue),
		Chunks:      s.heatmap.Len(),
		Misses:      s.misses,
		Finished:    s.finished,
	}
}
