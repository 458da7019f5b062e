package heatmap

import (
	"log"

	"github.com/google/uuid"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

// Chunk is a circular cluster of detections assumed to come from the same buoy.
//
// The centroid is always the arithmetic mean of every absorbed detection's
// position, so it drifts as detections are added.
type Chunk struct {
	ID            uuid.UUID
	Radius        float64
	Centroid      geo.Waypoint
	Count         int
	SumConfidence float64

	sumLat float64
	sumLon float64
}

func newChunk(radius float64, d vision.Detection) *Chunk {
	return &Chunk{
		ID:            uuid.New(),
		Radius:        radius,
		Centroid:      d.Position,
		Count:         1,
		SumConfidence: d.Confidence,
		sumLat:        d.Position.Lat,
		sumLon:        d.Position.Lon,
	}
}

// Contains reports whether the detection lies within the chunk's radius of
// its current centroid.
func (c *Chunk) Contains(d vision.Detection) bool {
	return geo.Distance(c.Centroid, d.Position) <= c.Radius
}

func (c *Chunk) absorb(d vision.Detection) {
	c.Count++
	c.sumLat += d.Position.Lat
	c.sumLon += d.Position.Lon
	c.Centroid = geo.Waypoint{
		Lat: c.sumLat / float64(c.Count),
		Lon: c.sumLon / float64(c.Count),
	}
	c.SumConfidence += d.Confidence
}

// Heatmap pools nearby detections into confidence-weighted chunks.
//
// Detections are matched against chunks in creation order and absorbed by the
// first chunk within radius, not the nearest one. Chunks are never merged.
// With MaxChunks == 0 the heatmap grows for the lifetime of its owner.
// A bounded heatmap never evicts its pinned chunk, nor its best chunk while
// another candidate exists.
type Heatmap struct {
	radius    float64
	maxChunks int
	chunks    []*Chunk
	pinned    *Chunk
	evicted   int
}

// New creates an empty heatmap whose chunks have the given radius in meters.
func New(chunkRadius float64) *Heatmap {
	return &Heatmap{radius: chunkRadius}
}

// NewBounded creates a heatmap holding at most maxChunks chunks.
// A maxChunks of zero or less means unbounded.
func NewBounded(chunkRadius float64, maxChunks int) *Heatmap {
	if maxChunks < 0 {
		maxChunks = 0
	}
	return &Heatmap{radius: chunkRadius, maxChunks: maxChunks}
}

// Radius returns the chunk radius in meters.
func (h *Heatmap) Radius() float64 {
	return h.radius
}

// Append adds a detection to the first chunk containing it, or seeds a new
// chunk. The confidence must already be normalised. It returns the chunk that
// received the detection.
func (h *Heatmap) Append(d vision.Detection) *Chunk {
	for _, chunk := range h.chunks {
		if chunk.Contains(d) {
			chunk.absorb(d)
			return chunk
		}
	}

	if h.maxChunks > 0 && len(h.chunks) >= h.maxChunks {
		h.evictWeakest()
	}

	chunk := newChunk(h.radius, d)
	h.chunks = append(h.chunks, chunk)
	log.Printf("[HEATMAP] New chunk %s at %s (total %d)", chunk.ID.String()[:8], chunk.Centroid, len(h.chunks))
	return chunk
}

// HighestConfidence returns the chunk with the largest cumulative confidence.
// Ties go to the earliest created chunk. ok is false when the heatmap is empty.
func (h *Heatmap) HighestConfidence() (best *Chunk, ok bool) {
	for _, chunk := range h.chunks {
		if best == nil || chunk.SumConfidence > best.SumConfidence {
			best = chunk
		}
	}
	return best, best != nil
}

// Len returns the number of chunks.
func (h *Heatmap) Len() int {
	return len(h.chunks)
}

// Chunks returns the chunks in creation order. The slice is a copy; the
// chunks themselves are shared.
func (h *Heatmap) Chunks() []*Chunk {
	out := make([]*Chunk, len(h.chunks))
	copy(out, h.chunks)
	return out
}

// Pin protects c from eviction until another chunk is pinned. Pin(nil)
// releases it.
func (h *Heatmap) Pin(c *Chunk) {
	h.pinned = c
}

// Pinned returns the pinned chunk, or nil.
func (h *Heatmap) Pinned() *Chunk {
	return h.pinned
}

// evictWeakest drops the lowest-confidence chunk, oldest first on ties. The
// pinned chunk is never dropped; with a cap of one and a pinned chunk the
// heatmap grows past the cap rather than lose it.
func (h *Heatmap) evictWeakest() {
	best, _ := h.HighestConfidence()
	weakest, fallback := -1, -1
	for i, chunk := range h.chunks {
		if chunk == h.pinned {
			continue
		}
		if chunk == best {
			fallback = i
			continue
		}
		if weakest < 0 || chunk.SumConfidence < h.chunks[weakest].SumConfidence {
			weakest = i
		}
	}
	if weakest < 0 {
		weakest = fallback
	}
	if weakest < 0 {
		return
	}
	dropped := h.chunks[weakest]
	h.chunks = append(h.chunks[:weakest], h.chunks[weakest+1:]...)
	h.evicted++
	log.Printf("[HEATMAP] Evicted chunk %s (confidence %.2f, %d detections)",
		dropped.ID.String()[:8], dropped.SumConfidence, dropped.Count)
}

// GetStats returns heatmap statistics.
func (h *Heatmap) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"chunk_radius": h.radius,
		"chunks":       len(h.chunks),
		"max_chunks":   h.maxChunks,
		"evicted":      h.evicted,
		"pinned":       h.pinned != nil,
	}
	if best, ok := h.HighestConfidence(); ok {
		stats["best_confidence"] = best.SumConfidence
		stats["best_centroid"] = best.Centroid
	}
	return stats
}
