// Package logging writes greppable mission events, one line per event in
// the form "KIND: key=value ... at=<unix ms>".
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/geo"
)

// MissionLogger logs mission decisions for post-race analysis.
type MissionLogger struct {
	boatID string
	logger *log.Logger
	now    func() time.Time
}

// NewMissionLogger logs to stdout.
func NewMissionLogger(boatID string) *MissionLogger {
	return NewMissionLoggerTo(boatID, os.Stdout)
}

// NewMissionLoggerTo logs to w.
func NewMissionLoggerTo(boatID string, w io.Writer) *MissionLogger {
	return &MissionLogger{
		boatID: boatID,
		logger: log.New(w, fmt.Sprintf("[%s] ", boatID), log.LstdFlags|log.Lmicroseconds),
		now:    time.Now,
	}
}

func (l *MissionLogger) at() int64 {
	return l.now().UnixMilli()
}

// LogMissionStart records the event loaded for this run.
func (l *MissionLogger) LogMissionStart(kind event.Kind, waypoints int) {
	l.logger.Printf("MISSION_START: event=%s waypoints=%d at=%d", kind, waypoints, l.at())
}

// LogWaypoint records the target returned on a tick.
func (l *MissionLogger) LogWaypoint(kind event.Kind, mode string, pos, target geo.Waypoint) {
	l.logger.Printf("WAYPOINT: event=%s mode=%s lat=%.6f lon=%.6f target_lat=%.6f target_lon=%.6f distance_m=%.1f at=%d",
		kind, mode, pos.Lat, pos.Lon, target.Lat, target.Lon, geo.Distance(pos, target), l.at())
}

// LogModeChange records a state machine transition.
func (l *MissionLogger) LogModeChange(kind event.Kind, from, to string) {
	l.logger.Printf("MODE_CHANGE: event=%s from=%s to=%s at=%d", kind, from, to, l.at())
}

// LogStatus records a status snapshot.
func (l *MissionLogger) LogStatus(s event.Status) {
	l.logger.Printf("STATUS: event=%s mode=%s queue=%d chunks=%d misses=%d finished=%t at=%d",
		s.Kind, s.Mode, s.QueueLength, s.Chunks, s.Misses, s.Finished, l.at())
}

// LogFinished records the end of the event.
func (l *MissionLogger) LogFinished(kind event.Kind, elapsed time.Duration) {
	l.logger.Printf("MISSION_FINISHED: event=%s elapsed_s=%.1f at=%d", kind, elapsed.Seconds(), l.at())
}

// LogSignal records a transceiver send.
func (l *MissionLogger) LogSignal(message string, err error) {
	status := "SUCCESS"
	if err != nil {
		status = "FAILED"
	}
	l.logger.Printf("SIGNAL: message=%q status=%s at=%d", message, status, l.at())
}

// LogError records a recovered failure.
func (l *MissionLogger) LogError(operation string, err error) {
	l.logger.Printf("ERROR: operation=%s error=%q at=%d", operation, err.Error(), l.at())
}

// LogMetrics records how long a tick took.
func (l *MissionLogger) LogMetrics(operation string, duration time.Duration, count int) {
	l.logger.Printf("METRICS: operation=%s duration_ms=%.2f count=%d at=%d",
		operation, float64(duration.Microseconds())/1000.0, count, l.at())
}
