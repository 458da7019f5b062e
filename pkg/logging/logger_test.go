package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/heitortanoue/sailbot/pkg/event"
	"github.com/heitortanoue/sailbot/pkg/geo"
)

func newTestLogger() (*MissionLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewMissionLoggerTo("boat-1", &buf)
	l.now = func() time.Time { return time.UnixMilli(1718366400000) }
	return l, &buf
}

func TestMissionLogger_Lines(t *testing.T) {
	pos := geo.NewWaypoint(38.9834, -76.4840)

	tests := []struct {
		name  string
		log   func(l *MissionLogger)
		wants []string
	}{
		{
			"waypoint",
			func(l *MissionLogger) { l.LogWaypoint(event.KindSearch, "TRACKING", pos, pos.AddMeters(100, 0)) },
			[]string{"WAYPOINT:", "event=SEARCH", "mode=TRACKING", "distance_m=100.0", "at=1718366400000"},
		},
		{
			"mode change",
			func(l *MissionLogger) { l.LogModeChange(event.KindSearch, "SEARCHING", "TRACKING") },
			[]string{"MODE_CHANGE:", "from=SEARCHING", "to=TRACKING"},
		},
		{
			"status",
			func(l *MissionLogger) {
				l.LogStatus(event.Status{Kind: event.KindEndurance, Mode: "ROUNDING", QueueLength: 12})
			},
			[]string{"STATUS:", "event=ENDURANCE", "queue=12", "finished=false"},
		},
		{
			"failed signal",
			func(l *MissionLogger) { l.LogSignal("Sailbot touched the buoy!", errors.New("down")) },
			[]string{"SIGNAL:", `message="Sailbot touched the buoy!"`, "status=FAILED"},
		},
		{
			"error",
			func(l *MissionLogger) { l.LogError("helm", errors.New("connection refused")) },
			[]string{"ERROR:", "operation=helm", `error="connection refused"`},
		},
		{
			"finished",
			func(l *MissionLogger) { l.LogFinished(event.KindSearch, 90*time.Second) },
			[]string{"MISSION_FINISHED:", "elapsed_s=90.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger()
			tt.log(l)
			line := buf.String()
			if !strings.HasPrefix(line, "[boat-1] ") {
				t.Errorf("Expected boat prefix, got %q", line)
			}
			for _, want := range tt.wants {
				if !strings.Contains(line, want) {
					t.Errorf("Expected %q in %q", want, line)
				}
			}
		})
	}
}
