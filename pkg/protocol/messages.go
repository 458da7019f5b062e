// Package protocol defines the JSON messages exchanged with the vision
// process and the helm over UDP.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

// MessageType identifies a message on the wire.
type MessageType string

const (
	// requests to the vision process
	SurveyType  MessageType = "SURVEY"
	CaptureType MessageType = "CAPTURE"
	FocusType   MessageType = "FOCUS"

	// replies from the vision process
	FramesType      MessageType = "FRAMES"
	FocusOKType     MessageType = "FOCUS_OK"
	FocusFailedType MessageType = "FOCUS_FAILED"
	ErrorType       MessageType = "ERROR"

	// sensor input from the GPS and windvane processes
	FixType  MessageType = "FIX"
	WindType MessageType = "WIND"

	// decision output to the helm
	WaypointType MessageType = "WAYPOINT"
	FinishedType MessageType = "FINISHED"
)

// ControlMessage is the envelope of every message. Replies carry the
// RequestID of the request they answer.
type ControlMessage struct {
	Type      MessageType     `json:"type"`
	SenderID  string          `json:"sender_id"`
	RequestID uuid.UUID       `json:"request_id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SurveyMsg asks for a sweep of images across the servo range.
type SurveyMsg struct {
	Images     int     `json:"images"`
	Pitch      float64 `json:"pitch"`
	ServoRange float64 `json:"servo_range"`
}

// FocusMsg asks the camera to point at a position.
type FocusMsg struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DetectionMsg is a detection on the wire.
type DetectionMsg struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

// FrameMsg is one captured image with its detections.
type FrameMsg struct {
	Time       int64          `json:"time"`
	Lat        float64        `json:"lat"`
	Lon        float64        `json:"lon"`
	Pitch      float64        `json:"pitch"`
	Yaw        float64        `json:"yaw"`
	Detections []DetectionMsg `json:"detections"`
}

// FramesMsg answers SURVEY and CAPTURE. ConfidenceScale is the full-scale
// value of the producer's confidences (1 or 100); zero leaves it to the
// receiver's configured scale.
type FramesMsg struct {
	ConfidenceScale float64    `json:"confidence_scale,omitempty"`
	Frames          []FrameMsg `json:"frames"`
}

// ErrorMsg carries a failure reason.
type ErrorMsg struct {
	Reason string `json:"reason"`
}

// FixMsg is a position fix.
type FixMsg struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WindMsg is an apparent wind reading in degrees.
type WindMsg struct {
	Angle float64 `json:"angle"`
}

// WaypointMsg is the decision sent to the helm each tick.
type WaypointMsg struct {
	Event string   `json:"event"`
	Mode  string   `json:"mode"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

func newMessage(t MessageType, senderID string, requestID uuid.UUID, data interface{}) (ControlMessage, error) {
	msg := ControlMessage{
		Type:      t,
		SenderID:  senderID,
		RequestID: requestID,
		Timestamp: getCurrentTimestamp(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return ControlMessage{}, fmt.Errorf("encode %s: %w", t, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// CreateSurveyMessage builds a SURVEY request with a fresh request ID.
func CreateSurveyMessage(senderID string, images int, pitch, servoRange float64) ControlMessage {
	msg, _ := newMessage(SurveyType, senderID, uuid.New(), SurveyMsg{Images: images, Pitch: pitch, ServoRange: servoRange})
	return msg
}

// CreateCaptureMessage builds a CAPTURE request.
func CreateCaptureMessage(senderID string) ControlMessage {
	msg, _ := newMessage(CaptureType, senderID, uuid.New(), nil)
	return msg
}

// CreateFocusMessage builds a FOCUS request.
func CreateFocusMessage(senderID string, target geo.Waypoint) ControlMessage {
	msg, _ := newMessage(FocusType, senderID, uuid.New(), FocusMsg{Lat: target.Lat, Lon: target.Lon})
	return msg
}

// CreateFramesReply answers a request with frames whose confidences are
// reported on scale.
func CreateFramesReply(senderID string, requestID uuid.UUID, frames []vision.Frame, scale vision.Scale) ControlMessage {
	out := FramesMsg{
		ConfidenceScale: float64(scale),
		Frames:          make([]FrameMsg, 0, len(frames)),
	}
	for _, f := range frames {
		out.Frames = append(out.Frames, FromFrame(f))
	}
	msg, _ := newMessage(FramesType, senderID, requestID, out)
	return msg
}

// CreateFocusReply answers a FOCUS request. A non-empty reason means failure.
func CreateFocusReply(senderID string, requestID uuid.UUID, reason string) ControlMessage {
	if reason == "" {
		msg, _ := newMessage(FocusOKType, senderID, requestID, nil)
		return msg
	}
	msg, _ := newMessage(FocusFailedType, senderID, requestID, ErrorMsg{Reason: reason})
	return msg
}

// CreateErrorReply answers a request that could not be served.
func CreateErrorReply(senderID string, requestID uuid.UUID, reason string) ControlMessage {
	msg, _ := newMessage(ErrorType, senderID, requestID, ErrorMsg{Reason: reason})
	return msg
}

// CreateWaypointMessage builds the helm output. A nil target means the
// event has finished.
func CreateWaypointMessage(senderID, event, mode string, target *geo.Waypoint) ControlMessage {
	data := WaypointMsg{Event: event, Mode: mode}
	t := FinishedType
	if target != nil {
		lat, lon := target.Lat, target.Lon
		data.Lat, data.Lon = &lat, &lon
		t = WaypointType
	}
	msg, _ := newMessage(t, senderID, uuid.New(), data)
	return msg
}

// CreateFixMessage builds a FIX message.
func CreateFixMessage(senderID string, pos geo.Waypoint) ControlMessage {
	msg, _ := newMessage(FixType, senderID, uuid.New(), FixMsg{Lat: pos.Lat, Lon: pos.Lon})
	return msg
}

// CreateWindMessage builds a WIND message.
func CreateWindMessage(senderID string, angle float64) ControlMessage {
	msg, _ := newMessage(WindType, senderID, uuid.New(), WindMsg{Angle: angle})
	return msg
}

// Encode serialises a message.
func Encode(msg ControlMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses a message and checks that it has a type.
func Decode(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return ControlMessage{}, fmt.Errorf("decode message: missing type")
	}
	return msg, nil
}

func parseData(msg ControlMessage, want MessageType, into interface{}) bool {
	if msg.Type != want || len(msg.Data) == 0 {
		return false
	}
	return json.Unmarshal(msg.Data, into) == nil
}

// ParseSurveyMessage extracts a SURVEY request.
func ParseSurveyMessage(msg ControlMessage) (*SurveyMsg, bool) {
	var s SurveyMsg
	if !parseData(msg, SurveyType, &s) {
		return nil, false
	}
	return &s, true
}

// ParseFocusMessage extracts a FOCUS request.
func ParseFocusMessage(msg ControlMessage) (*FocusMsg, bool) {
	var f FocusMsg
	if !parseData(msg, FocusType, &f) {
		return nil, false
	}
	return &f, true
}

// ParseFramesMessage extracts the frames of a FRAMES reply, normalising
// confidences with the scale the reply declares, or fallback when it
// declares none.
func ParseFramesMessage(msg ControlMessage, fallback vision.Scale) ([]vision.Frame, bool) {
	var fm FramesMsg
	if !parseData(msg, FramesType, &fm) {
		return nil, false
	}
	scale := fallback
	if fm.ConfidenceScale > 0 {
		scale = vision.Scale(fm.ConfidenceScale)
	}
	frames := make([]vision.Frame, 0, len(fm.Frames))
	for _, f := range fm.Frames {
		frames = append(frames, f.ToFrame(scale))
	}
	return frames, true
}

// ParseErrorReason extracts the reason of a FOCUS_FAILED or ERROR reply.
func ParseErrorReason(msg ControlMessage) (string, bool) {
	if msg.Type != FocusFailedType && msg.Type != ErrorType {
		return "", false
	}
	var e ErrorMsg
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return "", false
		}
	}
	return e.Reason, true
}

// ParseFixMessage extracts a position fix.
func ParseFixMessage(msg ControlMessage) (geo.Waypoint, bool) {
	var f FixMsg
	if !parseData(msg, FixType, &f) {
		return geo.Waypoint{}, false
	}
	return geo.NewWaypoint(f.Lat, f.Lon), true
}

// ParseWindMessage extracts a wind angle.
func ParseWindMessage(msg ControlMessage) (float64, bool) {
	var w WindMsg
	if !parseData(msg, WindType, &w) {
		return 0, false
	}
	return w.Angle, true
}

// ParseWaypointMessage extracts helm output.
func ParseWaypointMessage(msg ControlMessage) (*WaypointMsg, bool) {
	if msg.Type != WaypointType && msg.Type != FinishedType {
		return nil, false
	}
	var w WaypointMsg
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		return nil, false
	}
	return &w, true
}

// ToFrame converts a wire frame, normalising every detection confidence
// from scale.
func (f FrameMsg) ToFrame(scale vision.Scale) vision.Frame {
	frame := vision.Frame{
		Time:       time.UnixMilli(f.Time),
		Position:   geo.NewWaypoint(f.Lat, f.Lon),
		Pitch:      f.Pitch,
		Yaw:        f.Yaw,
		Detections: make([]vision.Detection, 0, len(f.Detections)),
	}
	for _, d := range f.Detections {
		det := vision.NewDetection(geo.NewWaypoint(d.Lat, d.Lon), d.Confidence, scale)
		det.Label = d.Label
		frame.Detections = append(frame.Detections, det)
	}
	return frame
}

// FromFrame converts a frame to its wire form.
func FromFrame(f vision.Frame) FrameMsg {
	out := FrameMsg{
		Lat:        f.Position.Lat,
		Lon:        f.Position.Lon,
		Pitch:      f.Pitch,
		Yaw:        f.Yaw,
		Detections: make([]DetectionMsg, 0, len(f.Detections)),
	}
	if !f.Time.IsZero() {
		out.Time = f.Time.UnixMilli()
	}
	for _, d := range f.Detections {
		out.Detections = append(out.Detections, DetectionMsg{
			Lat:        d.Position.Lat,
			Lon:        d.Position.Lon,
			Confidence: d.Confidence,
			Label:      d.Label,
		})
	}
	return out
}

func getCurrentTimestamp() int64 {
	return time.Now().UnixMilli()
}
