package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/protocol"
	"github.com/heitortanoue/sailbot/pkg/vision"
)

const defaultVisionTimeout = 5 * time.Second

// VisionClient talks to the camera process over UDP request/reply and
// implements vision.Camera.
//
// Requests are serialised; replies whose request ID does not match the
// pending request are discarded as stale.
type VisionClient struct {
	boatID  string
	conn    *net.UDPConn
	timeout time.Duration
	scale   vision.Scale

	mutex    sync.Mutex // one request in flight
	requests atomic.Int64
	timeouts atomic.Int64
	stale    atomic.Int64
}

// NewVisionClient dials the vision process at addr. timeout bounds each
// request; zero uses a default. scale is the confidence scale the process
// reports on when a reply does not declare one.
func NewVisionClient(boatID, addr string, timeout time.Duration, scale vision.Scale) (*VisionClient, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve vision address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial vision: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}
	if scale <= 0 {
		scale = vision.UnitScale
	}
	log.Printf("[VISION] Client connected to %s (confidence scale %g)", addr, float64(scale))
	return &VisionClient{boatID: boatID, conn: conn, timeout: timeout, scale: scale}, nil
}

// Survey implements vision.Camera.
func (c *VisionClient) Survey(ctx context.Context, images int, pitch, servoRange float64) ([]vision.Frame, error) {
	reply, err := c.roundTrip(ctx, protocol.CreateSurveyMessage(c.boatID, images, pitch, servoRange))
	if err != nil {
		return nil, fmt.Errorf("survey: %w", err)
	}
	return c.framesFrom(reply)
}

// Capture implements vision.Camera.
func (c *VisionClient) Capture(ctx context.Context) (vision.Frame, error) {
	reply, err := c.roundTrip(ctx, protocol.CreateCaptureMessage(c.boatID))
	if err != nil {
		return vision.Frame{}, fmt.Errorf("capture: %w", err)
	}
	frames, err := c.framesFrom(reply)
	if err != nil {
		return vision.Frame{}, err
	}
	if len(frames) == 0 {
		return vision.Frame{}, vision.ErrNoFrame
	}
	return frames[0], nil
}

// Focus implements vision.Camera. Any failure is reported as a
// *vision.FocusError.
func (c *VisionClient) Focus(ctx context.Context, target geo.Waypoint) error {
	reply, err := c.roundTrip(ctx, protocol.CreateFocusMessage(c.boatID, target))
	if err != nil {
		return &vision.FocusError{Target: target, Reason: err.Error()}
	}
	switch reply.Type {
	case protocol.FocusOKType:
		return nil
	case protocol.FocusFailedType, protocol.ErrorType:
		reason, _ := protocol.ParseErrorReason(reply)
		return &vision.FocusError{Target: target, Reason: reason}
	default:
		return &vision.FocusError{Target: target, Reason: fmt.Sprintf("unexpected reply %s", reply.Type)}
	}
}

// framesFrom normalises detection confidences once, at ingestion.
func (c *VisionClient) framesFrom(reply protocol.ControlMessage) ([]vision.Frame, error) {
	if reason, ok := protocol.ParseErrorReason(reply); ok {
		return nil, fmt.Errorf("%w: %s", vision.ErrNoFrame, reason)
	}
	frames, ok := protocol.ParseFramesMessage(reply, c.scale)
	if !ok {
		return nil, fmt.Errorf("unexpected reply %s", reply.Type)
	}
	return frames, nil
}

// roundTrip sends req and waits for the reply carrying its request ID.
func (c *VisionClient) roundTrip(ctx context.Context, req protocol.ControlMessage) (protocol.ControlMessage, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.requests.Add(1)

	data, err := protocol.Encode(req)
	if err != nil {
		return protocol.ControlMessage{}, err
	}

	deadline := time.Now().Add(c.timeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
		ctxBound = true
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.ControlMessage{}, err
	}

	if _, err := c.conn.Write(data); err != nil {
		return protocol.ControlMessage{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	// unblock the read when ctx is cancelled; a callback that already
	// started must finish before the next request arms its own deadline
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		c.conn.SetReadDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	buffer := make([]byte, 64*1024)
	for {
		n, err := c.conn.Read(buffer)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return protocol.ControlMessage{}, ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if ctxBound {
					// the socket can expire just before ctx does
					return protocol.ControlMessage{}, context.DeadlineExceeded
				}
				c.timeouts.Add(1)
				return protocol.ControlMessage{}, fmt.Errorf("%s timed out after %v", req.Type, c.timeout)
			}
			return protocol.ControlMessage{}, fmt.Errorf("read reply: %w", err)
		}

		reply, err := protocol.Decode(buffer[:n])
		if err != nil {
			log.Printf("[VISION] Ignoring malformed reply: %v", err)
			continue
		}
		if reply.RequestID != req.RequestID {
			c.stale.Add(1)
			continue
		}
		return reply, nil
	}
}

// Close releases the socket.
func (c *VisionClient) Close() error {
	return c.conn.Close()
}

// GetStats returns client statistics.
func (c *VisionClient) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"remote":   c.conn.RemoteAddr().String(),
		"requests": c.requests.Load(),
		"timeouts": c.timeouts.Load(),
		"stale":    c.stale.Load(),
	}
}

var _ vision.Camera = (*VisionClient)(nil)
