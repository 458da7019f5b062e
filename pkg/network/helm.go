package network

import (
	"fmt"
	"log"
	"net"

	"github.com/heitortanoue/sailbot/pkg/geo"
	"github.com/heitortanoue/sailbot/pkg/protocol"
)

// HelmSender forwards decisions to the helm controller over UDP.
// A sender created with an empty address discards everything.
type HelmSender struct {
	boatID string
	conn   *net.UDPConn
	sent   int
}

// NewHelmSender dials addr.
func NewHelmSender(boatID, addr string) (*HelmSender, error) {
	if addr == "" {
		return &HelmSender{boatID: boatID}, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve helm address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial helm: %w", err)
	}
	return &HelmSender{boatID: boatID, conn: conn}, nil
}

// SendWaypoint sends the next target. A nil target tells the helm the event
// is over.
func (h *HelmSender) SendWaypoint(event, mode string, target *geo.Waypoint) error {
	if h == nil || h.conn == nil {
		return nil
	}
	data, err := protocol.Encode(protocol.CreateWaypointMessage(h.boatID, event, mode, target))
	if err != nil {
		return err
	}
	if _, err := h.conn.Write(data); err != nil {
		return fmt.Errorf("send to helm: %w", err)
	}
	h.sent++
	if target == nil {
		log.Printf("[HELM] %s finished", event)
	}
	return nil
}

// Sent returns the number of messages written.
func (h *HelmSender) Sent() int {
	if h == nil {
		return 0
	}
	return h.sent
}

// Close releases the socket.
func (h *HelmSender) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
