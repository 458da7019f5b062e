package network

import (
	"fmt"
	"log"
	"net"
	"sync"
)

// MessageProcessor handles a datagram received by the UDPServer.
type MessageProcessor interface {
	ProcessMessage(data []byte, senderIP string)
}

// UDPServer listens for sensor datagrams (position fixes, wind readings) and
// hands each one to a MessageProcessor.
type UDPServer struct {
	conn      *net.UDPConn
	processor MessageProcessor
	boatID    string
	port      int

	mutex    sync.RWMutex
	running  bool
	received int
}

// NewUDPServer creates a server bound to port once started. Port 0 picks a
// free port.
func NewUDPServer(boatID string, port int, processor MessageProcessor) *UDPServer {
	return &UDPServer{
		boatID:    boatID,
		port:      port,
		processor: processor,
	}
}

// Start binds the socket and starts the read loop.
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("start UDP server: %w", err)
	}

	s.mutex.Lock()
	s.conn = conn
	s.port = conn.LocalAddr().(*net.UDPAddr).Port
	s.running = true
	s.mutex.Unlock()

	log.Printf("[UDP] Sensor listener on port %d", s.port)
	go s.handleIncomingPackets(conn)
	return nil
}

// Stop closes the socket.
func (s *UDPServer) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.conn.Close()
}

// Port returns the bound port.
func (s *UDPServer) Port() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.port
}

func (s *UDPServer) isRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

func (s *UDPServer) handleIncomingPackets(conn *net.UDPConn) {
	buffer := make([]byte, 2048)

	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if !s.isRunning() {
				return
			}
			log.Printf("[UDP] Read error: %v", err)
			continue
		}

		s.mutex.Lock()
		s.received++
		s.mutex.Unlock()

		if s.processor == nil {
			continue
		}
		// processed inline so readings apply in arrival order
		data := make([]byte, n)
		copy(data, buffer[:n])
		s.processor.ProcessMessage(data, addr.IP.String())
	}
}

// GetStats returns server statistics.
func (s *UDPServer) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return map[string]interface{}{
		"udp_port": s.port,
		"running":  s.running,
		"boat_id":  s.boatID,
		"received": s.received,
	}
}
