package network

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/heitortanoue/sailbot/pkg/protocol"
)

// fakeVision is a scripted vision process on loopback.
type fakeVision struct {
	conn  *net.UDPConn
	reply func(req protocol.ControlMessage) []protocol.ControlMessage

	mutex    sync.Mutex
	requests []protocol.ControlMessage
}

func startFakeVision(t *testing.T, reply func(req protocol.ControlMessage) []protocol.ControlMessage) *fakeVision {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to start fake vision: %v", err)
	}
	fv := &fakeVision{conn: conn, reply: reply}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buffer := make([]byte, 64*1024)
		for {
			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				return
			}
			req, err := protocol.Decode(buffer[:n])
			if err != nil {
				continue
			}
			fv.mutex.Lock()
			fv.requests = append(fv.requests, req)
			fv.mutex.Unlock()

			for _, msg := range fv.reply(req) {
				data, _ := protocol.Encode(msg)
				conn.WriteToUDP(data, addr)
			}
		}
	}()
	return fv
}

func (fv *fakeVision) addr() string {
	return fv.conn.LocalAddr().String()
}

func (fv *fakeVision) received() []protocol.ControlMessage {
	fv.mutex.Lock()
	defer fv.mutex.Unlock()
	out := make([]protocol.ControlMessage, len(fv.requests))
	copy(out, fv.requests)
	return out
}

// recordingProcessor collects datagrams handed over by the UDPServer.
type recordingProcessor struct {
	mutex sync.Mutex
	data  [][]byte
	got   chan struct{}
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{got: make(chan struct{}, 10)}
}

func (p *recordingProcessor) ProcessMessage(data []byte, senderIP string) {
	p.mutex.Lock()
	p.data = append(p.data, data)
	p.mutex.Unlock()
	p.got <- struct{}{}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for datagram")
	}
}
