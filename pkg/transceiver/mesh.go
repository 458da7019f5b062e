package transceiver

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"
)

// MeshConfig configures the boat-to-boat gossip mesh.
type MeshConfig struct {
	NodeID         string   // unique boat ID (e.g. "sailbot-1")
	BindAddr       string   // e.g. "0.0.0.0"
	BindPort       int      // 0 picks a free port
	Seeds          []string // host:port of known peers
	RetransmitMult int
}

// meshEvents logs membership changes.
type meshEvents struct {
	nodeID string
}

func (e *meshEvents) NotifyJoin(n *memberlist.Node) {
	if n.Name != e.nodeID {
		log.Printf("[MESH] Boat %s (%s) joined", n.Name, n.Address())
	}
}

func (e *meshEvents) NotifyLeave(n *memberlist.Node) {
	log.Printf("[MESH] Boat %s left", n.Name)
}

func (e *meshEvents) NotifyUpdate(n *memberlist.Node) {}

// signalBroadcast is a queued signal. Signals never invalidate each other.
type signalBroadcast struct {
	msg []byte
}

func (b *signalBroadcast) Invalidates(memberlist.Broadcast) bool { return false }
func (b *signalBroadcast) Message() []byte                       { return b.msg }
func (b *signalBroadcast) Finished()                             {}

// meshDelegate receives gossip payloads. Each new signal is handed to the
// handler once and re-queued so it spreads to boats out of direct range.
type meshDelegate struct {
	nodeID     string
	cache      *DeduplicationCache
	broadcasts *memberlist.TransmitLimitedQueue
	handler    func(Signal)

	mutex    sync.Mutex
	received int
	dropped  int
}

func (d *meshDelegate) NodeMeta(limit int) []byte { return nil }

func (d *meshDelegate) NotifyMsg(buf []byte) {
	var sig Signal
	if err := json.Unmarshal(buf, &sig); err != nil {
		log.Printf("[MESH] Ignoring malformed payload (%d bytes): %v", len(buf), err)
		return
	}
	if d.cache.Seen(sig.ID) {
		d.mutex.Lock()
		d.dropped++
		d.mutex.Unlock()
		return
	}

	// relay before handling; buf is owned by memberlist
	msg := make([]byte, len(buf))
	copy(msg, buf)
	d.broadcasts.QueueBroadcast(&signalBroadcast{msg: msg})

	if sig.SenderID == d.nodeID {
		return
	}

	d.mutex.Lock()
	d.received++
	d.mutex.Unlock()

	log.Printf("[MESH] Signal from %s: %s", sig.SenderID, sig.Message)
	if d.handler != nil {
		d.handler(sig)
	}
}

func (d *meshDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return d.broadcasts.GetBroadcasts(overhead, limit)
}

func (d *meshDelegate) LocalState(join bool) []byte { return nil }

func (d *meshDelegate) MergeRemoteState(buf []byte, join bool) {}

// MeshTransceiver gossips signals to nearby boats over a SWIM cluster.
type MeshTransceiver struct {
	ml       *memberlist.Memberlist
	nodeID   string
	delegate *meshDelegate

	mutex sync.Mutex
	sent  int
}

// NewMeshTransceiver joins the mesh. handler receives signals from other
// boats and may be nil.
func NewMeshTransceiver(cfg MeshConfig, handler func(Signal)) (*MeshTransceiver, error) {
	mlc := memberlist.DefaultLANConfig()
	mlc.Name = cfg.NodeID
	mlc.BindAddr = cfg.BindAddr
	mlc.BindPort = cfg.BindPort
	mlc.AdvertisePort = cfg.BindPort
	mlc.Events = &meshEvents{nodeID: cfg.NodeID}

	mlc.PushPullInterval = 30 * time.Second
	mlc.ProbeTimeout = time.Second
	mlc.ProbeInterval = 5 * time.Second

	if cfg.RetransmitMult <= 0 {
		cfg.RetransmitMult = mlc.RetransmitMult
	}

	// gossip may start before Create returns
	var created atomic.Pointer[memberlist.Memberlist]
	delegate := &meshDelegate{
		nodeID:  cfg.NodeID,
		cache:   NewDeduplicationCache(0),
		handler: handler,
		broadcasts: &memberlist.TransmitLimitedQueue{
			NumNodes: func() int {
				if ml := created.Load(); ml != nil {
					return ml.NumMembers()
				}
				return 1
			},
			RetransmitMult: cfg.RetransmitMult,
		},
	}
	mlc.Delegate = delegate

	ml, err := memberlist.Create(mlc)
	if err != nil {
		return nil, fmt.Errorf("create mesh: %w", err)
	}
	created.Store(ml)

	m := &MeshTransceiver{ml: ml, nodeID: cfg.NodeID, delegate: delegate}

	seeds := make([]string, 0, len(cfg.Seeds))
	for _, seed := range cfg.Seeds {
		if seed != "" && seed != cfg.NodeID {
			seeds = append(seeds, seed)
		}
	}
	if len(seeds) > 0 {
		if err := m.Join(seeds...); err != nil {
			log.Printf("[MESH] Warning: %v", err)
		}
	}

	return m, nil
}

// Join contacts the given peers.
func (m *MeshTransceiver) Join(addrs ...string) error {
	n, err := m.ml.Join(addrs)
	if err != nil {
		return fmt.Errorf("join %v: %w", addrs, err)
	}
	log.Printf("[MESH] Joined %d boats via %v", n, addrs)
	return nil
}

// Send implements Transceiver. The signal is delivered directly to every
// live boat and also queued for gossip.
func (m *MeshTransceiver) Send(message string) error {
	sig := NewSignal(m.nodeID, message)
	m.delegate.cache.Seen(sig.ID)

	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	m.delegate.broadcasts.QueueBroadcast(&signalBroadcast{msg: payload})

	var firstErr error
	for _, node := range m.LiveMembers() {
		if err := m.ml.SendBestEffort(node, payload); err != nil {
			log.Printf("[MESH] Failed to reach %s: %v", node.Name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("send to %s: %w", node.Name, err)
			}
		}
	}

	m.mutex.Lock()
	m.sent++
	m.mutex.Unlock()
	return firstErr
}

// LiveMembers returns the other boats currently alive in the mesh.
func (m *MeshTransceiver) LiveMembers() []*memberlist.Node {
	all := m.ml.Members()
	live := make([]*memberlist.Node, 0, len(all))
	for _, member := range all {
		if member.Name != m.nodeID {
			live = append(live, member)
		}
	}
	return live
}

// LocalAddr returns the host:port other boats can join.
func (m *MeshTransceiver) LocalAddr() string {
	return m.ml.LocalNode().Address()
}

// Close leaves the mesh and shuts the transport down.
func (m *MeshTransceiver) Close() error {
	if err := m.ml.Leave(5 * time.Second); err != nil {
		log.Printf("[MESH] Leave failed: %v", err)
	}
	if err := m.ml.Shutdown(); err != nil {
		return fmt.Errorf("shutdown mesh: %w", err)
	}
	return nil
}

// GetStats returns mesh statistics.
func (m *MeshTransceiver) GetStats() map[string]interface{} {
	m.mutex.Lock()
	sent := m.sent
	m.mutex.Unlock()

	m.delegate.mutex.Lock()
	defer m.delegate.mutex.Unlock()
	return map[string]interface{}{
		"node_id":       m.nodeID,
		"total_members": m.ml.NumMembers(),
		"live_members":  len(m.LiveMembers()),
		"local_addr":    m.LocalAddr(),
		"sent":          sent,
		"received":      m.delegate.received,
		"duplicates":    m.delegate.dropped,
		"queued":        m.delegate.broadcasts.NumQueued(),
	}
}
