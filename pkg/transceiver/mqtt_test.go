package transceiver

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	timedOut bool
	err      error
}

func (t *fakeToken) Wait() bool                       { return !t.timedOut }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                     { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePublisher struct {
	connected bool
	token     *fakeToken
	topics    []string
	payloads  [][]byte
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	if p.token == nil {
		return &fakeToken{}
	}
	return p.token
}

func newTestMQTT(pub *fakePublisher, onSignal func(Signal)) *MQTTTransceiver {
	tr := NewMQTTTransceiver("boat-1", MQTTConfig{Topic: "sailbot/signals", Timeout: time.Second}, onSignal)
	tr.pub = pub
	return tr
}

func TestMQTTTransceiver_SendPublishesSignal(t *testing.T) {
	pub := &fakePublisher{connected: true}
	tr := newTestMQTT(pub, nil)

	if err := tr.Send("Sailbot touched the buoy!"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(pub.payloads) != 1 || pub.topics[0] != "sailbot/signals" {
		t.Fatalf("Expected one publish on sailbot/signals, got %v", pub.topics)
	}

	var sig Signal
	if err := json.Unmarshal(pub.payloads[0], &sig); err != nil {
		t.Fatalf("Payload is not a signal: %v", err)
	}
	if sig.SenderID != "boat-1" || sig.Message != "Sailbot touched the buoy!" {
		t.Errorf("Unexpected signal: %+v", sig)
	}
	if tr.GetStats()["sent"] != 1 {
		t.Errorf("Expected sent=1, got %v", tr.GetStats()["sent"])
	}
}

func TestMQTTTransceiver_SendFailures(t *testing.T) {
	tests := []struct {
		name string
		pub  *fakePublisher
		want string
	}{
		{"not connected", &fakePublisher{}, "not connected"},
		{"timeout", &fakePublisher{connected: true, token: &fakeToken{timedOut: true}}, "timeout"},
		{"broker error", &fakePublisher{connected: true, token: &fakeToken{err: errors.New("denied")}}, "denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestMQTT(tt.pub, nil)
			err := tr.Send("hello")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
			if tr.GetStats()["failed"] != 1 {
				t.Errorf("Expected failed=1, got %v", tr.GetStats()["failed"])
			}
		})
	}
}

func TestMQTTTransceiver_HandlePayload(t *testing.T) {
	var got []Signal
	tr := newTestMQTT(&fakePublisher{connected: true}, func(s Signal) { got = append(got, s) })

	other := NewSignal("boat-2", "on station")
	payload, _ := json.Marshal(other)
	tr.handlePayload(payload)
	tr.handlePayload(payload)

	own, _ := json.Marshal(NewSignal("boat-1", "echo"))
	tr.handlePayload(own)
	tr.handlePayload([]byte("not json"))

	if len(got) != 1 {
		t.Fatalf("Expected exactly one delivered signal, got %d", len(got))
	}
	if got[0].ID != other.ID {
		t.Errorf("Expected signal %s, got %s", other.ID, got[0].ID)
	}
}

func TestMQTTTransceiver_IgnoresOwnPublishedSignal(t *testing.T) {
	pub := &fakePublisher{connected: true}
	var got []Signal
	tr := newTestMQTT(pub, func(s Signal) { got = append(got, s) })

	if err := tr.Send("touched"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	tr.handlePayload(pub.payloads[0])

	if len(got) != 0 {
		t.Errorf("Own signal should not be delivered back, got %v", got)
	}
}
