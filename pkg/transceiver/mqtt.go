package transceiver

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes the broker link to the shore station.
type MQTTConfig struct {
	Broker          string
	Port            int
	Topic           string
	Username        string
	Password        string
	UseTLS          bool
	InsecureSkipTLS bool
	QoS             byte
	Timeout         time.Duration
}

// publisher is the part of mqtt.Client used to send signals.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// MQTTTransceiver publishes signals as JSON on a broker topic and listens on
// the same topic for signals from other boats.
type MQTTTransceiver struct {
	cfg      MQTTConfig
	senderID string
	client   mqtt.Client
	pub      publisher
	cache    *DeduplicationCache
	onSignal func(Signal)

	mutex    sync.Mutex
	sent     int
	failed   int
	received int
}

// NewMQTTTransceiver creates a transceiver; call Connect before Send.
// onSignal may be nil.
func NewMQTTTransceiver(senderID string, cfg MQTTConfig, onSignal func(Signal)) *MQTTTransceiver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MQTTTransceiver{
		cfg:      cfg,
		senderID: senderID,
		cache:    NewDeduplicationCache(0),
		onSignal: onSignal,
	}
}

// Connect dials the broker with auto reconnect enabled.
func (t *MQTTTransceiver) Connect() error {
	opts := mqtt.NewClientOptions()

	scheme := "tcp"
	if t.cfg.UseTLS {
		scheme = "tls"
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: t.cfg.InsecureSkipTLS})
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, t.cfg.Broker, t.cfg.Port)
	opts.AddBroker(brokerURL)

	clientID := fmt.Sprintf("sailbot-%s-%d", t.senderID, time.Now().Unix())
	opts.SetClientID(clientID)

	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(t.cfg.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = t.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v (will auto-reconnect)", err)
	}

	client := mqtt.NewClient(opts)
	log.Printf("[MQTT] Connecting to %s as %s...", brokerURL, clientID)

	token := client.Connect()
	if !token.WaitTimeout(t.cfg.Timeout) {
		return fmt.Errorf("MQTT connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect failed: %w", err)
	}

	t.client = client
	t.pub = client
	return nil
}

func (t *MQTTTransceiver) onConnect(client mqtt.Client) {
	log.Printf("[MQTT] Connected")

	token := client.Subscribe(t.cfg.Topic, t.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		t.handlePayload(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("[MQTT] Subscribe timeout for %s", t.cfg.Topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("[MQTT] Subscribe error: %v", err)
		return
	}
	log.Printf("[MQTT] Subscribed to %s", t.cfg.Topic)
}

// handlePayload decodes an incoming signal, dropping our own echoes and
// duplicates.
func (t *MQTTTransceiver) handlePayload(payload []byte) {
	var sig Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		log.Printf("[MQTT] Ignoring malformed signal: %v", err)
		return
	}
	if t.cache.Seen(sig.ID) || sig.SenderID == t.senderID {
		return
	}

	t.mutex.Lock()
	t.received++
	t.mutex.Unlock()

	log.Printf("[MQTT] Signal from %s: %s", sig.SenderID, sig.Message)
	if t.onSignal != nil {
		t.onSignal(sig)
	}
}

// Send implements Transceiver.
func (t *MQTTTransceiver) Send(message string) error {
	if t.pub == nil || !t.pub.IsConnected() {
		t.recordFailure()
		return fmt.Errorf("MQTT not connected")
	}

	sig := NewSignal(t.senderID, message)
	t.cache.Seen(sig.ID)
	payload, err := json.Marshal(sig)
	if err != nil {
		t.recordFailure()
		return fmt.Errorf("encode signal: %w", err)
	}

	token := t.pub.Publish(t.cfg.Topic, t.cfg.QoS, false, payload)
	if !token.WaitTimeout(t.cfg.Timeout) {
		t.recordFailure()
		return fmt.Errorf("MQTT publish timeout on %s", t.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		t.recordFailure()
		return fmt.Errorf("MQTT publish failed: %w", err)
	}

	t.mutex.Lock()
	t.sent++
	t.mutex.Unlock()
	log.Printf("[MQTT] Published signal %s on %s", sig.ID.String()[:8], t.cfg.Topic)
	return nil
}

func (t *MQTTTransceiver) recordFailure() {
	t.mutex.Lock()
	t.failed++
	t.mutex.Unlock()
}

// Close disconnects from the broker.
func (t *MQTTTransceiver) Close() {
	if t.client != nil && t.client.IsConnected() {
		t.client.Disconnect(1000)
	}
}

// GetStats returns transceiver statistics.
func (t *MQTTTransceiver) GetStats() map[string]interface{} {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return map[string]interface{}{
		"broker":   fmt.Sprintf("%s:%d", t.cfg.Broker, t.cfg.Port),
		"topic":    t.cfg.Topic,
		"sent":     t.sent,
		"failed":   t.failed,
		"received": t.received,
	}
}
