// Package transceiver carries short best-effort notifications from the boat
// to the shore station and other boats, e.g. "buoy touched".
package transceiver

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Transceiver sends a notification. Delivery is best-effort: callers log
// errors and carry on.
type Transceiver interface {
	Send(message string) error
}

// Signal is the envelope put on the wire by every transceiver.
type Signal struct {
	ID        uuid.UUID `json:"id"`
	SenderID  string    `json:"sender_id"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
}

// NewSignal wraps a message with a fresh ID and the current time.
func NewSignal(senderID, message string) Signal {
	return Signal{
		ID:        uuid.New(),
		SenderID:  senderID,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Multi fans a message out to several transceivers.
type Multi []Transceiver

// Send delivers to every transceiver and joins their errors.
func (m Multi) Send(message string) error {
	var errs []error
	for _, t := range m {
		if t == nil {
			continue
		}
		if err := t.Send(message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogTransceiver only writes the message to the log. It is used when no
// radio link is configured.
type LogTransceiver struct{}

// Send implements Transceiver.
func (LogTransceiver) Send(message string) error {
	log.Printf("[SIGNAL] %s", message)
	return nil
}
