package transceiver

import (
	"errors"
	"testing"
)

type recorder struct {
	messages []string
	err      error
}

func (r *recorder) Send(message string) error {
	r.messages = append(r.messages, message)
	return r.err
}

func TestMulti_SendsToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, nil, b}

	if err := m.Send("touched"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Errorf("Expected both transceivers to receive, got %v and %v", a.messages, b.messages)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	errA := errors.New("radio down")
	a, b := &recorder{err: errA}, &recorder{}

	err := Multi{a, b}.Send("touched")
	if !errors.Is(err, errA) {
		t.Errorf("Expected joined error to wrap %v, got %v", errA, err)
	}
	if len(b.messages) != 1 {
		t.Error("A failing transceiver should not stop the others")
	}
}

func TestNewSignal(t *testing.T) {
	s1 := NewSignal("boat-1", "hi")
	s2 := NewSignal("boat-1", "hi")
	if s1.ID == s2.ID {
		t.Error("Expected unique signal IDs")
	}
	if s1.Timestamp == 0 {
		t.Error("Expected timestamp to be set")
	}
	if err := (LogTransceiver{}).Send("hi"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
