package system

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	events   *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(context.Context) error {
	*f.events = append(*f.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop(context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func TestManager_StartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&fakeService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s (all: %v)", i, events[i], want[i], events)
		}
	}
}

func TestManager_StartFailureUnwinds(t *testing.T) {
	var events []string
	m := NewManager()
	boom := errors.New("boom")
	_ = m.Register(&fakeService{name: "a", events: &events})
	_ = m.Register(&fakeService{name: "b", startErr: boom, events: &events})
	_ = m.Register(&fakeService{name: "c", events: &events})

	err := m.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
}

func TestManager_DuplicateName(t *testing.T) {
	var events []string
	m := NewManager()
	if err := m.Register(&fakeService{name: "dup", events: &events}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&fakeService{name: "dup", events: &events}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
