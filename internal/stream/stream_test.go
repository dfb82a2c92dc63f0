package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	s.Publish(Event{Action: "LOGIN", ActorID: "user-1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case evt := <-ch:
			if evt.Action != "LOGIN" || evt.ActorID != "user-1" {
				t.Fatalf("subscriber %s got %+v", name, evt)
			}
			if evt.Timestamp.IsZero() {
				t.Fatalf("subscriber %s: timestamp not stamped", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the event", name)
		}
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after context end")
	}
}

func TestPublishDropsSlowSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	// Fill past the buffer; extra events must be dropped without blocking.
	for i := 0; i < 64; i++ {
		s.Publish(Event{Action: "LOGIN"})
	}
	if got := len(ch); got != cap(ch) {
		t.Fatalf("buffered = %d, want %d", got, cap(ch))
	}
}
