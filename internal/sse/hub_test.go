package sse_test

import (
	"testing"
	"time"

	"github.com/YannKr/jpegforensics/internal/sse"
)

func recv(t *testing.T, ch <-chan sse.Event) sse.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return sse.Event{}
}

func TestPublishReachesSubscribers(t *testing.T) {
	h := sse.New()
	topic := sse.AnalysisTopic("a1")
	a, unsubA := h.Subscribe(topic)
	defer unsubA()
	b, unsubB := h.Subscribe(topic)
	defer unsubB()

	h.Publish(topic, sse.Event{Type: "progress", Data: `{"progress":10}`})
	for _, ch := range []<-chan sse.Event{a, b} {
		if ev := recv(t, ch); ev.Type != "progress" {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestLateSubscriberGetsLastEvent(t *testing.T) {
	h := sse.New()
	topic := sse.AnalysisTopic("a2")
	h.Publish(topic, sse.Event{Type: "progress", Data: "1"})
	h.Publish(topic, sse.Event{Type: "done", Data: "2"})

	ch, unsub := h.Subscribe(topic)
	defer unsub()
	if ev := recv(t, ch); ev.Type != "done" || ev.Data != "2" {
		t.Errorf("replayed %+v, want the done event", ev)
	}

	h.Forget(topic)
	ch2, unsub2 := h.Subscribe(topic)
	defer unsub2()
	select {
	case ev := <-ch2:
		t.Errorf("forgotten topic replayed %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := sse.New()
	topic := sse.AnalysisTopic("a3")
	ch, unsub := h.Subscribe(topic)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	h.Publish(topic, sse.Event{Type: "progress"})
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := sse.New()
	topic := sse.AnalysisTopic("a4")
	_, unsub := h.Subscribe(topic)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(topic, sse.Event{Type: "progress"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}
