package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribePublishReceive(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe()
	b.Publish(Event{Type: "reminder.delivered", Data: map[string]string{"note": "a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: reminder.delivered") {
			t.Errorf("missing event line: %q", s)
		}
		if !strings.Contains(s, `"note":"a.md"`) {
			t.Errorf("missing payload: %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe()
	b.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestClientCount(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	if n := b.ClientCount(); n != 0 {
		t.Errorf("initial count = %d", n)
	}
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	b.Unsubscribe(ch1)
	b.Unsubscribe(ch2)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("count after unsubscribe = %d", n)
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBroker()
	b.Close()
	b.Close() // must not panic

	// Operations on a closed broker are no-ops.
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after close should return closed channel")
	}
	b.Publish(Event{Type: "x"})
	if n := b.ClientCount(); n != 0 {
		t.Errorf("count = %d", n)
	}
}

func TestServeHTTPStreamsEvents(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	req := httptest.NewRequest("GET", "/api/events", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.ServeHTTP(rec, req)
	}()

	// Wait for the subscription to land, then publish.
	deadline := time.After(2 * time.Second)
	for b.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never subscribed")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	b.Publish(Event{Type: "scan.finished", Data: map[string]int{"delivered": 1}})

	<-done
	body := rec.Body.String()
	if !strings.Contains(body, "event: scan.finished") {
		t.Errorf("body = %q", body)
	}
}
