package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "record.created", Data: RecordEvent{Type: "Task", ID: "a"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: record.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishRecordEvent_CollectionThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger collection.updated.
	b.PublishRecordEvent("created", "Task", "a")
	// Second event for the same type immediately should NOT trigger another.
	b.PublishRecordEvent("changed", "Task", "b")
	// A different type has its own throttle.
	b.PublishRecordEvent("deleted", "Project", "p")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	collectionCount := 0
	recordCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "collection.updated") {
				collectionCount++
			} else {
				recordCount++
			}
		default:
			break loop
		}
	}

	if recordCount != 3 {
		t.Errorf("record events = %d, want 3", recordCount)
	}
	if collectionCount != 2 {
		t.Errorf("collection events = %d, want 2 (throttled per type)", collectionCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "record.changed", Data: RecordEvent{Type: "Task", ID: "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: record.changed") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "record.changed", Data: RecordEvent{Type: "Task", ID: "x"}})
	b.PublishRecordEvent("changed", "Task", "x")
}

func TestFormat(t *testing.T) {
	raw, err := Format(Event{Type: "record.deleted", Data: RecordEvent{Type: "Task", ID: "9"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "event: record.deleted\ndata: {\"type\":\"Task\",\"id\":\"9\"}\n\n"
	if string(raw) != want {
		t.Errorf("Format = %q, want %q", raw, want)
	}
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	tasks := b.Subscribe("Task")
	defer b.Unsubscribe(tasks)
	all := b.Subscribe()
	defer b.Unsubscribe(all)

	b.PublishRecordEvent("created", "Project", "p")
	b.PublishRecordEvent("created", "Task", "a")
	b.Publish(Event{Type: "server.notice", Data: map[string]string{"msg": "hi"}})

	time.Sleep(50 * time.Millisecond)
	var got []string
	for len(tasks) > 0 {
		got = append(got, string(<-tasks))
	}
	if len(got) != 3 {
		t.Fatalf("Task subscriber got %d frames, want 3: %q", len(got), got)
	}
	for _, f := range got {
		if strings.Contains(f, `"type":"Project"`) {
			t.Errorf("Task subscriber received a Project frame: %q", f)
		}
	}
	if len(all) != 5 {
		t.Errorf("unfiltered subscriber got %d frames, want 5", len(all))
	}
}

func TestPublishRecordEvent_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRecordEvent("renamed", "Task", "a")
	time.Sleep(50 * time.Millisecond)
	if n := len(ch); n != 0 {
		t.Errorf("got %d frames for an unknown kind, want 0", n)
	}
}
