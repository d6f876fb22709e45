package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTracker_GetStats(t *testing.T) {
	tracker := NewTracker(nil)

	tracker.Track("order_created", map[string]any{"total": 7.0})
	tracker.Track("order_created", nil)
	tracker.Track("orders_cleared", nil)

	stats := tracker.GetStats()

	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByName["order_created"] != 2 {
		t.Errorf("order_created = %d, want 2", stats.ByName["order_created"])
	}
	if stats.ByName["orders_cleared"] != 1 {
		t.Errorf("orders_cleared = %d, want 1", stats.ByName["orders_cleared"])
	}
	if len(stats.Recent) != 3 {
		t.Errorf("recent = %d, want 3", len(stats.Recent))
	}
	if stats.Recent[2].Name != "orders_cleared" {
		t.Errorf("last recent = %q, want orders_cleared", stats.Recent[2].Name)
	}
}

func TestTracker_CapsStoredEvents(t *testing.T) {
	tracker := NewTracker(nil)

	for i := 0; i < maxEvents+50; i++ {
		tracker.Track(fmt.Sprintf("event_%d", i), nil)
	}

	stats := tracker.GetStats()

	if stats.Total != maxEvents {
		t.Errorf("total = %d, want %d", stats.Total, maxEvents)
	}
	if len(stats.Recent) != 10 {
		t.Errorf("recent = %d, want 10", len(stats.Recent))
	}
	last := fmt.Sprintf("event_%d", maxEvents+49)
	if stats.Recent[9].Name != last {
		t.Errorf("last recent = %q, want %q", stats.Recent[9].Name, last)
	}
}

func TestTracker_FlushSendsPending(t *testing.T) {
	var received []Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			t.Errorf("path = %q, want /api/events", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal events: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tracker := NewTracker(NewClient(srv.URL))
	tracker.Track("order_created", nil)
	tracker.Track("orders_imported", nil)

	tracker.flush(context.Background())

	if len(received) != 2 {
		t.Fatalf("received = %d events, want 2", len(received))
	}
	if received[0].Name != "order_created" || received[1].Name != "orders_imported" {
		t.Errorf("received = %v, %v", received[0].Name, received[1].Name)
	}

	tracker.mu.Lock()
	pending := len(tracker.pending)
	tracker.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending = %d after flush, want 0", pending)
	}
}

func TestTracker_FlushRequeuesOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tracker := NewTracker(NewClient(srv.URL))
	tracker.Track("order_created", nil)

	tracker.flush(context.Background())

	tracker.mu.Lock()
	pending := len(tracker.pending)
	tracker.mu.Unlock()
	if pending != 1 {
		t.Errorf("pending = %d after failed flush, want 1", pending)
	}
}

func TestClient_SendEventsNotConfigured(t *testing.T) {
	c := &Client{}
	if err := c.SendEvents(context.Background(), []Event{{Name: "x"}}); err == nil {
		t.Error("expected error for unconfigured client")
	}
}
