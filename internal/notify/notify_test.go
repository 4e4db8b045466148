package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mitinsharma/serverstriker/internal/alert"
	"github.com/mitinsharma/serverstriker/internal/utils"
)

func testEvent() alert.Event {
	return alert.Event{
		ID:        "test-id",
		Check:     "cpu",
		Kind:      alert.EventFired,
		Severity:  alert.SeverityWarning,
		Message:   "🔥 High CPU Usage: 96.0%",
		Value:     96,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testNotifier(url string) *Notifier {
	return New(Options{
		URL:       url,
		Server:    "web-01",
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
		Timeout:   time.Second,
	}, utils.NewLogger(""))
}

func TestNotifyDeliversPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Server != "web-01" {
		t.Fatalf("expected server web-01, got %q", got.Server)
	}
	if got.Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", got.Timestamp)
	}
	if got.Message != "🔥 High CPU Usage: 96.0%" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if got.Severity != "warning" {
		t.Fatalf("unexpected severity %q", got.Severity)
	}
}

func TestNotifyRetriesExactlyConfiguredAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).Notify(context.Background(), testEvent())
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", n)
	}
}

func TestNotifyRecoversAfterTransientFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("expected recovery on second attempt, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestNotifyBlankURLIsNoop(t *testing.T) {
	if err := testNotifier("").Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("blank URL should be a noop, got %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := PayloadFor("db-02", testEvent())
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Payload
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Server != p.Server || back.Timestamp != p.Timestamp || back.Message != p.Message {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, p)
	}
}
