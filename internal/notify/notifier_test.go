package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSender records deliveries and optionally fails every Send.
type fakeSender struct {
	mu    sync.Mutex
	name  string
	err   error
	calls []string // "title|message"
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, title+"|"+message)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNotify_ForwardsAllowedEvent(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{"sync_failed"}, testLogger())

	if err := n.Notify(context.Background(), "sync_failed", "Sync Failed", "details"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if s.sent() != 1 {
		t.Fatalf("sends = %d, want 1", s.sent())
	}
	if s.calls[0] != "Sync Failed|details" {
		t.Errorf("delivery = %q, want title and message", s.calls[0])
	}
}

func TestNotify_FiltersDisallowedEvent(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{"sync_failed"}, testLogger())

	if err := n.Notify(context.Background(), "venue_degraded", "Degraded", "details"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if s.sent() != 0 {
		t.Errorf("sends = %d, want filtered event to be dropped", s.sent())
	}
}

func TestNotify_EmptyEventListAllowsAll(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	for _, event := range []string{"sync_failed", "venue_degraded", "anything"} {
		if err := n.Notify(context.Background(), event, "t", "m"); err != nil {
			t.Fatalf("Notify(%s) error = %v", event, err)
		}
	}
	if s.sent() != 3 {
		t.Errorf("sends = %d, want all 3 events delivered", s.sent())
	}
}

func TestNotify_TrimsConfiguredEventNames(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{" sync_failed "}, testLogger())

	if err := n.Notify(context.Background(), "sync_failed", "t", "m"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if s.sent() != 1 {
		t.Errorf("sends = %d, want padded config entry to match", s.sent())
	}
}

func TestNotifyAll_BypassesFilter(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{"sync_failed"}, testLogger())

	if err := n.NotifyAll(context.Background(), "Shutdown", "bye"); err != nil {
		t.Fatalf("NotifyAll() error = %v", err)
	}
	if s.sent() != 1 {
		t.Errorf("sends = %d, want 1 despite filter", s.sent())
	}
}

func TestNotify_SenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "discord", err: errors.New("webhook gone")}
	good := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), "sync_failed", "t", "m")
	if err == nil {
		t.Fatal("Notify() = nil, want combined error")
	}
	if !strings.Contains(err.Error(), "1 sender(s) failed") {
		t.Errorf("error = %v, want sender failure count", err)
	}
	if !strings.Contains(err.Error(), "discord: webhook gone") {
		t.Errorf("error = %v, want failing sender named", err)
	}
	if good.sent() != 1 {
		t.Errorf("good sender sends = %d, want delivery despite sibling failure", good.sent())
	}
}

func TestNotify_NoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	if err := n.Notify(context.Background(), "sync_failed", "t", "m"); err != nil {
		t.Errorf("Notify() with no senders = %v, want nil", err)
	}
}

func TestDiscordSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	if err := d.Send(context.Background(), "Sync Failed", "2 venues down"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got["content"] != "**Sync Failed**\n2 venues down" {
		t.Errorf("content = %q, want bold title over message", got["content"])
	}
}

func TestPostJSON_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := postJSON(context.Background(), srv.Client(), "discord", srv.URL, map[string]string{"content": "x"})
	if err == nil {
		t.Fatal("postJSON() = nil, want error on 429")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %v, want status and body excerpt", err)
	}
}
