package webhook

import (
	"encoding/json"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNotifyPostsEvent(t *testing.T) {
	var mu sync.Mutex
	var received []entity.ListingEvent
	var keys []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e entity.ListingEvent
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, e)
		keys = append(keys, r.Header.Get(AccessKeyHeader))
		mu.Unlock()
	}))
	defer server.Close()

	events := event.NewManager()
	defer events.Close()

	s := NewService([]string{server.URL, server.URL}, "secret", NewClient(0))
	s.Listen(events)

	events.EmitEvent(event.ListingCreatedEvent, entity.ListingEvent{
		Action:  entity.ListingCreated,
		Listing: entity.Listing{Asset: ledger.NewGlobalID("resource_zil1abc", ledger.IntegerID(1))},
		TxID:    "tx1",
		Time:    time.Now(),
	})
	events.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected the event at both urls, got %d", len(received))
	}
	if received[0].TxID != "tx1" || received[0].Action != entity.ListingCreated || keys[0] != "secret" {
		t.Errorf("unexpected delivery %+v with key %q", received[0], keys[0])
	}
}

func TestNotifyFailsOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewService([]string{server.URL}, "", NewClient(0))
	if err := s.Notify(entity.ListingEvent{Action: entity.ListingCanceled}); err == nil {
		t.Error("expected a delivery error")
	}
}

func TestFailingUrlDoesNotStopDelivery(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	var mu sync.Mutex
	var delivered int
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}))
	defer healthy.Close()

	s := NewService([]string{failing.URL, healthy.URL, failing.URL}, "", NewClient(0))
	err := s.Notify(entity.ListingEvent{Action: entity.ListingCreated, TxID: "tx7"})
	if err == nil {
		t.Fatal("expected the failing urls to be reported")
	}
	if n := len(err.(interface{ Unwrap() []error }).Unwrap()); n != 2 {
		t.Errorf("expected two joined failures, got %d: %v", n, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Errorf("expected the healthy url to receive the event, got %d deliveries", delivered)
	}
}

func TestFailedDeliveryIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewService([]string{server.URL}, "", NewClient(0))
	s.NotifyFromEvent(entity.ListingEvent{Action: entity.ListingUpdated, TxID: "tx5"})
	s.NotifyFromEvent("not an event")

	failed := logs.FilterMessage("Webhook: Failed to deliver event").All()
	if len(failed) != 1 || failed[0].ContextMap()["txId"] != "tx5" {
		t.Errorf("expected one failed delivery log, got %+v", logs.All())
	}
	if logs.FilterMessage("Webhook: Unknown event payload").Len() != 1 {
		t.Error("expected the unknown payload to be logged")
	}
}
