package daemon

import (
	"context"
	"github.com/ZilDuck/opentrade/internal/api"
	"github.com/ZilDuck/opentrade/internal/entity"
	"github.com/ZilDuck/opentrade/internal/event"
	"github.com/ZilDuck/opentrade/internal/ledger"
	"github.com/ZilDuck/opentrade/internal/protocol"
	"sync"
	"testing"
	"time"
)

type saleListener struct {
	sales chan entity.Sale
}

func (l saleListener) Listen(events *event.Manager) {
	events.AddEventListener(event.ListingPurchasedEvent, func(msg interface{}) {
		l.sales <- *msg.(entity.ListingEvent).Sale
	})
}

func TestExecuteSeedsDemoAndStops(t *testing.T) {
	p, err := protocol.Bootstrap(context.Background(), ledger.New())
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer p.Events.Close()

	listener := saleListener{make(chan entity.Sale, 1)}
	cfg := Config{ApiPort: "0", SeedDemo: true, Demo: protocol.DefaultDemoConfig()}
	d := NewDaemon(cfg, p, api.NewServer(p, nil, nil), nil, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.Execute(ctx)
	}()

	select {
	case sale := <-listener.sales:
		if sale.Royalty.IsZero() {
			t.Errorf("expected a royalty on the demo sale, got %+v", sale)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("demo sale was never published")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("execute returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

type bufferingListener struct {
	mu       sync.Mutex
	buffered int
	flushed  chan int
}

func (l *bufferingListener) Listen(events *event.Manager) {
	events.AddEventsListener(func(msg interface{}) {
		l.mu.Lock()
		l.buffered++
		l.mu.Unlock()
	}, event.ListingEvents()...)
}

func (l *bufferingListener) Flush() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.buffered
	l.buffered = 0
	if n != 0 {
		l.flushed <- n
	}
	return n
}

func TestBufferedListenersAreFlushed(t *testing.T) {
	p, err := protocol.Bootstrap(context.Background(), ledger.New())
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer p.Events.Close()

	listener := &bufferingListener{flushed: make(chan int, 16)}
	cfg := Config{ApiPort: "0", SeedDemo: true, FlushInterval: 10 * time.Millisecond, Demo: protocol.DefaultDemoConfig()}
	d := NewDaemon(cfg, p, api.NewServer(p, nil, nil), nil, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.Execute(ctx)
	}()

	select {
	case n := <-listener.flushed:
		if n == 0 {
			t.Error("flush reported nothing written")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("buffered events were never flushed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	if n := listener.Flush(); n != 0 {
		t.Errorf("%d events were left buffered after shutdown", n)
	}
}
