package event

import (
	"github.com/ZilDuck/opentrade/internal/ledger"
	"go.uber.org/zap"
	"sync"
)

// Manager fans committed events out to listeners. Each listener runs on its
// own goroutine and sees its events in emission order.
type Manager struct {
	mu        sync.RWMutex
	listeners []*Listener
	pending   sync.WaitGroup
}

type Listener struct {
	eventTypes map[Type]bool
	channel    chan interface{}
	done       chan struct{}
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddEventListener(eventType Type, callback func(msg interface{})) {
	m.AddEventsListener(callback, eventType)
}

// AddEventsListener subscribes one callback to several event types. The
// callback sees events of all of them in emission order.
func (m *Manager) AddEventsListener(callback func(msg interface{}), eventTypes ...Type) {
	listener := &Listener{
		eventTypes: make(map[Type]bool, len(eventTypes)),
		channel:    make(chan interface{}, 64),
		done:       make(chan struct{}),
	}
	for _, eventType := range eventTypes {
		zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")
		listener.eventTypes[eventType] = true
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, listener)
	m.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-listener.channel:
				callback(msg)
				m.pending.Done()
			case <-listener.done:
				return
			}
		}
	}()
}

// EmitEvent queues msg for every listener of eventType. It blocks while a
// listener's queue is full but holds no lock while doing so, so callbacks may
// emit events or add listeners themselves.
func (m *Manager) EmitEvent(eventType Type, msg interface{}) {
	m.mu.RLock()
	if len(m.listeners) == 0 {
		zap.L().Debug("EventManager: No event listeners available")
	}
	targets := make([]*Listener, 0, len(m.listeners))
	for _, listener := range m.listeners {
		if listener.eventTypes[eventType] {
			targets = append(targets, listener)
		}
	}
	m.pending.Add(len(targets))
	m.mu.RUnlock()

	for _, listener := range targets {
		zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: Emitting event")
		select {
		case listener.channel <- msg:
		case <-listener.done:
			m.pending.Done()
		}
	}
}

// Dispatch is a ledger commit hook.
func (m *Manager) Dispatch(receipt ledger.Receipt) {
	for _, e := range receipt.Events {
		m.EmitEvent(Type(e.Name), e.Payload)
	}
}

// Wait blocks until every emitted event has been handled. Events still queued
// when the manager is closed are dropped, so Wait belongs before Close.
func (m *Manager) Wait() {
	m.pending.Wait()
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, listener := range m.listeners {
		close(listener.done)
	}
	m.listeners = nil
}
