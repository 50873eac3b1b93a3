// Package realtime is the best-effort, non-authoritative SSE broadcast
// layer (SPEC_FULL.md §6). A dropped or never-subscribed client loses
// nothing durable — the event log in internal/eventlog remains the source
// of truth; this package only fans out live copies to anyone watching.
// Grounded on the teacher's internal/infrastructure/events.Broker
// (subscribe/unsubscribe/publish over channels, single dispatch
// goroutine), generalized from one TransactionEvent channel type to a
// single broadcast over the domain Event type.
package realtime

import (
	"sync"

	"payout-ledger/internal/domain/events"
)

// Broker fans live events out to subscribers within one process. Each
// process has its own Broker; nothing carries events between processes, so
// SSE clients of the API process see only the transitions the API process
// itself commits, not those committed by the worker process.
type Broker struct {
	clients       map[chan events.Event]bool
	newClients    chan chan events.Event
	closedClients chan chan events.Event
	publish       chan events.Event
}

func NewBroker() *Broker {
	b := &Broker{
		clients:       make(map[chan events.Event]bool),
		newClients:    make(chan chan events.Event),
		closedClients: make(chan chan events.Event),
		publish:       make(chan events.Event),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	for {
		select {
		case client := <-b.newClients:
			b.clients[client] = true
		case client := <-b.closedClients:
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
		case ev := <-b.publish:
			for client := range b.clients {
				select {
				case client <- ev:
				default:
					// slow subscriber; drop rather than block the whole broker.
				}
			}
		}
	}
}

// Subscribe registers a new listener and returns its channel.
func (b *Broker) Subscribe() chan events.Event {
	ch := make(chan events.Event, 16)
	b.newClients <- ch
	return ch
}

// Unsubscribe removes a listener, closing its channel.
func (b *Broker) Unsubscribe(ch chan events.Event) {
	b.closedClients <- ch
}

// Publish broadcasts ev to every current subscriber. Safe to call after an
// event has already been durably committed — this is purely the live-tail
// path.
func (b *Broker) Publish(ev events.Event) {
	b.publish <- ev
}

var (
	instance     *Broker
	instanceOnce sync.Once
)

// Default returns the process-wide singleton broker.
func Default() *Broker {
	instanceOnce.Do(func() {
		instance = NewBroker()
	})
	return instance
}
