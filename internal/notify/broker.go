// Package notify fans notifications emitted by delivered transactions out
// to live subscribers such as websocket clients. Slow subscribers miss
// notifications rather than stall the ledger.
package notify

import (
	"encoding/base64"
	"sync"
	"time"

	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/types"
)

// Notification is one emitted event with its transaction context.
type Notification struct {
	TxID      string       `json:"tx_id"`
	Height    int64        `json:"height"`
	Name      string       `json:"name"`
	Event     oracle.Event `json:"event"`
	Data      string       `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// FromEvents wraps the events of one transaction.
func FromEvents(txID string, height int64, events []oracle.Event) []Notification {
	now := time.Now().UTC()
	out := make([]Notification, 0, len(events))
	for _, e := range events {
		out = append(out, Notification{
			TxID:      txID,
			Height:    height,
			Name:      e.EventName(),
			Event:     e,
			Data:      base64.StdEncoding.EncodeToString(e.Encode()),
			Timestamp: now,
		})
	}
	return out
}

// Record converts an event into the receipt form returned to clients.
func Record(e oracle.Event) types.EventRecord {
	attrs := make(map[string]string)
	for _, kv := range e.Attributes() {
		attrs[kv[0]] = kv[1]
	}
	return types.EventRecord{
		Type:       e.EventName(),
		Attributes: attrs,
		Data:       base64.StdEncoding.EncodeToString(e.Encode()),
	}
}

// Broker manages subscriber channels.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan Notification]struct{}
	buffer  int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		clients: make(map[chan Notification]struct{}),
		buffer:  buffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel func
// unregisters it and closes the channel.
func (b *Broker) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, b.buffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Publish delivers n to every subscriber with room in its buffer.
func (b *Broker) Publish(notes ...Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		for _, n := range notes {
			select {
			case client <- n:
			default:
				// Client is slow/blocked, skip
			}
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
