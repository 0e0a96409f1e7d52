package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Broker is an in-process pub/sub keyed by topic.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for all
// given topics.
func (b *Broker) Subscribe(topics ...string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[chan []byte]struct{})
		}
		b.subs[t][ch] = struct{}{}
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from the topics it was subscribed with.
func (b *Broker) Unsubscribe(ch chan []byte, topics ...string) {
	b.mu.Lock()
	for _, t := range topics {
		delete(b.subs[t], ch)
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(_ context.Context, ev Event) {
	data, _ := json.Marshal(ev)
	b.Deliver(ev.Topic, data)
}

// Deliver sends an encoded event to the topic's subscribers.
func (b *Broker) Deliver(topic string, data []byte) {
	b.mu.RLock()
	for ch := range b.subs[topic] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Subscribers returns the number of channels subscribed to topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
