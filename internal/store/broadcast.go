package store

import (
	"context"
	"sync"
)

// watchBuffer bounds how many events a slow subscriber can lag behind.
const watchBuffer = 16

// Broadcaster fans local puts out to in-process watchers. Backends without a
// native watch (memory, sqlite) embed it.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan PutEvent
}

// Subscribe registers a watcher for key until ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, key string) <-chan PutEvent {
	ch := make(chan PutEvent, watchBuffer)

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[string]map[int]chan PutEvent)
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]chan PutEvent)
	}
	id := b.next
	b.next++
	b.subs[key][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[key][id]; ok {
			delete(b.subs[key], id)
			close(ch)
		}
	}()
	return ch
}

// Publish delivers a put to every watcher of its key. A watcher whose buffer
// is full is dropped and its channel closed, which it observes as a
// disconnect.
func (b *Broadcaster) Publish(ev PutEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs[ev.Key] {
		select {
		case ch <- ev:
		default:
			delete(b.subs[ev.Key], id)
			close(ch)
		}
	}
}

// DisconnectAll closes every watcher, simulating a lost connection.
func (b *Broadcaster) DisconnectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(b.subs, key)
	}
}
