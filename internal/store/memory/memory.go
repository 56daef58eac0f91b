// Package memory is an in-process Store used by the emulator and tests.
package memory

import (
	"context"
	"sync"

	"cheesecave/internal/store"
)

// Store keeps values in a map and delivers watch events to local watchers.
type Store struct {
	store.Broadcaster

	// putMu keeps watchers seeing puts in the order they were stored.
	putMu  sync.Mutex
	mu     sync.Mutex
	values map[string][]byte
	puts   map[string]int

	// failPut, when set, is returned by Put instead of storing.
	failPut error
	failGet error
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string][]byte), puts: make(map[string]int)}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, false, s.failGet
	}
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.putMu.Lock()
	defer s.putMu.Unlock()

	s.mu.Lock()
	if s.failPut != nil {
		err := s.failPut
		s.mu.Unlock()
		return err
	}
	v := append([]byte(nil), value...)
	s.values[key] = v
	s.puts[key]++
	s.mu.Unlock()

	s.Publish(store.PutEvent{Key: key, Value: v})
	return nil
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan store.PutEvent, error) {
	return s.Subscribe(ctx, key), nil
}

// Seed stores a value without notifying watchers.
func (s *Store) Seed(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
}

// Puts reports how many successful puts key has received.
func (s *Store) Puts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}

// FailPuts makes subsequent puts return err; nil restores normal behaviour.
func (s *Store) FailPuts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = err
}

// FailGets makes subsequent gets return err; nil restores normal behaviour.
func (s *Store) FailGets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = err
}
