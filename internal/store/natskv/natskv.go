// Package natskv keeps documents in a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cheesecave/internal/store"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Store struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

var _ store.Store = (*Store)(nil)

// Connect dials url and opens bucket, creating it with a single-revision
// history when it does not exist yet.
func Connect(ctx context.Context, url, bucket string) (*Store, error) {
	conn, err := nats.Connect(url,
		nats.Name("cheesecave"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", store.ErrStoreUnavailable, url, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: jetstream: %v", store.ErrStoreUnavailable, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "cheesecave configuration and device state",
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: bucket %s: %v", store.ErrStoreUnavailable, bucket, err)
	}

	return &Store{conn: conn, kv: kv}, nil
}

func newWithKeyValue(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %q: %v", store.ErrStoreUnavailable, key, err)
	}
	return entry.Value(), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("%w: put %q: %v", store.ErrStoreWriteFailed, key, err)
	}
	return nil
}

// Watch forwards puts made to key after the call. Deletes and purges are
// skipped since documents are never removed.
func (s *Store) Watch(ctx context.Context, key string) (<-chan store.PutEvent, error) {
	w, err := s.kv.Watch(ctx, key, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: watch %q: %v", store.ErrWatchDisconnected, key, err)
	}

	out := make(chan store.PutEvent, 16)
	go func() {
		defer close(out)
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				ev, ok := toPutEvent(entry)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func toPutEvent(entry jetstream.KeyValueEntry) (store.PutEvent, bool) {
	if entry == nil || entry.Operation() != jetstream.KeyValuePut {
		return store.PutEvent{}, false
	}
	return store.PutEvent{Key: entry.Key(), Value: entry.Value()}, true
}

func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
