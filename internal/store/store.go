// Package store defines the key-value contract the replicated documents are
// built on. Backends live in sub-packages: memory (tests and emulation),
// sqlite (standalone appliance), natskv (NATS JetStream KeyValue) and etcd.
package store

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable means the store could not serve a read or write.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreWriteFailed means a put did not complete.
	ErrStoreWriteFailed = errors.New("store write failed")
	// ErrWatchDisconnected means a watch subscription ended unexpectedly.
	ErrWatchDisconnected = errors.New("watch disconnected")
)

// PutEvent is a remote write observed through Watch.
type PutEvent struct {
	Key   string
	Value []byte
}

// Store is the minimal contract of a remote key-value store.
//
// Watch delivers every put on key after the subscription is established.
// The returned channel is closed when ctx is done or the subscription is
// lost; callers resubscribe in the latter case.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Watch(ctx context.Context, key string) (<-chan PutEvent, error)
}
