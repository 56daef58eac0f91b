// Package etcd keeps documents in an etcd v3 cluster, the store the
// appliance fleet shares with its external editors.
package etcd

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"cheesecave/internal/store"

	"go.etcd.io/etcd/client/pkg/v3/transport"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type Config struct {
	Endpoints   []string
	CACert      string
	Cert        string
	Key         string
	DialTimeout time.Duration
}

type Store struct {
	cli *clientv3.Client
}

var _ store.Store = (*Store)(nil)

func Connect(cfg Config) (*Store, error) {
	var tlsCfg *tls.Config
	if cfg.CACert != "" || cfg.Cert != "" {
		info := transport.TLSInfo{
			CertFile:      cfg.Cert,
			KeyFile:       cfg.Key,
			TrustedCAFile: cfg.CACert,
		}
		var err error
		if tlsCfg, err = info.ClientConfig(); err != nil {
			return nil, fmt.Errorf("%w: tls: %v", store.ErrStoreUnavailable, err)
		}
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		TLS:         tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %v: %v", store.ErrStoreUnavailable, cfg.Endpoints, err)
	}
	return &Store{cli: cli}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.cli.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %v", store.ErrStoreUnavailable, key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.cli.Put(ctx, key, string(value)); err != nil {
		return fmt.Errorf("%w: put %q: %v", store.ErrStoreWriteFailed, key, err)
	}
	return nil
}

// Watch requires a leader so a partitioned member closes the stream
// instead of going silent.
func (s *Store) Watch(ctx context.Context, key string) (<-chan store.PutEvent, error) {
	wctx, cancel := context.WithCancel(clientv3.WithRequireLeader(ctx))
	wch := s.cli.Watch(wctx, key)

	out := make(chan store.PutEvent, 16)
	go func() {
		defer close(out)
		defer cancel()
		for wresp := range wch {
			if wresp.Err() != nil || wresp.Canceled {
				return
			}
			for _, ev := range putEvents(wresp) {
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

func putEvents(wresp clientv3.WatchResponse) []store.PutEvent {
	var evs []store.PutEvent
	for _, ev := range wresp.Events {
		if ev.Type != clientv3.EventTypePut || ev.Kv == nil {
			continue
		}
		evs = append(evs, store.PutEvent{Key: string(ev.Kv.Key), Value: ev.Kv.Value})
	}
	return evs
}

func (s *Store) Close() error {
	return s.cli.Close()
}
