package main

import (
	"context"
	"database/sql"
	"fmt"

	"cheesecave/internal/config"
	"cheesecave/internal/store"
	etcdstore "cheesecave/internal/store/etcd"
	"cheesecave/internal/store/memory"
	"cheesecave/internal/store/natskv"
	sqlitestore "cheesecave/internal/store/sqlite"
)

// openStore connects the configured document store. db backs the sqlite
// backend and is owned by the caller.
func openStore(ctx context.Context, s config.StoreSettings, db *sql.DB) (store.Store, func() error, error) {
	nop := func() error { return nil }
	switch s.Backend {
	case config.BackendMemory:
		return memory.New(), nop, nil
	case config.BackendSQLite:
		return sqlitestore.New(db), nop, nil
	case config.BackendNATS:
		st, err := natskv.Connect(ctx, s.NATS.URL, s.NATS.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendEtcd:
		st, err := etcdstore.Connect(etcdstore.Config{
			Endpoints:   s.Etcd.Endpoints,
			CACert:      s.Etcd.CACert,
			Cert:        s.Etcd.Cert,
			Key:         s.Etcd.Key,
			DialTimeout: s.Etcd.DialTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}
