package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"cheesecave/internal/logger"
	"cheesecave/internal/scheduler"
	"cheesecave/internal/store"

	"github.com/jonboulle/clockwork"
)

const (
	// StoreDelayKey names the document field holding the persistence period.
	StoreDelayKey = "store_delay_seconds"
	// DefaultStoreDelay applies when the document has no usable StoreDelayKey.
	DefaultStoreDelay = 300 * time.Second
)

type Document struct {
	path     string
	store    store.Store
	defaults Fields

	clock   clockwork.Clock
	log     *logger.Logger
	rec     Recorder
	timeout time.Duration
	backoff backoff

	mu        sync.Mutex
	fields    Fields
	version   uint64 // bumped on every change to fields
	persisted uint64 // version known to match the store
	// pending holds bodies put by this process whose echo has not come
	// back yet, oldest first.
	pending [][]byte
	// heldBack is the latest remote payload that arrived while own writes
	// were in flight. The store orders those writes after it, so it only
	// applies if they all fail.
	heldBack Fields
	closed   bool

	hooksMu sync.Mutex
	hooks   []func()

	writeMu sync.Mutex
	timer   *scheduler.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Load reads path from st and starts replication. A missing document is
// materialized from defaults and written at once; a stored document that
// fails validation is replaced the same way. Failure to reach the store
// wraps store.ErrStoreUnavailable.
func Load(ctx context.Context, st store.Store, path string, defaults map[string]any, opts ...Option) (*Document, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Document{
		path:     path,
		store:    st,
		defaults: normalizeAll(defaults),
		clock:    o.clock,
		log:      o.log.Named("document").With("path", path),
		rec:      o.rec,
		timeout:  o.timeout,
		backoff:  o.backoff,
		timer:    scheduler.NewTimer(o.clock),
	}
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))

	// Subscribe before reading so no put between the two is lost.
	ch, err := st.Watch(d.ctx, path)
	if err != nil {
		d.cancel()
		return nil, fmt.Errorf("%w: watch %s: %v", store.ErrStoreUnavailable, path, err)
	}

	if err := d.load(ctx); err != nil {
		d.cancel()
		return nil, err
	}

	d.wg.Add(1)
	go d.watchLoop(ch)

	d.mu.Lock()
	d.armLocked()
	d.mu.Unlock()
	return d, nil
}

func (d *Document) load(ctx context.Context) error {
	raw, found, err := d.store.Get(ctx, d.path)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: get %s: %v", store.ErrStoreUnavailable, d.path, err)
	}

	writeNow := true
	switch {
	case !found:
		d.log.Infow("document_materialized")
		d.fields = d.defaults.Clone()
	default:
		fields, completed, err := decode(raw, d.defaults)
		if err != nil {
			d.log.Warnw("invalid_document", "error", err)
			d.fields = d.defaults.Clone()
			break
		}
		d.fields = fields
		writeNow = false
		if completed {
			// Missing keys were filled from defaults; the next tick stores them.
			d.version = 1
		}
	}
	if !writeNow {
		return nil
	}

	body, err := encode(d.fields)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", store.ErrStoreUnavailable, d.path, err)
	}
	d.pending = append(d.pending, body)
	if err := d.store.Put(ctx, d.path, body); err != nil {
		d.pending = nil
		d.rec.DocumentWrite(d.path, err)
		return fmt.Errorf("%w: initial put %s: %v", store.ErrStoreUnavailable, d.path, err)
	}
	d.rec.DocumentWrite(d.path, nil)
	return nil
}

func (d *Document) Path() string { return d.path }

// Get returns the cached value of key.
func (d *Document) Get(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.fields[key]
	return v, ok
}

// Float returns key as a number, or 0 when it is absent or not a number.
func (d *Document) Float(key string) float64 {
	v, _ := d.Get(key)
	f, _ := v.(float64)
	return f
}

func (d *Document) Bool(key string) bool {
	v, _ := d.Get(key)
	b, _ := v.(bool)
	return b
}

// Set stores value in the cache and marks the document dirty. Nothing is
// written to the store until the next persistence tick.
func (d *Document) Set(key string, value any) {
	value = normalize(value)

	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.fields[key]; ok && reflect.DeepEqual(cur, value) {
		return
	}
	delay := d.storeDelayLocked()
	d.fields[key] = value
	d.version++
	d.rearmIfDelayChangedLocked(delay)
}

// Update runs fn on the live fields under the document lock, so a
// read-modify-write sequence is atomic with respect to other mutations and
// to remote replacement. fn must not call back into d.
func (d *Document) Update(fn func(f Fields)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before, _ := encode(d.fields)
	delay := d.storeDelayLocked()
	fn(d.fields)
	for k, v := range d.fields {
		d.fields[k] = normalize(v)
	}
	after, _ := encode(d.fields)
	if !bytes.Equal(before, after) {
		d.version++
		d.rearmIfDelayChangedLocked(delay)
	}
}

// View runs fn on the live fields under the document lock. fn must not
// mutate them.
func (d *Document) View(fn func(f Fields)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.fields)
}

// Snapshot returns a copy of the cached document.
func (d *Document) Snapshot() Fields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields.Clone()
}

// Dirty reports whether local changes have not reached the store yet.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version != d.persisted
}

// OnChange registers fn to run after every remote replacement of the
// document. Hooks run on the watch goroutine without the document lock.
func (d *Document) OnChange(fn func()) {
	d.hooksMu.Lock()
	defer d.hooksMu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Flush writes pending local changes now.
func (d *Document) Flush(ctx context.Context) error {
	return d.persist(ctx)
}

// Close stops the persistence timer and the watch. It does not flush.
func (d *Document) Close() {
	d.mu.Lock()
	d.closed = true
	d.timer.Stop()
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Document) storeDelayLocked() time.Duration {
	secs, ok := d.fields[StoreDelayKey].(float64)
	if !ok || secs <= 0 {
		return DefaultStoreDelay
	}
	return time.Duration(secs * float64(time.Second))
}

// rearmIfDelayChangedLocked restarts the persistence timer when the period
// differs from before.
func (d *Document) rearmIfDelayChangedLocked(before time.Duration) {
	if after := d.storeDelayLocked(); after != before {
		d.log.Infow("store_delay_changed", "delay", after)
		d.armLocked()
	}
}

func (d *Document) armLocked() {
	if d.closed {
		return
	}
	d.timer.Reset(d.storeDelayLocked(), d.tick)
}

func (d *Document) tick() {
	if err := d.persist(d.ctx); err != nil {
		d.log.Warnw("store_write_failed", "error", err)
	}

	d.mu.Lock()
	d.armLocked()
	d.mu.Unlock()
}

func (d *Document) persist(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	if d.version == d.persisted {
		d.mu.Unlock()
		return nil
	}
	ver := d.version
	body, err := encode(d.fields)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("encode %s: %w", d.path, err)
	}
	// Recorded before the put so an echo racing the return is recognized.
	d.pushPendingLocked(body)
	d.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, d.timeout)
	err = d.store.Put(wctx, d.path, body)
	cancel()
	d.rec.DocumentWrite(d.path, err)
	if err != nil {
		d.mu.Lock()
		d.dropPendingLocked(body)
		notify := d.releaseHeldBackLocked()
		d.mu.Unlock()
		if notify {
			d.rec.DocumentRemoteChange(d.path)
			d.notify()
		}
		if errors.Is(err, store.ErrStoreWriteFailed) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", store.ErrStoreWriteFailed, d.path, err)
	}

	d.mu.Lock()
	if ver > d.persisted {
		d.persisted = ver
	}
	d.mu.Unlock()
	return nil
}
