package document

import (
	"bytes"
	"context"

	"cheesecave/internal/store"
)

func (d *Document) watchLoop(ch <-chan store.PutEvent) {
	defer d.wg.Done()

	attempt := 0
	for {
		for ev := range ch {
			d.applyRemote(ev.Value, false)
		}
		if d.ctx.Err() != nil {
			return
		}

		d.log.Warnw("watch_disconnected", "error", store.ErrWatchDisconnected)
		for {
			attempt++
			d.rec.WatchReconnect(d.path)
			select {
			case <-d.ctx.Done():
				return
			case <-d.clock.After(d.backoff.delay(attempt)):
			}

			var err error
			ch, err = d.store.Watch(d.ctx, d.path)
			if err != nil {
				d.log.Warnw("watch_resubscribe_failed", "attempt", attempt, "error", err)
				continue
			}
			break
		}
		d.log.Infow("watch_resubscribed", "attempt", attempt)
		attempt = 0
		d.resync()
	}
}

// resync picks up puts made while the watch was down. The store's current
// value is authoritative: echoes still expected from before the outage are
// forgotten unless this is one of them.
func (d *Document) resync() {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	raw, found, err := d.store.Get(ctx, d.path)
	if err != nil || !found {
		return
	}
	d.applyRemote(raw, true)
}

// applyRemote handles a payload seen on the watch, or read back by resync
// when current is set.
func (d *Document) applyRemote(raw []byte, current bool) {
	fields, _, err := decode(raw, d.defaults)
	if err != nil {
		d.log.Warnw("invalid_watched_document", "error", err)
		return
	}
	body, err := encode(fields)
	if err != nil {
		return
	}

	d.mu.Lock()
	if i := d.pendingIndexLocked(body); i >= 0 {
		// Our own write coming back. Older writes were overwritten by it
		// in the store, so their echoes are not waited for any more.
		d.pending = d.pending[i+1:]
		if len(d.pending) == 0 {
			d.heldBack = nil
		}
		d.mu.Unlock()
		return
	}
	if current {
		d.pending, d.heldBack = nil, nil
	}
	if len(d.pending) > 0 {
		// Put before one of our in-flight writes, which will replace it.
		d.heldBack = fields
		n := len(d.pending)
		d.mu.Unlock()
		d.log.Debugw("remote_change_superseded", "pending_writes", n)
		return
	}
	changed := d.replaceLocked(fields)
	d.mu.Unlock()

	if changed {
		d.rec.DocumentRemoteChange(d.path)
		d.notify()
	}
}

// replaceLocked swaps in a remote document wholesale. It reports false when
// the content equals the cache.
func (d *Document) replaceLocked(fields Fields) bool {
	current, _ := encode(d.fields)
	body, _ := encode(fields)
	if bytes.Equal(current, body) {
		return false
	}
	delay := d.storeDelayLocked()
	d.fields = fields
	d.version++
	d.persisted = d.version
	d.rearmIfDelayChangedLocked(delay)
	return true
}

// maxPending bounds the echo queue; an echo lost by the store would
// otherwise pin it forever.
const maxPending = 32

func (d *Document) pushPendingLocked(body []byte) {
	if len(d.pending) == maxPending {
		d.pending = d.pending[1:]
	}
	d.pending = append(d.pending, body)
}

func (d *Document) pendingIndexLocked(body []byte) int {
	for i, p := range d.pending {
		if bytes.Equal(p, body) {
			return i
		}
	}
	return -1
}

// dropPendingLocked forgets a body whose put failed.
func (d *Document) dropPendingLocked(body []byte) {
	for i := len(d.pending) - 1; i >= 0; i-- {
		if bytes.Equal(d.pending[i], body) {
			d.pending = append(d.pending[:i:i], d.pending[i+1:]...)
			return
		}
	}
}

// releaseHeldBackLocked applies a held-back remote payload once no own
// write is left to supersede it.
func (d *Document) releaseHeldBackLocked() bool {
	if len(d.pending) > 0 || d.heldBack == nil {
		return false
	}
	fields := d.heldBack
	d.heldBack = nil
	return d.replaceLocked(fields)
}

func (d *Document) notify() {
	d.hooksMu.Lock()
	hooks := append([]func(){}, d.hooks...)
	d.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
