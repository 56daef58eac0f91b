// Package document keeps an in-process JSON document consistent with a
// key in a remote store.
//
// Local mutations only touch the cached copy; a persistence timer writes the
// whole document every store_delay_seconds (read from the document itself).
// Remote puts observed through the watch replace the cache wholesale, so the
// consistency policy is last writer wins at document granularity. A watched
// value equal to the cache, or equal to the last value this process wrote, is
// treated as an echo and ignored.
package document
