package document

import (
	"time"

	"cheesecave/internal/logger"

	"github.com/jonboulle/clockwork"
)

// Recorder receives persistence and replication outcomes. The metrics
// package provides the Prometheus implementation.
type Recorder interface {
	DocumentWrite(path string, err error)
	DocumentRemoteChange(path string)
	WatchReconnect(path string)
}

type nopRecorder struct{}

func (nopRecorder) DocumentWrite(string, error)  {}
func (nopRecorder) DocumentRemoteChange(string) {}
func (nopRecorder) WatchReconnect(string)       {}

type options struct {
	clock   clockwork.Clock
	log     *logger.Logger
	rec     Recorder
	timeout time.Duration
	backoff backoff
}

func defaultOptions() options {
	return options{
		clock:   clockwork.NewRealClock(),
		log:     logger.Nop(),
		rec:     nopRecorder{},
		timeout: 10 * time.Second,
		backoff: backoff{initial: time.Second, max: 30 * time.Second},
	}
}

type Option func(*options)

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.rec = r
		}
	}
}

// WithTimeout bounds each store round-trip made in the background.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBackoff sets the linear resubscription backoff: attempt n waits
// n*initial, capped at ceiling.
func WithBackoff(initial, ceiling time.Duration) Option {
	return func(o *options) {
		if initial > 0 && ceiling >= initial {
			o.backoff = backoff{initial: initial, max: ceiling}
		}
	}
}

type backoff struct {
	initial time.Duration
	max     time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := time.Duration(attempt) * b.initial
	if d > b.max {
		return b.max
	}
	return d
}
