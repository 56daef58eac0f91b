package hardware

import (
	"context"
	"time"

	"cheesecave/internal/models"

	"github.com/jonboulle/clockwork"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

const (
	buttonDebounce = 50 * time.Millisecond
	buttonPoll     = 10 * time.Millisecond
)

type edgePin interface {
	EdgeDetected() bool
}

// Buttons watches the two menu buttons. Each is wired to ground with the
// internal pull-up enabled, so a release shows as a rising edge.
type Buttons struct {
	pins     map[models.Button]edgePin
	clock    clockwork.Clock
	debounce time.Duration
	poll     time.Duration
}

// NewButtons configures the BCM pins for rising edge detection. rpio must
// be open.
func NewButtons(primary, secondary int, clock clockwork.Clock) *Buttons {
	pins := make(map[models.Button]edgePin, 2)
	for b, n := range map[models.Button]int{models.ButtonPrimary: primary, models.ButtonSecondary: secondary} {
		p := rpio.Pin(n)
		p.Input()
		p.PullUp()
		p.Detect(rpio.RiseEdge)
		pins[b] = p
	}
	return newButtons(pins, clock)
}

func newButtons(pins map[models.Button]edgePin, clock clockwork.Clock) *Buttons {
	return &Buttons{pins: pins, clock: clock, debounce: buttonDebounce, poll: buttonPoll}
}

// Watch polls for edges until ctx is done and calls press for each one
// outside the debounce window of the previous edge on that button.
func (b *Buttons) Watch(ctx context.Context, press func(models.Button)) {
	last := make(map[models.Button]time.Time, len(b.pins))
	ticker := b.clock.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		for button, pin := range b.pins {
			if !pin.EdgeDetected() {
				continue
			}
			now := b.clock.Now()
			if t, ok := last[button]; ok && now.Sub(t) < b.debounce {
				continue
			}
			last[button] = now
			press(button)
		}
	}
}

// Close disables edge detection on the pins.
func (b *Buttons) Close() {
	for _, pin := range b.pins {
		if p, ok := pin.(rpio.Pin); ok {
			p.Detect(rpio.NoEdge)
		}
	}
}
