package hardware

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

const (
	pulseHold = 50 * time.Millisecond
	pulseGap  = 100 * time.Millisecond
)

type outputPin interface {
	High()
	Low()
}

// Humidifier toggles the humidifier's momentary control input.
type Humidifier struct {
	mu    sync.Mutex
	pin   outputPin
	clock clockwork.Clock
	hold  time.Duration
	gap   time.Duration
}

// NewHumidifier claims BCM pin as an output held low. rpio must be open.
func NewHumidifier(pin int, clock clockwork.Clock) *Humidifier {
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return newHumidifier(p, clock)
}

func newHumidifier(pin outputPin, clock clockwork.Clock) *Humidifier {
	return &Humidifier{pin: pin, clock: clock, hold: pulseHold, gap: pulseGap}
}

// Pulse raises the line count times, holding each pulse high for 50ms with
// 100ms low between pulses.
func (h *Humidifier) Pulse(count int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < count; i++ {
		if i > 0 {
			h.clock.Sleep(h.gap)
		}
		h.pin.High()
		h.clock.Sleep(h.hold)
		h.pin.Low()
	}
	return nil
}
