package hardware

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ----------- Emulation constants -----------
const (
	AmbientC        = 12.0  // cellar temperature °C
	AmbientRH       = 70.0  // relative humidity with the humidifier off
	RiseRHPerSec    = 0.02  // %RH per second while the humidifier runs
	DecayRHPerSec   = 0.005 // %RH per second drift back to ambient
	HeaterCPerSec   = 0.5   // °C per second a probe heater adds to its reading
	HeaterCoolCPSec = 0.1   // °C per second a probe sheds once its heater stops
	MaxHeaterRiseC  = 3.0   // probe self-heating ceiling
)

// ErrProbeOffline is returned by an emulated probe that was taken offline.
var ErrProbeOffline = errors.New("probe offline")

// Cave emulates the chamber: humidity rises while the humidifier runs and
// drifts back to ambient otherwise, and each probe reads warmer while its
// heater is on. State advances with the clock on every access.
type Cave struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	last         time.Time
	humidity     float64
	humidifierOn bool
	probes       []*Probe
}

func NewCave(clock clockwork.Clock, probes int) *Cave {
	c := &Cave{clock: clock, last: clock.Now(), humidity: AmbientRH}
	for i := 0; i < probes; i++ {
		c.probes = append(c.probes, &Probe{cave: c, offset: 0.1 * float64(i)})
	}
	return c
}

// Probes returns the emulated sensors in address order.
func (c *Cave) Probes() []*Probe { return c.probes }

// Humidifier returns the emulated control line.
func (c *Cave) Humidifier() *CaveHumidifier { return &CaveHumidifier{cave: c} }

// SetHumidity overrides the chamber humidity, e.g. from a test script.
func (c *Cave) SetHumidity(rh float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	c.humidity = clamp(rh, 0, 100)
}

func (c *Cave) Humidity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	return c.humidity
}

func (c *Cave) HumidifierOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.humidifierOn
}

// advanceLocked applies the rates for the time passed since the last call.
func (c *Cave) advanceLocked() {
	now := c.clock.Now()
	elapsed := now.Sub(c.last).Seconds()
	if elapsed <= 0 {
		return
	}
	c.last = now

	if c.humidifierOn {
		c.humidity = minFloat(c.humidity+RiseRHPerSec*elapsed, 100)
	} else if c.humidity > AmbientRH {
		c.humidity = maxFloat(c.humidity-DecayRHPerSec*elapsed, AmbientRH)
	} else if c.humidity < AmbientRH {
		c.humidity = minFloat(c.humidity+DecayRHPerSec*elapsed, AmbientRH)
	}

	for _, p := range c.probes {
		if p.heater {
			p.rise = minFloat(p.rise+HeaterCPerSec*elapsed, MaxHeaterRiseC)
		} else {
			p.rise = maxFloat(p.rise-HeaterCoolCPSec*elapsed, 0)
		}
	}
}

// Probe is one emulated SHT3x.
type Probe struct {
	cave    *Cave
	offset  float64
	heater  bool
	rise    float64
	offline bool
}

func (p *Probe) Read() (float64, float64, error) {
	c := p.cave
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.offline {
		return 0, 0, ErrProbeOffline
	}
	c.advanceLocked()
	return AmbientC + p.offset + p.rise, c.humidity, nil
}

func (p *Probe) SetHeater(on bool) error {
	c := p.cave
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	p.heater = on
	return nil
}

// SetOffline makes subsequent reads fail.
func (p *Probe) SetOffline(offline bool) {
	p.cave.mu.Lock()
	defer p.cave.mu.Unlock()
	p.offline = offline
}

// CaveHumidifier decodes pulses the way the real humidifier does: two
// pulses switch it on, one switches it off.
type CaveHumidifier struct {
	cave *Cave
}

func (h *CaveHumidifier) Pulse(count int) error {
	c := h.cave
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked()
	switch count {
	case 1:
		c.humidifierOn = false
	case 2:
		c.humidifierOn = true
	}
	return nil
}

// helpers
func clamp(v, lo, hi float64) float64 {
	return maxFloat(lo, minFloat(v, hi))
}

func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
