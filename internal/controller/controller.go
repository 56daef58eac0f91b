// Package controller runs the appliance: the self-rescheduling heater,
// measurement, humidifier and display tasks, and the button dispatcher that
// drives the menu.
package controller

import (
	"fmt"
	"sync"
	"time"

	"cheesecave/internal/logger"
	"cheesecave/internal/models"
	"cheesecave/internal/scheduler"
	"cheesecave/internal/state"

	"github.com/jonboulle/clockwork"
)

type Controller struct {
	cfg    *state.Configuration
	dev    *state.DeviceState
	hw     Hardware
	events EventSink
	rec    Recorder
	clock  clockwork.Clock
	log    *logger.Logger

	heater     *scheduler.Loop
	measure    *scheduler.Loop
	humidifier *scheduler.Loop
	display    *scheduler.Loop
	idle       *scheduler.Timer

	mu      sync.Mutex
	window  *Window
	stopped bool

	renderMu sync.Mutex
}

// New wires a controller. events and rec may be nil.
func New(cfg *state.Configuration, dev *state.DeviceState, hw Hardware, events EventSink, rec Recorder, clock clockwork.Clock, log *logger.Logger) *Controller {
	if events == nil {
		events = nopSink{}
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{
		cfg:    cfg,
		dev:    dev,
		hw:     hw,
		events: events,
		rec:    rec,
		clock:  clock,
		log:    log.Named("controller"),
		idle:   scheduler.NewTimer(clock),
		window: NewWindow(1),
	}
	c.heater = scheduler.NewLoop(clock, "heater", c.heaterCycle)
	c.measure = scheduler.NewLoop(clock, "measurement", c.measurement)
	c.humidifier = scheduler.NewLoop(clock, "humidifier", c.humidifierDecision)
	c.display = scheduler.NewLoop(clock, "display", c.refresh)

	// A remote edit shows up on the panel soon after it lands.
	dev.OnChange(c.RequestRefresh)
	return c
}

// Start sizes the measurement window from the current configuration and runs
// the first cycle of every task.
func (c *Controller) Start() {
	capacity := WindowCapacity(c.cfg.DisplayUpdateDelay().Seconds(), c.cfg.MeasurementDelay().Seconds())
	c.mu.Lock()
	c.window = NewWindow(capacity)
	c.stopped = false
	c.mu.Unlock()

	if n := c.cfg.Sensors(); n == 0 {
		c.log.Warnw("no_sensors_configured")
	} else if n > len(c.hw.Sensors) {
		c.log.Warnw("sensors_missing", "configured", n, "available", len(c.hw.Sensors))
	}
	if !c.cfg.HumidifierConnected() {
		c.log.Warnw("humidifier_not_connected")
	}

	c.log.Infow("controller_started", "window", capacity, "sensors", len(c.activeSensors()))
	c.heater.Start()
	c.measure.Start()
	c.humidifier.Start()
	c.display.Start()
}

// Stop cancels every pending task. Cycles already running complete.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.idle.Stop()
	for _, l := range []*scheduler.Loop{c.heater, c.measure, c.humidifier, c.display} {
		l.Stop()
	}
	c.log.Infow("controller_stopped")
}

// Snapshot returns the current device state.
func (c *Controller) Snapshot() models.Snapshot {
	return c.dev.Snapshot()
}

func (c *Controller) activeSensors() []Sensor {
	n := c.cfg.Sensors()
	if n > len(c.hw.Sensors) {
		n = len(c.hw.Sensors)
	}
	return c.hw.Sensors[:n]
}

func (c *Controller) heaterCycle() time.Duration {
	on := !c.dev.HeaterOn()
	for i, s := range c.activeSensors() {
		if err := s.SetHeater(on); err != nil {
			c.log.Warnw("sensor_heater_failed", "sensor", i, "on", on, "error", err)
		}
	}
	c.dev.SetHeaterOn(on)
	c.rec.Heater(on)

	if on {
		return c.cfg.HeaterOn()
	}
	return c.cfg.HeaterDelay()
}

func (c *Controller) measurement() time.Duration {
	next := c.cfg.MeasurementDelay()
	sensors := c.activeSensors()

	var sum Sample
	read := 0
	for i, s := range sensors {
		t, h, err := s.Read()
		if err != nil {
			c.log.Warnw("sensor_read_failed", "sensor", i, "error", fmt.Errorf("%w: %v", ErrSensorReadFailed, err))
			c.rec.SensorError(i)
			continue
		}
		sum.Temperature += t
		sum.Humidity += h
		read++
	}
	if len(sensors) > 0 && read == 0 {
		return next
	}

	sample := Sample{}
	if read > 0 {
		sample = Sample{Temperature: sum.Temperature / float64(read), Humidity: sum.Humidity / float64(read)}
	}

	c.mu.Lock()
	avg := c.window.Push(sample)
	c.mu.Unlock()

	c.dev.SetMeasurement(avg.Temperature, avg.Humidity)
	c.rec.Measurement(avg.Temperature, avg.Humidity)
	c.log.Debugw("measured", "temperature", avg.Temperature, "humidity", avg.Humidity, "sensors_read", read)
	return next
}

func (c *Controller) humidifierDecision() time.Duration {
	next := c.cfg.HumidifierDecisionDelay()
	if !c.cfg.HumidifierConnected() || c.hw.Humidifier == nil {
		return next
	}

	_, humidity := c.dev.Measurement()
	c.switchHumidifier(humidity < c.dev.DesiredHumidity())
	return next
}

func (c *Controller) switchHumidifier(on bool) {
	if c.dev.HumidifierOn() == on {
		return
	}
	if on && !c.dev.HasWater() {
		return
	}

	pulses, eventType := pulsesOff, models.EventHumidifierOff
	if on {
		pulses, eventType = pulsesOn, models.EventHumidifierOn
	}
	if err := c.hw.Humidifier.Pulse(pulses); err != nil {
		c.log.Errorw("humidifier_pulse_failed", "on", on, "error", err)
		c.events.Record(models.EventError, "humidifier control failed", map[string]any{"on": on, "error": err.Error()})
		return
	}

	c.dev.SetHumidifier(on)
	c.rec.Humidifier(on)
	_, humidity := c.dev.Measurement()
	c.events.Record(eventType, fmt.Sprintf("humidifier switched at %.1f%% RH", humidity), map[string]any{
		"humidity":         humidity,
		"desired_humidity": c.dev.DesiredHumidity(),
	})
	c.log.Infow("humidifier_switched", "on", on, "humidity", humidity)
}

// RequestRefresh replaces the pending display refresh with one after the
// input delay.
func (c *Controller) RequestRefresh() {
	c.display.Reschedule(c.cfg.DisplayUpdateInputDelay())
}

func (c *Controller) refresh() time.Duration {
	snap := c.dev.Snapshot()

	c.renderMu.Lock()
	for _, r := range c.hw.Renderers {
		if err := r.Render(snap); err != nil {
			c.log.Warnw("render_failed", "renderer", fmt.Sprintf("%T", r), "error", err)
		}
	}
	c.renderMu.Unlock()

	c.rec.Refresh(snap)
	c.events.Record(models.EventTelemetry, "measurement", map[string]any{
		"temperature":   snap.Temperature,
		"humidity":      snap.Humidity,
		"water_level":   snap.WaterLevel,
		"humidifier_on": snap.HumidifierOn,
	})
	return c.cfg.DisplayUpdateDelay()
}
