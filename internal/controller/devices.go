package controller

import (
	"errors"

	"cheesecave/internal/models"
)

// ErrSensorReadFailed wraps a driver error for a sensor that could not be
// read. The sample is skipped for that sensor.
var ErrSensorReadFailed = errors.New("sensor read failed")

// Sensor is a combined temperature/humidity probe with an internal heater
// used to drive off condensation.
type Sensor interface {
	Read() (temperature, humidity float64, err error)
	SetHeater(on bool) error
}

// HumidifierLine is the momentary control input of the humidifier. Two
// pulses turn it on, one turns it off; pulse timing belongs to the driver.
type HumidifierLine interface {
	Pulse(count int) error
}

// Renderer presents a snapshot: the panel display, an MQTT topic, a log.
type Renderer interface {
	Render(snap models.Snapshot) error
}

// EventSink records history entries. Record must not block.
type EventSink interface {
	Record(eventType, description string, metadata any)
}

// Recorder receives controller metrics.
type Recorder interface {
	Measurement(temperature, humidity float64)
	SensorError(sensor int)
	Heater(on bool)
	Humidifier(on bool)
	ButtonPress(button models.Button)
	Refresh(snap models.Snapshot)
}

// Hardware groups the devices a controller drives.
type Hardware struct {
	Sensors    []Sensor
	Humidifier HumidifierLine
	Renderers  []Renderer
}

type nopSink struct{}

func (nopSink) Record(string, string, any) {}

type nopRecorder struct{}

func (nopRecorder) Measurement(float64, float64) {}
func (nopRecorder) SensorError(int)              {}
func (nopRecorder) Heater(bool)                  {}
func (nopRecorder) Humidifier(bool)              {}
func (nopRecorder) ButtonPress(models.Button)    {}
func (nopRecorder) Refresh(models.Snapshot)      {}

// Humidifier pulse counts.
const (
	pulsesOn  = 2
	pulsesOff = 1
)
