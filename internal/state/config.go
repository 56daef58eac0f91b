// Package state holds the two replicated documents of the appliance: the
// operator-editable Configuration and the Device State with its menu.
package state

import (
	"context"
	"time"

	"cheesecave/internal/document"
	"cheesecave/internal/store"
)

// Default store paths.
const (
	ConfigPath = "/cheesecave/config"
	StatePath  = "/cheesecave/state"
)

// Configuration keys.
const (
	KeySensors                 = "sensors"
	KeyHumidifierConnected     = "humidifier_connected"
	KeyMenuReturnDelay         = "menu_return_delay_seconds"
	KeySensorDelay             = "sensor_delay_seconds"
	KeyDisplayUpdateDelay      = "display_update_delay_seconds"
	KeyDisplayUpdateInputDelay = "display_update_input_delay_seconds"
	KeyHeaterOn                = "heater_on_seconds"
	KeyHeaterDelay             = "heater_delay_seconds"
	KeyMeasurementDelay        = "measurement_delay_seconds"
	KeyHumidifierDecisionDelay = "humidifier_decision_delay_seconds"
)

// ConfigDefaults is the configuration written when none is stored.
func ConfigDefaults() map[string]any {
	return map[string]any{
		KeySensors:                 0,
		KeyHumidifierConnected:     false,
		KeyMenuReturnDelay:         20,
		KeySensorDelay:             5,
		KeyDisplayUpdateDelay:      60,
		KeyDisplayUpdateInputDelay: 3,
		KeyHeaterOn:                1,
		KeyHeaterDelay:             20,
		KeyMeasurementDelay:        5,
		KeyHumidifierDecisionDelay: 60,
		document.StoreDelayKey:     300,
	}
}

// Configuration is a typed view over the configuration document. Every
// getter reads the live document, so remote edits apply on next use.
type Configuration struct {
	doc      *document.Document
	defaults map[string]any
}

func LoadConfiguration(ctx context.Context, st store.Store, path string, opts ...document.Option) (*Configuration, error) {
	doc, err := document.Load(ctx, st, path, ConfigDefaults(), opts...)
	if err != nil {
		return nil, err
	}
	return NewConfiguration(doc), nil
}

func NewConfiguration(doc *document.Document) *Configuration {
	return &Configuration{doc: doc, defaults: ConfigDefaults()}
}

func (c *Configuration) Document() *document.Document { return c.doc }

// Sensors is the number of sensors plugged in. Negative values count as none.
func (c *Configuration) Sensors() int {
	n := int(c.doc.Float(KeySensors))
	if n < 0 {
		return 0
	}
	return n
}

func (c *Configuration) HumidifierConnected() bool { return c.doc.Bool(KeyHumidifierConnected) }

func (c *Configuration) MenuReturnDelay() time.Duration { return c.seconds(KeyMenuReturnDelay) }

func (c *Configuration) SensorDelay() time.Duration { return c.seconds(KeySensorDelay) }

func (c *Configuration) DisplayUpdateDelay() time.Duration { return c.seconds(KeyDisplayUpdateDelay) }

func (c *Configuration) DisplayUpdateInputDelay() time.Duration {
	return c.seconds(KeyDisplayUpdateInputDelay)
}

func (c *Configuration) HeaterOn() time.Duration { return c.seconds(KeyHeaterOn) }

func (c *Configuration) HeaterDelay() time.Duration { return c.seconds(KeyHeaterDelay) }

func (c *Configuration) MeasurementDelay() time.Duration { return c.seconds(KeyMeasurementDelay) }

func (c *Configuration) HumidifierDecisionDelay() time.Duration {
	return c.seconds(KeyHumidifierDecisionDelay)
}

func (c *Configuration) StoreDelay() time.Duration { return c.seconds(document.StoreDelayKey) }

// seconds converts a delay key to a duration. A non-positive value would
// stop the task it drives, so the compiled-in default is used instead.
func (c *Configuration) seconds(key string) time.Duration {
	v := c.doc.Float(key)
	if v <= 0 {
		v = float64(c.defaults[key].(int))
	}
	return time.Duration(v * float64(time.Second))
}
