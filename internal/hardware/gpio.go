package hardware

import (
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// OpenGPIO maps the GPIO registers. The returned func unmaps them.
func OpenGPIO() (func() error, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return rpio.Close, nil
}
