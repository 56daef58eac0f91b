package hardware

import (
	"errors"
	"fmt"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"
)

// SHT3x is one temperature/humidity probe. Its internal heater is used to
// keep condensation off the sensing element.
type SHT3x struct {
	drv     *i2c.SHT3xDriver
	address int
}

// OpenSHT3x connects the Pi adaptor and starts one driver per address.
func OpenSHT3x(bus int, addresses []int) (*raspi.Adaptor, []*SHT3x, error) {
	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect raspi adaptor: %w", err)
	}

	sensors := make([]*SHT3x, 0, len(addresses))
	for _, addr := range addresses {
		drv := i2c.NewSHT3xDriver(adaptor, i2c.WithBus(bus), i2c.WithAddress(addr))
		drv.SetAccuracy(i2c.SHT3xAccuracyHigh)
		if err := drv.Start(); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("start sht3x at 0x%02x: %w", addr, err), adaptor.Finalize())
		}
		sensors = append(sensors, &SHT3x{drv: drv, address: addr})
	}
	return adaptor, sensors, nil
}

func (s *SHT3x) Read() (float64, float64, error) {
	temp, rh, err := s.drv.Sample()
	if err != nil {
		return 0, 0, fmt.Errorf("sht3x 0x%02x: %w", s.address, err)
	}
	return float64(temp), float64(rh), nil
}

func (s *SHT3x) SetHeater(on bool) error {
	if err := s.drv.SetHeater(on); err != nil {
		return fmt.Errorf("sht3x 0x%02x heater: %w", s.address, err)
	}
	return nil
}
