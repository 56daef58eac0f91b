package main

import (
	"os/signal"
	"syscall"

	"cheesecave/internal/controller"
	"cheesecave/internal/display"
	"cheesecave/internal/hardware"
	"cheesecave/internal/state"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var noPowerOff bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller on the Raspberry Pi hardware",
		Long: `Run the controller against the SHT3x probes on I2C, the humidifier control
line and the two menu buttons. Choosing shutdown from the menu halts the host
unless --no-power-off is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			closeGPIO, err := hardware.OpenGPIO()
			if err != nil {
				return err
			}
			defer func() { _ = closeGPIO() }()

			hw := opts.settings.Hardware
			clock := clockwork.NewRealClock()
			buttons := hardware.NewButtons(hw.PrimaryButtonPin, hw.SecondaryButtonPin, clock)
			defer buttons.Close()

			dev := devices{
				build: func(cfg *state.Configuration) (controller.Hardware, func() error, error) {
					return openHardware(cfg, opts, clock)
				},
				buttons:  buttons.Watch,
				renderer: display.NewLogRenderer(opts.log),
				powerOff: systemPowerOff,
			}
			if noPowerOff {
				dev.powerOff = nil
			}
			return runAppliance(ctx, opts, dev)
		},
	}
	cmd.Flags().BoolVar(&noPowerOff, "no-power-off", false, "exit instead of halting the host on menu shutdown")
	return cmd
}

// openHardware starts one SHT3x per configured sensor, up to the number of
// known addresses, and the humidifier line.
func openHardware(cfg *state.Configuration, opts *rootOptions, clock clockwork.Clock) (controller.Hardware, func() error, error) {
	hw := opts.settings.Hardware
	out := controller.Hardware{
		Humidifier: hardware.NewHumidifier(hw.HumidifierPin, clock),
	}

	n := min(cfg.Sensors(), len(hw.SensorAddresses))
	if cfg.Sensors() > len(hw.SensorAddresses) {
		opts.log.Warnw("sensors_exceed_addresses", "configured", cfg.Sensors(), "addresses", len(hw.SensorAddresses))
	}
	if n == 0 {
		opts.log.Warnw("no_sensors_configured", "msg", "temperature and humidity data won't be available")
		return out, func() error { return nil }, nil
	}

	adaptor, sensors, err := hardware.OpenSHT3x(hw.I2CBus, hw.SensorAddresses[:n])
	if err != nil {
		return controller.Hardware{}, nil, err
	}
	for _, s := range sensors {
		out.Sensors = append(out.Sensors, s)
	}
	return out, adaptor.Finalize, nil
}
