package main

import (
	"os"
	"os/signal"
	"syscall"

	"cheesecave/internal/controller"
	"cheesecave/internal/display"
	"cheesecave/internal/hardware"
	"cheesecave/internal/state"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

type emulateOptions struct {
	probes   int
	humidity float64
	offline  []int
}

func newEmulateCommand(opts *rootOptions) *cobra.Command {
	eo := &emulateOptions{}

	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run the controller against an emulated cave",
		Long: `Run the full controller against emulated probes and humidifier. The panel is
drawn on stdout; press buttons through POST /api/v1/buttons/{primary,secondary}.
Menu shutdown exits the process.

Example:
  cheesecave emulate --store memory --humidity 60
  cheesecave emulate --probes 2 --offline 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cave := newCave(clockwork.NewRealClock(), eo)
			opts.log.Infow("cave_emulated", "probes", eo.probes, "humidity", cave.Humidity(), "offline", eo.offline)

			dev := devices{
				build: func(cfg *state.Configuration) (controller.Hardware, func() error, error) {
					return emulatedHardware(cave), func() error { return nil }, nil
				},
				renderer: display.NewTextRenderer(os.Stdout),
			}
			return runAppliance(ctx, opts, dev)
		},
	}
	cmd.Flags().IntVar(&eo.probes, "probes", 2, "number of emulated probes")
	cmd.Flags().Float64Var(&eo.humidity, "humidity", hardware.AmbientRH, "starting relative humidity")
	cmd.Flags().IntSliceVar(&eo.offline, "offline", nil, "indexes of probes that fail every read")
	return cmd
}

func newCave(clock clockwork.Clock, eo *emulateOptions) *hardware.Cave {
	cave := hardware.NewCave(clock, eo.probes)
	cave.SetHumidity(eo.humidity)
	probes := cave.Probes()
	for _, i := range eo.offline {
		if i >= 0 && i < len(probes) {
			probes[i].SetOffline(true)
		}
	}
	return cave
}

func emulatedHardware(cave *hardware.Cave) controller.Hardware {
	hw := controller.Hardware{Humidifier: cave.Humidifier()}
	for _, p := range cave.Probes() {
		hw.Sensors = append(hw.Sensors, p)
	}
	return hw
}
