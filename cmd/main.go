package main

import (
	"fmt"
	"os"

	"cheesecave/internal/config"
	"cheesecave/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cheesecave:", err)
		os.Exit(1)
	}
}

// rootOptions holds what every subcommand needs once flags are parsed.
type rootOptions struct {
	configPath string
	v          *viper.Viper
	settings   config.Settings
	log        *logger.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "cheesecave",
		Short: "Cheese aging chamber controller",
		Long: `Keeps a cheese cave at the desired humidity: reads the probes, switches the
humidifier, drives the two-button menu and replicates its configuration and
state through the document store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(opts.v, opts.configPath)
			if err != nil {
				return err
			}
			opts.settings = s
			opts.log = logger.Get(s.LogLevel)
			opts.log.SetLevel(s.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default configs/config.yml)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("store", "", "document store backend: memory, sqlite, nats, etcd")
	_ = opts.v.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = opts.v.BindPFlag("store.backend", cmd.PersistentFlags().Lookup("store"))

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newEmulateCommand(opts))
	cmd.AddCommand(newOperatorCommand(opts))
	cmd.AddCommand(newDocCommand(opts))

	return cmd
}
