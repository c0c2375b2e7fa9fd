package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dmehra2102/Cartified/internal/config"
	"github.com/dmehra2102/Cartified/pkg/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions holds the global flags and the config they load.
type rootOptions struct {
	ConfigPath string
	cfg        config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cartified",
		Short:         "Blockchain storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newOrdersCommand(opts))
	cmd.AddCommand(newQRCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	return cmd
}

func (o *rootOptions) logger() *slog.Logger {
	return logging.NewWithLevel(o.cfg.LogLevel)
}
