package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var opts globalOptions

	ctx := newCommandContext(&opts)

	rootCmd := &cobra.Command{
		Use:           "blinkctl",
		Short:         "Inspect plates, replay scans and query the bus roster",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite", "", "SQLite record store (default: in-memory, seeded)")
	rootCmd.PersistentFlags().StringVar(&opts.rosterPath, "roster", "", "TOML roster override")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Write JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(newPlateCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newRoutesCommand(ctx))
	rootCmd.AddCommand(newBusesCommand(ctx))

	return rootCmd
}
