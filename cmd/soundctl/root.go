package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "soundctl",
		Short:         "Sound-health baseline and anomaly CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path (defaults to $CATRACK_CONFIG)")
	pf.StringVarP(&flags.machine, "machine", "m", "", "Machine ID")
	pf.StringVar(&flags.mode, "mode", "", "Operating mode (defaults to default_mode)")
	pf.BoolVar(&flags.json, "json", false, "Print JSON instead of tables")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log at the configured level instead of warn")

	rootCmd.AddCommand(newSynthCommand(ctx))
	rootCmd.AddCommand(newRebuildCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newBaselineCommand(ctx))
	rootCmd.AddCommand(newAssessmentsCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))

	return rootCmd
}
