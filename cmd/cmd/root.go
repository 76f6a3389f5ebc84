package cmd

import (
	"github.com/spf13/cobra"
)

const AppName = "digler"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - disk analysis and recovery tool",
	}

	rootCmd.AddCommand(DefineScanCommand())
	rootCmd.AddCommand(DefineRecoverCommand())
	rootCmd.AddCommand(DefineFormatsCommand())
	rootCmd.AddCommand(DefineMountCommand())
	rootCmd.AddCommand(DefineMergeCommand())
	rootCmd.AddCommand(DefineExfatCommand())

	return rootCmd.Execute()
}
